package pushdispatch

import "strings"

// Discriminator decides whether a source should handle a message based on
// the message content. Discriminators are cheap to evaluate compared to
// full parsing.
type Discriminator interface {
	Match(v View) bool
}

// HasFields returns a Discriminator that matches when all paths exist.
func HasFields(paths ...string) Discriminator {
	return hasFields{paths: paths}
}

type hasFields struct {
	paths []string
}

func (d hasFields) Match(v View) bool {
	for _, p := range d.paths {
		if !v.HasField(p) {
			return false
		}
	}
	return true
}

// FieldEquals returns a Discriminator that matches when the path holds
// exactly the given string value.
func FieldEquals(path, value string) Discriminator {
	return FieldIn(path, value)
}

// FieldIn returns a Discriminator that matches when the path holds one of
// the given string values.
func FieldIn(path string, values ...string) Discriminator {
	return fieldIn{path: path, values: values}
}

type fieldIn struct {
	path   string
	values []string
}

func (d fieldIn) Match(v View) bool {
	s, ok := v.GetString(d.path)
	if !ok {
		return false
	}
	for _, want := range d.values {
		if s == want {
			return true
		}
	}
	return false
}

// FieldHasPrefix returns a Discriminator that matches when the path holds a
// string starting with prefix.
func FieldHasPrefix(path, prefix string) Discriminator {
	return fieldHasPrefix{path: path, prefix: prefix}
}

type fieldHasPrefix struct {
	path   string
	prefix string
}

func (d fieldHasPrefix) Match(v View) bool {
	s, ok := v.GetString(d.path)
	return ok && strings.HasPrefix(s, d.prefix)
}

// And returns a Discriminator that matches when all discriminators match.
func And(ds ...Discriminator) Discriminator {
	return and{ds: ds}
}

type and struct {
	ds []Discriminator
}

func (d and) Match(v View) bool {
	for _, disc := range d.ds {
		if !disc.Match(v) {
			return false
		}
	}
	return true
}

// Or returns a Discriminator that matches when any discriminator matches.
func Or(ds ...Discriminator) Discriminator {
	return or{ds: ds}
}

type or struct {
	ds []Discriminator
}

func (d or) Match(v View) bool {
	for _, disc := range d.ds {
		if disc.Match(v) {
			return true
		}
	}
	return false
}
