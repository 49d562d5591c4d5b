package pushdispatch

import (
	"fmt"
	"strings"
)

// pattern is a document path template such as "visitors/{visitorId}".
// Literal segments must match exactly; {name} segments match any single
// non-empty segment and capture it.
type pattern struct {
	raw      string
	segments []segment
}

type segment struct {
	literal string
	param   string
}

func parsePattern(s string) (pattern, error) {
	trimmed := strings.Trim(s, "/")
	if trimmed == "" {
		return pattern{}, fmt.Errorf("empty route pattern")
	}

	p := pattern{raw: trimmed}
	seen := make(map[string]bool)
	for _, part := range strings.Split(trimmed, "/") {
		switch {
		case part == "":
			return pattern{}, fmt.Errorf("route pattern %q has an empty segment", s)
		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := part[1 : len(part)-1]
			if name == "" {
				return pattern{}, fmt.Errorf("route pattern %q has an unnamed parameter", s)
			}
			if seen[name] {
				return pattern{}, fmt.Errorf("route pattern %q repeats parameter %q", s, name)
			}
			seen[name] = true
			p.segments = append(p.segments, segment{param: name})
		case strings.ContainsAny(part, "{}"):
			return pattern{}, fmt.Errorf("route pattern %q has a malformed segment %q", s, part)
		default:
			p.segments = append(p.segments, segment{literal: part})
		}
	}
	return p, nil
}

// match reports whether path fits the pattern and returns captured params.
func (p pattern) match(path string) (map[string]string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != len(p.segments) {
		return nil, false
	}

	params := make(map[string]string)
	for i, seg := range p.segments {
		part := parts[i]
		if part == "" {
			return nil, false
		}
		if seg.param != "" {
			params[seg.param] = part
			continue
		}
		if seg.literal != part {
			return nil, false
		}
	}
	return params, true
}

func (p pattern) String() string { return p.raw }
