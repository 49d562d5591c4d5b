package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/bjaus/pushdispatch"
)

// stubProcessor returns a fixed result and records what it was given.
type stubProcessor struct {
	res pushdispatch.Result
	err error

	mu   sync.Mutex
	seen [][]byte
	ctxs []context.Context
}

func (p *stubProcessor) Process(ctx context.Context, raw []byte) (pushdispatch.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, raw)
	p.ctxs = append(p.ctxs, ctx)
	return p.res, p.err
}

var errEnvelope = errors.New("no source matched message")
