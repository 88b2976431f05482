// Package cancel implements the cooperative cancellation primitive shared
// by every long-running operation in the engine. A Token is
// a shared, thread-safe flag checked at batch boundaries, table-row
// boundaries, and deep-loop checkpoints, never inside a single expression
// evaluation.
package cancel

import (
	"sync/atomic"

	"github.com/flowschema/evalengine/pkg/evalerr"
)

// Token is a shared cancellation flag. The zero value is a valid,
// not-yet-cancelled token.
type Token struct {
	flag atomic.Bool
}

// New constructs a fresh, not-yet-cancelled token.
func New() *Token {
	return &Token{}
}

// Cancel marks the token as cancelled. Safe to call from any goroutine,
// any number of times.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.flag.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t != nil && t.flag.Load()
}

// Check returns evalerr.Cancelled if the token has been cancelled, nil
// otherwise. Callers invoke this at the cooperative checkpoints: a
// batch boundary, a top-level table row, and the start of each dependents
// propagation. A nil *Token is treated as never-cancelled, so callers that
// did not set up cancellation can pass nil freely.
func (t *Token) Check() error {
	if t.Cancelled() {
		return &evalerr.Cancelled{}
	}
	return nil
}
