// Package tracing holds the process-wide span starter used by handlers and
// the billing service. main installs the aeonis tracer; tests run with the
// no-op starter.
package tracing

import (
	"context"
	"sync"
)

type Span interface {
	End()
	SetError(message string)
	SetAttributes(attrs map[string]interface{})
}

type Starter func(ctx context.Context, name string) (context.Context, Span)

var (
	mu      sync.RWMutex
	starter Starter = noopStart
)

// SetStarter replaces the span starter. A nil starter restores the no-op.
func SetStarter(s Starter) {
	mu.Lock()
	defer mu.Unlock()
	if s == nil {
		s = noopStart
	}
	starter = s
}

func StartSpan(ctx context.Context, name string) (context.Context, Span) {
	mu.RLock()
	s := starter
	mu.RUnlock()
	return s(ctx, name)
}

// SpanFuncs adapts a tracer whose span type is not exported through this
// package. Nil fields are skipped.
type SpanFuncs struct {
	EndFunc   func()
	ErrorFunc func(message string)
	AttrsFunc func(attrs map[string]interface{})
}

func (s SpanFuncs) End() {
	if s.EndFunc != nil {
		s.EndFunc()
	}
}

func (s SpanFuncs) SetError(message string) {
	if s.ErrorFunc != nil {
		s.ErrorFunc(message)
	}
}

func (s SpanFuncs) SetAttributes(attrs map[string]interface{}) {
	if s.AttrsFunc != nil {
		s.AttrsFunc(attrs)
	}
}

func noopStart(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, SpanFuncs{}
}
