// Package rpctest provides an in-memory rpc.Caller for tests.
package rpctest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/erp-dms/dms-assistant/internal/rpc"
)

type Call struct {
	Procedure string
	Payload   map[string]any
}

// Fake records every call and answers through Handler. A nil Handler replies
// with an empty row list.
type Fake struct {
	Handler func(procedure string, payload map[string]any) (rpc.Result, error)

	mu    sync.Mutex
	calls []Call
}

func (f *Fake) Call(ctx context.Context, procedure string, payload any) (rpc.Result, error) {
	var m map[string]any
	if raw, err := json.Marshal(payload); err == nil {
		_ = json.Unmarshal(raw, &m)
	}

	f.mu.Lock()
	f.calls = append(f.calls, Call{Procedure: procedure, Payload: m})
	f.mu.Unlock()

	if f.Handler == nil {
		return JSON([]rpc.Row{}), nil
	}
	return f.Handler(procedure, m)
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) Procedures() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Procedure
	}
	return out
}

// JSON encodes v as a reply body.
func JSON(v any) rpc.Result {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return rpc.Result(raw)
}
