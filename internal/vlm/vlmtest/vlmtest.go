// Package vlmtest provides deterministic vlm.Backend doubles for tests.
package vlmtest

import (
	"context"
	"sync"

	"github.com/timvw/shapeqa/internal/vlm"
)

// Call is one recorded Invoke.
type Call struct {
	Image  *vlm.Image
	Prompt string
}

// Reply is a scripted response.
type Reply struct {
	Text string
	Err  error
}

// Backend replays scripted replies in order and records every call. When
// the script runs out, Fallback answers (or Default when Fallback is nil).
type Backend struct {
	ProviderName string
	ModelName    string
	Replies      []Reply
	Default      string
	Fallback     func(img *vlm.Image, prompt string) (string, error)

	mu    sync.Mutex
	calls []Call
}

// New returns a backend that answers with replies in order.
func New(replies ...string) *Backend {
	b := &Backend{ProviderName: "stub", ModelName: "stub-vlm"}
	for _, r := range replies {
		b.Replies = append(b.Replies, Reply{Text: r})
	}
	return b
}

// Func returns a backend that answers with fn.
func Func(fn func(img *vlm.Image, prompt string) (string, error)) *Backend {
	return &Backend{ProviderName: "stub", ModelName: "stub-vlm", Fallback: fn}
}

func (b *Backend) Invoke(_ context.Context, img *vlm.Image, prompt string) (string, error) {
	b.mu.Lock()
	idx := len(b.calls)
	b.calls = append(b.calls, Call{Image: img, Prompt: prompt})
	b.mu.Unlock()

	if idx < len(b.Replies) {
		r := b.Replies[idx]
		return r.Text, r.Err
	}
	if b.Fallback != nil {
		return b.Fallback(img, prompt)
	}
	return b.Default, nil
}

func (b *Backend) Provider() string { return b.ProviderName }

func (b *Backend) Model() string { return b.ModelName }

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// Fail builds an *vlm.InferenceError reply.
func Fail(err error) Reply {
	return Reply{Err: &vlm.InferenceError{Provider: "stub", Model: "stub-vlm", Err: err}}
}
