package llm

import (
	"context"
	"sync"
)

// Scripted is a Generator that replays canned outputs, for tests and offline runs.
// Once the script is exhausted the last output repeats.
type Scripted struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	calls   []Request
}

// NewScripted returns a Generator that answers with outputs in order.
func NewScripted(outputs ...string) *Scripted {
	return &Scripted{outputs: outputs}
}

// FailWith queues errors returned before any output.
func (s *Scripted) FailWith(errs ...error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
	return s
}

func (s *Scripted) Generate(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	if len(s.outputs) == 0 {
		return "", nil
	}
	out := s.outputs[0]
	if len(s.outputs) > 1 {
		s.outputs = s.outputs[1:]
	}
	return out, nil
}

// Calls returns the requests received so far.
func (s *Scripted) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}
