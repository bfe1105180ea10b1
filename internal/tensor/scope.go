package tensor

import (
	"sync"
)

// Scope collects handles and disposes them together, so a function can
// release every intermediate with a single deferred Close.
//
//	s := tensor.NewScope()
//	defer s.Close()
//	a := s.Track(tensor.Ones(...))
type Scope struct {
	mu      sync.Mutex
	handles []*Tensor
	closed  bool
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Add registers t for disposal and returns it. Tensors added after Close
// are disposed immediately.
func (s *Scope) Add(t *Tensor) *Tensor {
	if t == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		t.Dispose()
		return t
	}
	s.handles = append(s.handles, t)
	return t
}

// Track registers the result of a tensor-returning call and passes the
// error through: s.Track(a.Add(b)).
func (s *Scope) Track(t *Tensor, err error) (*Tensor, error) {
	if err != nil {
		return nil, err
	}
	return s.Add(t), nil
}

// Detach removes t from the scope so it survives Close.
func (s *Scope) Detach(t *Tensor) *Tensor {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, h := range s.handles {
		if h == t {
			s.handles = append(s.handles[:i], s.handles[i+1:]...)
			break
		}
	}
	return t
}

// Len returns the number of handles held.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close disposes every held handle, most recent first.
func (s *Scope) Close() {
	s.mu.Lock()
	handles := s.handles
	s.handles, s.closed = nil, true
	s.mu.Unlock()
	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Dispose()
	}
}

// WithScope runs fn with a fresh scope and closes it afterwards, also when
// fn panics.
func WithScope(fn func(s *Scope) error) error {
	s := NewScope()
	defer s.Close()
	return fn(s)
}
