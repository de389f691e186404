package container

import (
	"context"
	"io"
	"sync"
)

// Scope is the pluggable lifecycle/identity policy described in spec.md
// §6's Scope API. Built-in scopes are "singleton" (handled directly by the
// registry) and "prototype"; any other registered Scope is dispatched to
// here.
type Scope interface {
	// Get returns the instance for name, invoking producer to create one
	// if the scope doesn't already have it cached.
	Get(name string, producer func() (interface{}, error)) (interface{}, error)
	// Remove evicts and returns a previously-stored instance, if any.
	Remove(name string) (interface{}, bool)
	// RegisterDestructionCallback registers a callback to run when this
	// scope's backing context ends.
	RegisterDestructionCallback(name string, callback func())
}

// prototypeScope always invokes the producer: spec.md §3 "Prototypes are
// not cached". Destruction callbacks are not retained since prototypes are
// never tracked for group destruction.
type prototypeScope struct{}

func (prototypeScope) Get(name string, producer func() (interface{}, error)) (interface{}, error) {
	return producer()
}

func (prototypeScope) Remove(name string) (interface{}, bool) { return nil, false }

func (prototypeScope) RegisterDestructionCallback(name string, callback func()) {}

// requestScope is the custom-scope adaptation of goioc/di's Middleware: a
// bean whose lifecycle is bound to a context.Context, torn down when that
// context is cancelled. It takes the place of goioc/di's hardcoded Request
// scope, expressed through the pluggable Scope interface spec.md §6
// requires. NewContainer does not register it; callers install it with
// RegisterScope (for example under the name "request").
type requestScope struct {
	mu        sync.Mutex
	instances map[string]interface{}
	callbacks map[string][]func()
}

// NewRequestScope returns a Scope whose instances live for the duration of
// ctx; Bind must be called once per request with the context that will be
// cancelled at request end, mirroring goioc/di's Middleware wiring
// request-scoped beans into r.Context().
func NewRequestScope() *requestScope {
	return &requestScope{
		instances: make(map[string]interface{}),
		callbacks: make(map[string][]func()),
	}
}

func (s *requestScope) Get(name string, producer func() (interface{}, error)) (interface{}, error) {
	s.mu.Lock()
	if inst, ok := s.instances[name]; ok {
		s.mu.Unlock()
		return inst, nil
	}
	s.mu.Unlock()

	inst, err := producer()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.instances[name] = inst
	s.mu.Unlock()
	return inst, nil
}

func (s *requestScope) Remove(name string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[name]
	delete(s.instances, name)
	return inst, ok
}

func (s *requestScope) RegisterDestructionCallback(name string, callback func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[name] = append(s.callbacks[name], callback)
}

// Bind runs every registered destruction callback (and closes any
// io.Closer-implementing instance) once ctx is cancelled, the same
// best-effort cleanup goioc/di's Middleware performs with its goroutine
// watching r.Context().Done().
func (s *requestScope) Bind(ctx context.Context) {
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		instances := s.instances
		callbacks := s.callbacks
		s.instances = make(map[string]interface{})
		s.callbacks = make(map[string][]func())
		s.mu.Unlock()

		for name, inst := range instances {
			if closer, ok := inst.(io.Closer); ok {
				if err := closer.Close(); err != nil {
					log.WithField("bean", name).WithError(err).Warn("error closing request-scoped bean")
				}
			}
		}
		for _, cbs := range callbacks {
			for _, cb := range cbs {
				cb()
			}
		}
	}()
}
