package server

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/juju/errors"
)

// errUnknownMethod is the result daemons report for methods they lack.
const errUnknownMethod = errors.ConstError("method name not recognized")

// Handler serves one daemon method. args is the request's argument object;
// the returned value is marshalled as the reply arguments, nil meaning {}.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// service is the method table a server advertises under one name.
type service struct {
	name     string
	mu       sync.RWMutex
	handlers map[string]Handler
}

func newService(name string) *service {
	return &service{
		name:     name,
		handlers: make(map[string]Handler),
	}
}

func (s *service) register(method string, h Handler) error {
	if method == "" || h == nil {
		return errors.NotValidf("handler for method %q", method)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[method]; ok {
		return errors.AlreadyExistsf("handler for method %q", method)
	}
	s.handlers[method] = h
	return nil
}

func (s *service) lookup(method string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[method]
	return h, ok
}

func (s *service) methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// call runs the handler for method and marshals its reply.
func (s *service) call(ctx context.Context, method string, args json.RawMessage) (json.RawMessage, error) {
	h, ok := s.lookup(method)
	if !ok {
		return nil, errUnknownMethod
	}
	reply, err := h(ctx, args)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return json.RawMessage(`{}`), nil
	}
	data, err := json.Marshal(reply)
	if err != nil {
		return nil, errors.Annotatef(err, "marshalling %s reply", method)
	}
	return data, nil
}
