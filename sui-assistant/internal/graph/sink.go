package graph

import (
	"strings"
	"sync"
)

// Sink receives answer text as it is produced.
type Sink interface {
	Write(token string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(token string) error

func (f SinkFunc) Write(token string) error {
	return f(token)
}

// BufferSink collects everything written to it.
type BufferSink struct {
	mu     sync.Mutex
	b      strings.Builder
	writes int
}

func (s *BufferSink) Write(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	s.b.WriteString(token)
	return nil
}

// String returns the collected text.
func (s *BufferSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

// Writes returns how many times Write was called.
func (s *BufferSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type discardSink struct{}

func (discardSink) Write(string) error { return nil }
