package server

import (
	"io"
	"net/http"
)

// streamSink writes answer text to a plain-text response, committing the
// headers on the first write so that failures before any output can still be
// reported with a JSON error and a real status code.
type streamSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newStreamSink(w http.ResponseWriter) *streamSink {
	f, _ := w.(http.Flusher)
	return &streamSink{w: w, flusher: f}
}

func (s *streamSink) Write(token string) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}
	if _, err := io.WriteString(s.w, token); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
