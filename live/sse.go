// Package live holds the per-client long-lived subscriptions: SSE sessions
// and websocket chat rooms.
package live

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// SSE frames payloads for a server-sent-events response. Construction
// writes the stream headers immediately.
type SSE struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewSSE(w http.ResponseWriter) *SSE {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}
	return &SSE{w: w, flusher: flusher}
}

func (s *SSE) Send(payload interface{}) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode sse payload")
	}
	if _, err := fmt.Fprintf(s.w, "event: message\ndata: %s\n\n", message); err != nil {
		return errors.Wrap(err, "failed to write sse payload")
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
