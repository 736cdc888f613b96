package server

import (
	"fmt"
	"net/http"
	"sync"
)

// CallbackResult contains the outcome of a broker login redirect.
type CallbackResult struct {
	RequestToken string
	err          error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler captures the request token the broker appends to its
// redirect. Implements the Handler interface for registration with a
// Router.
//
// It only processes one callback to prevent replay attacks; the CLI
// login flow serves it from a short-lived localhost server.
type CallbackHandler struct {
	resultChan  chan CallbackResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a handler that delivers the first
// callback's request token over its result channel.
func NewCallbackHandler() *CallbackHandler {
	return &CallbackHandler{
		resultChan: make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the broker redirect.
//
// Validates the token parameter and sends the result through the result channel.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	requestToken := r.URL.Query().Get("request_token")
	if requestToken == "" {
		status := r.URL.Query().Get("status")
		err := fmt.Errorf("authorization failed: status=%s", status)
		h.Send(CallbackResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{RequestToken: requestToken})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, successPage, "Authorization Successful", "You can close this window and return to the terminal.")
}

// Send sends the callback result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}
