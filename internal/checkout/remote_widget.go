package checkout

import (
	"context"
	"sync"

	"github.com/example/tiketa/internal/models"
)

// RemoteWidget is the server side of the browser widget: it parks the handlers of
// each open session until the browser reports how the session ended.
type RemoteWidget struct {
	mu       sync.Mutex
	sessions map[string]Handlers
}

func NewRemoteWidget() *RemoteWidget {
	return &RemoteWidget{sessions: make(map[string]Handlers)}
}

// Pay registers a session for token.
func (w *RemoteWidget) Pay(_ context.Context, token string, handlers Handlers) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sessions[token]; ok {
		return ErrSessionOpen
	}
	w.sessions[token] = handlers
	return nil
}

// Open reports whether a session is open for token.
func (w *RemoteWidget) Open(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.sessions[token]
	return ok
}

// Deliver closes the session for token and invokes the handler matching outcome.
// A session receives at most one outcome.
func (w *RemoteWidget) Deliver(ctx context.Context, token string, outcome models.PaymentOutcome, payload map[string]any) error {
	w.mu.Lock()
	handlers, ok := w.sessions[token]
	if ok {
		delete(w.sessions, token)
	}
	w.mu.Unlock()

	if !ok {
		return ErrNoSession
	}

	switch outcome {
	case models.OutcomeSuccess:
		call(ctx, handlers.OnSuccess, payload)
	case models.OutcomePending:
		call(ctx, handlers.OnPending, payload)
	case models.OutcomeError:
		call(ctx, handlers.OnError, payload)
	case models.OutcomeClosed:
		if handlers.OnClose != nil {
			handlers.OnClose(ctx)
		}
	}
	return nil
}

// Cancel drops the session for token without invoking any handler.
func (w *RemoteWidget) Cancel(token string) {
	w.mu.Lock()
	delete(w.sessions, token)
	w.mu.Unlock()
}

func call(ctx context.Context, fn func(context.Context, map[string]any), payload map[string]any) {
	if fn != nil {
		fn(ctx, payload)
	}
}
