package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/logging"
)

var (
	// ErrSessionOpen is returned when a second widget session is opened for a token
	// whose first session has not closed.
	ErrSessionOpen = errors.New("checkout session already open")
	// ErrNoSession is returned when an outcome arrives for a token with no open session.
	ErrNoSession = errors.New("no open checkout session")
	// ErrNotLoaded is returned by OpenCheckout before EnsureWidgetLoaded succeeded.
	ErrNotLoaded = errors.New("checkout widget not loaded")
)

// LoadError reports a failed widget script fetch.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load checkout widget %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Handle identifies the loaded widget script.
type Handle struct {
	ScriptURL string
	ClientKey string
	LoadedAt  time.Time
}

// Handlers are the four widget outcome callbacks. Payload is whatever the widget
// reported alongside the outcome.
type Handlers struct {
	OnSuccess func(ctx context.Context, payload map[string]any)
	OnPending func(ctx context.Context, payload map[string]any)
	OnError   func(ctx context.Context, payload map[string]any)
	OnClose   func(ctx context.Context)
}

// Loader fetches the widget script.
type Loader interface {
	Load(ctx context.Context, scriptURL string) error
}

// Widget opens a hosted checkout for a token.
type Widget interface {
	Pay(ctx context.Context, token string, handlers Handlers) error
}

// Bridge loads the widget once per process and opens checkout sessions on it.
type Bridge struct {
	scriptURL string
	clientKey string
	loader    Loader
	widget    Widget
	log       *logrus.Entry

	mu      sync.Mutex
	handle  *Handle
	loading chan struct{}
	loadErr error
}

// NewBridge creates a Bridge for the script URL of the configured environment.
func NewBridge(scriptURL, clientKey string, loader Loader, widget Widget, log *logrus.Entry) *Bridge {
	if log == nil {
		log = logging.Component(nil, "checkout")
	}
	return &Bridge{
		scriptURL: scriptURL,
		clientKey: clientKey,
		loader:    loader,
		widget:    widget,
		log:       log,
	}
}

// EnsureWidgetLoaded returns the widget handle, loading the script on first use.
// Concurrent callers share one load; a failed load is retried by the next call.
func (b *Bridge) EnsureWidgetLoaded(ctx context.Context) (Handle, error) {
	for {
		b.mu.Lock()
		if b.handle != nil {
			h := *b.handle
			b.mu.Unlock()
			return h, nil
		}
		if wait := b.loading; wait != nil {
			b.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return Handle{}, ctx.Err()
			}
			b.mu.Lock()
			err := b.loadErr
			b.mu.Unlock()
			if err != nil {
				return Handle{}, err
			}
			continue
		}

		done := make(chan struct{})
		b.loading = done
		b.mu.Unlock()

		err := b.loader.Load(ctx, b.scriptURL)

		b.mu.Lock()
		b.loading = nil
		if err != nil {
			b.loadErr = &LoadError{URL: b.scriptURL, Err: err}
		} else {
			b.loadErr = nil
			b.handle = &Handle{ScriptURL: b.scriptURL, ClientKey: b.clientKey, LoadedAt: time.Now()}
		}
		result, loadErr := b.handle, b.loadErr
		b.mu.Unlock()
		close(done)

		if loadErr != nil {
			b.log.WithError(err).WithField("script", b.scriptURL).Warn("widget load failed")
			return Handle{}, loadErr
		}
		b.log.WithField("script", b.scriptURL).Info("widget loaded")
		return *result, nil
	}
}

// Loaded reports whether EnsureWidgetLoaded has succeeded.
func (b *Bridge) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle != nil
}

// OpenCheckout opens the widget for token with the four outcome handlers.
func (b *Bridge) OpenCheckout(ctx context.Context, token string, handlers Handlers) error {
	if token == "" {
		return errors.New("checkout token is required")
	}
	if !b.Loaded() {
		return ErrNotLoaded
	}
	return b.widget.Pay(ctx, token, handlers)
}

// HTTPLoader checks the script is reachable with a GET.
type HTTPLoader struct {
	Client *http.Client
}

func (l HTTPLoader) Load(ctx context.Context, scriptURL string) error {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scriptURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
