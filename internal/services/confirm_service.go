package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/example/tiketa/internal/cache"
	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/metrics"
	"github.com/example/tiketa/internal/models"
)

const (
	confirmCacheTTL    = 24 * time.Hour
	confirmCallTimeout = 20 * time.Second
)

// OrderConfirmer is the backend confirm call.
type OrderConfirmer interface {
	Confirm(ctx context.Context, orderID string) (models.ConfirmationResult, error)
}

// ConfirmService is the single entry to order confirmation. The widget callback,
// the success page, the finalize route and the provider webhook may all race on the
// same order; concurrent calls collapse into one backend request and a resolved
// answer is remembered.
type ConfirmService struct {
	backend OrderConfirmer
	store   cache.Store
	metrics *metrics.Metrics
	group   singleflight.Group
	timeout time.Duration
	log     *logrus.Entry
}

// NewConfirmService creates a new ConfirmService.
func NewConfirmService(backend OrderConfirmer, store cache.Store, m *metrics.Metrics, log *logrus.Entry) *ConfirmService {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if log == nil {
		log = logging.Component(nil, "confirm")
	}
	return &ConfirmService{backend: backend, store: store, metrics: m, timeout: confirmCallTimeout, log: log}
}

func confirmKey(orderID string) string {
	return "confirm:" + orderID
}

// Confirm returns the confirmation for orderID.
func (s *ConfirmService) Confirm(ctx context.Context, orderID string) (models.ConfirmationResult, error) {
	orderID = strings.TrimSpace(orderID)
	if err := required("order_id", orderID); err != nil {
		return models.ConfirmationResult{}, err
	}

	var cached models.ConfirmationResult
	err := cache.GetJSON(ctx, s.store, confirmKey(orderID), &cached)
	switch {
	case err == nil && cached.Resolved():
		s.metrics.ObserveConfirmation("cached")
		return cached, nil
	case err != nil && !errors.Is(err, cache.ErrMiss):
		s.log.WithError(err).WithField("order_id", orderID).Warn("confirmation cache read failed")
	}

	// The shared call outlives any one caller; each caller stops waiting on its own ctx.
	flight := s.group.DoChan(orderID, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		result, err := s.backend.Confirm(callCtx, orderID)
		if err != nil {
			return models.ConfirmationResult{}, err
		}
		if result.Resolved() {
			if err := cache.SetJSON(callCtx, s.store, confirmKey(orderID), result, confirmCacheTTL); err != nil {
				s.log.WithError(err).WithField("order_id", orderID).Warn("confirmation cache write failed")
			}
		}
		return result, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		s.metrics.ObserveConfirmation("error")
		return models.ConfirmationResult{}, ctx.Err()
	case res = <-flight:
	}
	if res.Err != nil {
		s.metrics.ObserveConfirmation("error")
		return models.ConfirmationResult{}, res.Err
	}

	result := res.Val.(models.ConfirmationResult)
	if res.Shared {
		s.log.WithField("order_id", orderID).Debug("confirmation shared with concurrent caller")
	}
	if result.Resolved() {
		s.metrics.ObserveConfirmation("resolved")
	} else {
		s.metrics.ObserveConfirmation("unresolved")
	}
	return result, nil
}
