package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/tiketa/internal/cache"
	"github.com/example/tiketa/internal/logging"
	"github.com/example/tiketa/internal/models"
)

const eventCacheTTL = 60 * time.Second

// EventSource fetches an event with its tiers.
type EventSource interface {
	GetEvent(ctx context.Context, idOrSlug string) (*models.Event, error)
}

// EventCatalog serves events from the cache, falling back to the backend.
type EventCatalog struct {
	source EventSource
	store  cache.Store
	log    *logrus.Entry
}

// NewEventCatalog creates a new EventCatalog.
func NewEventCatalog(source EventSource, store cache.Store, log *logrus.Entry) *EventCatalog {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	if log == nil {
		log = logging.Component(nil, "catalog")
	}
	return &EventCatalog{source: source, store: store, log: log}
}

// GetEvent returns the event identified by id or slug.
func (c *EventCatalog) GetEvent(ctx context.Context, idOrSlug string) (*models.Event, error) {
	key := "event:" + idOrSlug

	var event models.Event
	err := cache.GetJSON(ctx, c.store, key, &event)
	if err == nil {
		return &event, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.log.WithError(err).WithField("event", idOrSlug).Warn("event cache read failed")
	}

	fetched, err := c.source.GetEvent(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, c.store, key, fetched, eventCacheTTL); err != nil {
		c.log.WithError(err).WithField("event", idOrSlug).Warn("event cache write failed")
	}
	return fetched, nil
}
