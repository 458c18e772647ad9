package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pricescout/pricescout/internal/engine"
	"github.com/pricescout/pricescout/internal/events"
	"github.com/pricescout/pricescout/internal/extract"
	"github.com/pricescout/pricescout/internal/store"
)

// Store is the subset of product persistence the sweep needs (for testing).
type Store interface {
	ListAll(ctx context.Context) ([]store.TrackedProduct, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, price sql.NullFloat64, rating string) error
}

// Scheduler periodically re-scrapes every tracked product, persists fresh
// prices, and publishes events for observed changes.
type Scheduler struct {
	db        Store
	engine    *engine.Engine
	publisher *events.Publisher
	logger    *slog.Logger
	interval  time.Duration
}

func New(db Store, eng *engine.Engine, publisher *events.Publisher, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		db:        db,
		engine:    eng,
		publisher: publisher,
		logger:    logger.With("component", "scheduler"),
		interval:  interval,
	}
}

// Start runs refresh sweeps until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting scheduler", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("refresh sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single refresh sweep over all tracked products.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	products, err := s.db.ListAll(ctx)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}

	urls := make([]string, len(products))
	for i, p := range products {
		urls[i] = p.URL
	}

	s.logger.Info("refresh sweep started", "products", len(products))

	results := s.engine.RefreshBatch(ctx, urls)

	var updated, failed int
	// results are order-aligned with products; joining by index keeps rows
	// distinct when several users track the same URL (the cache absorbs the
	// duplicate fetch)
	for i, res := range results {
		if res.Err != nil {
			failed++
			s.logger.Warn("refresh failed", "url", res.URL, "error", res.Err)
			continue
		}
		product := products[i]
		if err := s.persist(ctx, product, res.Record); err != nil {
			failed++
			s.logger.Error("failed to persist refresh", "url", res.URL, "error", err)
			continue
		}
		updated++
	}

	s.logger.Info("refresh sweep finished", "updated", updated, "failed", failed)
	return nil
}

func (s *Scheduler) persist(ctx context.Context, product store.TrackedProduct, rec extract.Record) error {
	var price sql.NullFloat64
	if v, ok := extract.NormalizePrice(rec.Price); ok {
		price = sql.NullFloat64{Float64: v, Valid: true}
	}

	if err := s.db.UpdatePrice(ctx, product.ID, price, rec.Rating); err != nil {
		return err
	}

	if s.publisher == nil || !price.Valid {
		return nil
	}
	if product.CurrentPrice.Valid && product.CurrentPrice.Float64 == price.Float64 {
		return nil
	}

	change := events.PriceChange{
		ProductID:    product.ID,
		UserID:       product.UserID,
		Title:        product.Title,
		URL:          product.URL,
		Site:         product.Site,
		CurrentPrice: price.Float64,
	}
	if product.CurrentPrice.Valid {
		change.PreviousPrice = product.CurrentPrice.Float64
	}
	if product.PriceThreshold.Valid {
		change.Threshold = product.PriceThreshold.Float64
	}

	if err := s.publisher.PublishPriceChange(ctx, change); err != nil {
		s.logger.Error("failed to publish price change", "url", product.URL, "error", err)
	}
	return nil
}
