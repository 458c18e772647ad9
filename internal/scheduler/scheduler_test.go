package scheduler

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/pricescout/internal/catalog"
	"github.com/pricescout/pricescout/internal/engine"
	"github.com/pricescout/pricescout/internal/events"
	"github.com/pricescout/pricescout/internal/fetch"
	"github.com/pricescout/pricescout/internal/store"
)

type priceUpdate struct {
	id    uuid.UUID
	price sql.NullFloat64
}

type fakeStore struct {
	mu       sync.Mutex
	products []store.TrackedProduct
	updates  []priceUpdate
}

func (f *fakeStore) ListAll(ctx context.Context) ([]store.TrackedProduct, error) {
	return f.products, nil
}

func (f *fakeStore) UpdatePrice(ctx context.Context, id uuid.UUID, price sql.NullFloat64, rating string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, priceUpdate{id: id, price: price})
	return nil
}

type stubStatic struct {
	html string
}

func (s *stubStatic) FetchPage(ctx context.Context, url string) (*fetch.Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return nil, err
	}
	return &fetch.Result{Doc: doc, Tier: fetch.TierStatic, URL: url}, nil
}

type fakeRedis struct {
	mu    sync.Mutex
	added []*redis.XAddArgs
}

func (f *fakeRedis) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, args)
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("1-0")
	return cmd
}

func (f *fakeRedis) Close() error { return nil }

func newSweepEngine(t *testing.T, html string) *engine.Engine {
	t.Helper()
	cat, err := catalog.New(map[string]catalog.SelectorSet{
		"shop": {
			Hosts:        []string{"shop.example"},
			Container:    "div.card",
			Title:        ".title",
			Price:        ".price",
			ProductTitle: "h1.pt",
			ProductPrice: "span.pp",
		},
	})
	require.NoError(t, err)

	eng, err := engine.New(cat, &stubStatic{html: html}, nil, engine.Options{})
	require.NoError(t, err)
	return eng
}

func TestRunOnceUpdatesEveryRowWhenUsersShareURL(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	sameURL := "https://shop.example/p/42"

	db := &fakeStore{products: []store.TrackedProduct{
		{
			ID:           id1,
			UserID:       uuid.New(),
			Title:        "Keyboard",
			URL:          sameURL,
			Site:         "shop",
			CurrentPrice: sql.NullFloat64{Float64: 899, Valid: true},
		},
		{
			ID:           id2,
			UserID:       uuid.New(),
			Title:        "Keyboard",
			URL:          sameURL,
			Site:         "shop",
			CurrentPrice: sql.NullFloat64{Float64: 799, Valid: true},
		},
	}}

	eng := newSweepEngine(t, `<html><body><h1 class="pt">Keyboard</h1><span class="pp">$799.00</span></body></html>`)
	redisFake := &fakeRedis{}
	s := New(db, eng, events.NewPublisher(redisFake, slog.Default()), slog.Default(), time.Hour)

	require.NoError(t, s.RunOnce(context.Background()))

	// both rows get exactly one price write, keyed by their own id
	require.Len(t, db.updates, 2)
	seen := map[uuid.UUID]int{}
	for _, u := range db.updates {
		seen[u.id]++
		assert.InDelta(t, 799, u.price.Float64, 0.001)
	}
	assert.Equal(t, 1, seen[id1])
	assert.Equal(t, 1, seen[id2])

	// only the row whose price actually moved publishes an event
	assert.Len(t, redisFake.added, 1)
}

func TestRunOnceEmptyStore(t *testing.T) {
	db := &fakeStore{}
	eng := newSweepEngine(t, `<html></html>`)
	s := New(db, eng, nil, slog.Default(), time.Hour)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, db.updates)
}
