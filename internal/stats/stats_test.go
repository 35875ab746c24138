package stats

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/lobbyhost/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestHTTPProviderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/players/alice":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"alice","games":12,"wins":8,"losses":4,"rating":1640.5,"deviation":90,"rank":3,"lastChange":14}`))
		case "/players/newbie":
			w.Write([]byte(`{"id":"newbie","games":0}`))
		case "/players/busy":
			w.WriteHeader(http.StatusServiceUnavailable)
		case "/players/bad":
			w.WriteHeader(http.StatusBadRequest)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, quietLogger())
	ctx := context.Background()

	s, err := p.Fetch(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, s.Fetched)
	assert.Equal(t, "alice", s.PlayerID)
	assert.Equal(t, 12, s.Games)
	assert.Equal(t, 8, s.Wins)
	require.NotNil(t, s.Rating)
	assert.Equal(t, 1640.5, *s.Rating)
	assert.Equal(t, 3, s.Rank)

	s, err = p.Fetch(ctx, "newbie")
	require.NoError(t, err)
	assert.True(t, s.Fetched)
	assert.Nil(t, s.Rating)

	_, err = p.Fetch(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = p.Fetch(ctx, "busy")
	assert.ErrorIs(t, err, ErrTransient)

	_, err = p.Fetch(ctx, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHTTPProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewHTTPProvider(url, time.Second, quietLogger())
	_, err := p.Fetch(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestHTTPProviderContextEnd(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProvider(srv.URL, time.Minute, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Fetch(ctx, "slow")
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = p.Fetch(ctx, "slow")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTransient)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int:
			*p = r.values[i].(int)
		case *float64:
			*p = r.values[i].(float64)
		case **float64:
			if v, ok := r.values[i].(float64); ok {
				*p = &v
			}
		}
	}
	return nil
}

type fakeQuerier struct{ row fakeRow }

func (q fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row { return q.row }

func TestPostgresProvider(t *testing.T) {
	p := NewPostgresProvider(fakeQuerier{row: fakeRow{values: []any{30, 20, 10, 1800.0, 60.0, 0.05, 2, 9.0}}})

	s, err := p.Fetch(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, s.Fetched)
	require.NotNil(t, s.Rating)
	assert.InDelta(t, 1800.0, *s.Rating, 1e-9)
	assert.InDelta(t, 60.0, s.Deviation, 1e-9)
	assert.Equal(t, 2, s.Rank)

	p = NewPostgresProvider(fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})
	_, err = p.Fetch(context.Background(), "p2")
	assert.ErrorIs(t, err, ErrNotFound)

	p = NewPostgresProvider(fakeQuerier{row: fakeRow{err: errors.New("conn refused")}})
	_, err = p.Fetch(context.Background(), "p3")
	assert.ErrorIs(t, err, ErrTransient)
}

func TestPostgresProviderContextEnd(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	p := NewPostgresProvider(fakeQuerier{row: fakeRow{err: context.DeadlineExceeded}})
	_, err := p.Fetch(ctx, "p1")
	assert.ErrorIs(t, err, ErrTransient)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	p = NewPostgresProvider(fakeQuerier{row: fakeRow{err: context.Canceled}})
	_, err = p.Fetch(ctx, "p1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestRandomProviderDeterministic(t *testing.T) {
	a := NewRandomProvider(42, 200)
	b := NewRandomProvider(42, 200)

	for _, id := range []string{"x", "y", "z"} {
		sa, err := a.Fetch(context.Background(), id)
		require.NoError(t, err)
		sb, err := b.Fetch(context.Background(), id)
		require.NoError(t, err)

		assert.Equal(t, sa, sb)
		assert.True(t, sa.Fetched)
		require.NotNil(t, sa.Rating)
		assert.Equal(t, sa.Games, sa.Wins+sa.Losses)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Fetch(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttl     map[string]time.Duration
	readErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return redis.NewStringResult("", f.readErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttl[key] = exp
	return redis.NewStatusResult("OK", nil)
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingProvider) Fetch(_ context.Context, id string) (models.PlayerStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return models.PlayerStats{}, c.err
	}
	return models.PlayerStats{PlayerID: id, Games: 5, Rating: models.Float(1550), Fetched: true}, nil
}

func TestCachedProvider(t *testing.T) {
	inner := &countingProvider{}
	rdb := newFakeRedis()
	p := NewCachedProvider(inner, rdb, time.Minute, quietLogger())

	first, err := p.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	second, err := p.Fetch(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, time.Minute, rdb.ttl["lobbyhost:stats:alice"])

	var stored models.PlayerStats
	require.NoError(t, json.Unmarshal([]byte(rdb.data["lobbyhost:stats:alice"]), &stored))
	assert.Equal(t, 5, stored.Games)
}

func TestCachedProviderDegrades(t *testing.T) {
	inner := &countingProvider{}
	rdb := newFakeRedis()
	rdb.readErr = errors.New("connection refused")
	p := NewCachedProvider(inner, rdb, time.Minute, quietLogger())

	s, err := p.Fetch(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", s.PlayerID)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedProviderSkipsFailures(t *testing.T) {
	inner := &countingProvider{err: ErrNotFound}
	rdb := newFakeRedis()
	p := NewCachedProvider(inner, rdb, time.Minute, quietLogger())

	_, err := p.Fetch(context.Background(), "carol")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, rdb.data)
}

func TestNewProvider(t *testing.T) {
	deps := Deps{Logger: quietLogger()}

	p, err := NewProvider(Options{Backend: BackendRandom, RandomSpread: 100}, deps)
	require.NoError(t, err)
	assert.IsType(t, &RandomProvider{}, p)

	p, err = NewProvider(Options{Backend: BackendHTTP, BaseURL: "http://leaderboard", Timeout: time.Second}, deps)
	require.NoError(t, err)
	assert.IsType(t, &HTTPProvider{}, p)

	_, err = NewProvider(Options{Backend: BackendHTTP}, deps)
	assert.Error(t, err)

	_, err = NewProvider(Options{Backend: BackendPostgres}, deps)
	assert.Error(t, err)

	_, err = NewProvider(Options{Backend: "carrier-pigeon"}, deps)
	assert.Error(t, err)

	deps.Redis = newFakeRedis()
	p, err = NewProvider(Options{Backend: BackendRandom, CacheTTL: time.Hour}, deps)
	require.NoError(t, err)
	assert.IsType(t, &CachedProvider{}, p)
}
