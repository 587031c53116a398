package feed

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// source serves items in stored order, limit per page, with the item itself as id
type source struct {
	mu      sync.Mutex
	items   []int
	limit   int
	calls   atomic.Int32
	started chan string
	gate    chan struct{}
	fail    error
}

func newSource(n, limit int) *source {
	s := &source{limit: limit}
	for i := n; i >= 1; i-- {
		s.items = append(s.items, i)
	}
	return s
}

func (s *source) fetch(ctx context.Context, cursor string) (models.Page[int], error) {
	s.calls.Add(1)
	if s.started != nil {
		s.started <- cursor
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return models.Page[int]{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		err := s.fail
		s.fail = nil
		return models.Page[int]{}, err
	}
	start := 0
	if cursor != "" {
		start = slices.IndexFunc(s.items, func(v int) bool { return strconv.Itoa(v) == cursor }) + 1
	}
	end := min(start+s.limit, len(s.items))
	page := models.Page[int]{Items: slices.Clone(s.items[start:end])}
	if len(page.Items) > 0 {
		page.Cursor = strconv.Itoa(page.Items[len(page.Items)-1])
	}
	return page, nil
}

func TestPagerTerminatesAndKeepsOrder(t *testing.T) {
	src := newSource(5, 2)
	p := NewPager(src.fetch, false)
	ctx := context.Background()

	var all []int
	for !p.Exhausted() {
		page, err := p.Next(ctx)
		require.NoError(t, err)
		all = append(all, page.Items...)
	}

	assert.Equal(t, []int{5, 4, 3, 2, 1}, all)
	assert.EqualValues(t, 4, src.calls.Load(), "three full pages and one empty page")

	_, err := p.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.EqualValues(t, 4, src.calls.Load())
}

func TestPagesIsLazyAndRestartable(t *testing.T) {
	src := newSource(6, 2)
	p := NewPager(src.fetch, false)
	ctx := context.Background()

	for page, err := range p.Pages(ctx) {
		require.NoError(t, err)
		assert.Equal(t, []int{6, 5}, page.Items)
		break
	}
	assert.EqualValues(t, 1, src.calls.Load())

	var all []int
	for page, err := range p.Pages(ctx) {
		require.NoError(t, err)
		all = append(all, page.Items...)
	}
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, all)
	assert.False(t, p.Exhausted(), "ranging does not move the pager itself")
}

func TestPagesYieldsError(t *testing.T) {
	src := newSource(3, 2)
	src.fail = errors.New("offline")
	p := NewPager(src.fetch, false)

	var errs int
	for _, err := range p.Pages(context.Background()) {
		if err != nil {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestFeedLoadsUntilExhausted(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(3, 2)
	f := New(c, "posts", "1", src.fetch)
	ctx := context.Background()

	s, _ := f.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.True(t, s.HasMore)

	require.NoError(t, f.FetchNext(ctx))
	s, _ = f.Snapshot()
	assert.Equal(t, Loaded, s.State)
	assert.Equal(t, "2", s.Cursor)

	require.NoError(t, f.FetchNext(ctx))
	require.NoError(t, f.FetchNext(ctx))
	s, _ = f.Snapshot()
	assert.Equal(t, Exhausted, s.State)
	assert.False(t, s.HasMore)
	assert.Equal(t, []int{3, 2, 1}, f.Items())

	require.NoError(t, f.FetchNext(ctx))
	assert.EqualValues(t, 3, src.calls.Load(), "no request once exhausted")
}

func TestFeedDeduplicatesInflightCursor(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(4, 2)
	src.started = make(chan string, 4)
	src.gate = make(chan struct{})
	f := New(c, "posts", "1", src.fetch)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.FetchNext(ctx) }()
	assert.Equal(t, "", <-src.started)

	s, _ := f.Snapshot()
	assert.Equal(t, Loading, s.State)
	require.NoError(t, f.FetchNext(ctx))
	require.NoError(t, f.FetchNext(ctx))

	close(src.gate)
	require.NoError(t, <-done)

	assert.EqualValues(t, 1, src.calls.Load())
	assert.Equal(t, []int{4, 3}, f.Items())
}

func TestFeedRestartDropsLateResult(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(4, 2)
	src.started = make(chan string, 4)
	src.gate = make(chan struct{})
	f := New(c, "posts", "1", src.fetch)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- f.FetchNext(ctx) }()
	<-src.started

	f.Restart()
	close(src.gate)
	require.NoError(t, <-done)

	s, _ := f.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.Empty(t, s.Items())

	require.NoError(t, f.FetchNext(ctx))
	<-src.started
	assert.Equal(t, []int{4, 3}, f.Items())
}

func TestFeedCloseEvictsAndRejects(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(4, 2)
	f := New(c, "users", "7", src.fetch)
	require.True(t, c.Contains(cache.FeedKey("users", "7")))

	f.Close()
	assert.False(t, c.Contains(f.Key()))
	assert.ErrorIs(t, f.FetchNext(context.Background()), ErrClosed)
	assert.Zero(t, src.calls.Load())
}

func TestCappedFeedFetchesOnce(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(30, 20)
	f := New(c, "recent", "1", src.fetch, Capped())
	ctx := context.Background()

	require.NoError(t, f.FetchNext(ctx))
	require.NoError(t, f.FetchNext(ctx))

	s, _ := f.Snapshot()
	assert.Equal(t, Exhausted, s.State)
	assert.Len(t, s.Items(), 20)
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestFeedReloadsAfterInvalidation(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(4, 2)
	f := New(c, "posts", "1", src.fetch)
	ctx := context.Background()
	require.NoError(t, f.FetchNext(ctx))
	require.NoError(t, f.FetchNext(ctx))

	src.mu.Lock()
	src.items = append([]int{9}, src.items...)
	src.mu.Unlock()

	updates := make(chan Snapshot[int], 4)
	cancel := f.Subscribe(func(s Snapshot[int]) { updates <- s })
	defer cancel()

	c.InvalidatePrefix(cache.FeedPrefix)

	select {
	case s := <-updates:
		assert.Equal(t, []int{9, 4, 3, 2}, s.Items())
		assert.Equal(t, Loaded, s.State)
	case <-time.After(time.Second):
		t.Fatal("feed did not reload")
	}
	c.Wait()
	assert.EqualValues(t, 4, src.calls.Load())
	assert.Equal(t, []int{9, 4, 3, 2}, f.Items())
}

func TestIdleFeedIgnoresInvalidation(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(4, 2)
	f := New(c, "posts", "1", src.fetch)

	updates := make(chan Snapshot[int], 4)
	cancel := f.Subscribe(func(s Snapshot[int]) { updates <- s })
	defer cancel()

	c.InvalidatePrefix(cache.FeedPrefix)
	c.Wait()

	assert.Zero(t, src.calls.Load())
	s, _ := f.Snapshot()
	assert.Equal(t, Idle, s.State)
	assert.Empty(t, s.Items())

	require.NoError(t, f.FetchNext(context.Background()))
	assert.Equal(t, []int{4, 3}, f.Items())
	assert.EqualValues(t, 1, src.calls.Load())
}

func TestFeedErrorKeepsPages(t *testing.T) {
	c := cache.New()
	defer c.Close()
	src := newSource(4, 2)
	f := New(c, "posts", "1", src.fetch)
	ctx := context.Background()
	require.NoError(t, f.FetchNext(ctx))

	offline := errors.New("offline")
	src.fail = offline
	require.ErrorIs(t, f.FetchNext(ctx), offline)

	s, _ := f.Snapshot()
	assert.Equal(t, Loaded, s.State)
	assert.ErrorIs(t, s.Err, offline)
	assert.Equal(t, []int{4, 3}, s.Items())

	require.NoError(t, f.FetchNext(ctx))
	assert.Equal(t, []int{4, 3, 2, 1}, f.Items())
}
