package feed

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/golang/glog"

	"github.com/anonto42/nano-midea/client/internal/cache"
	"github.com/anonto42/nano-midea/client/internal/models"
)

// ErrClosed is returned by operations on a closed feed
var ErrClosed = errors.New("feed closed")

var errSuperseded = errors.New("feed restarted while loading")

// State is the position of a feed in its pagination state machine
type State int

const (
	Idle State = iota
	Loading
	Loaded
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the displayable state of a feed. Pages keep fetch order.
type Snapshot[T any] struct {
	State   State            `json:"state"`
	Pages   []models.Page[T] `json:"pages"`
	Cursor  string           `json:"cursor"`
	HasMore bool             `json:"has_more"`
	Err     error            `json:"-"`
}

// Items concatenates the items of every page
func (s Snapshot[T]) Items() []T {
	var out []T
	for _, p := range s.Pages {
		out = append(out, p.Items...)
	}
	return out
}

// Option configures a Feed
type Option func(*options)

type options struct {
	capped bool
}

// Capped makes the feed fetch a single page and then report no more
func Capped() Option {
	return func(o *options) { o.capped = true }
}

// Feed is one view's pagination over a list query. Its snapshot lives in the
// cache under a feed key, so invalidating that key (or the feed prefix) makes
// the feed reload the pages it had.
type Feed[T any] struct {
	cache *cache.Cache
	key   string
	fetch FetchFunc[T]
	opts  options

	mu        sync.Mutex
	pages     []models.Page[T]
	cursor    string
	exhausted bool
	loading   bool
	inflight  string
	lastErr   error
	epoch     uint64
	closed    bool
	unsub     func()
}

// New creates an idle feed stored under cache.FeedKey(name, view)
func New[T any](c *cache.Cache, name, view string, fetch FetchFunc[T], opts ...Option) *Feed[T] {
	f := &Feed[T]{cache: c, key: cache.FeedKey(name, view), fetch: fetch}
	for _, o := range opts {
		o(&f.opts)
	}
	f.mu.Lock()
	f.publish()
	f.mu.Unlock()
	f.unsub = c.Subscribe(f.key, func(any) {})
	return f
}

// Key is the cache key holding the feed's snapshot
func (f *Feed[T]) Key() string { return f.key }

// FetchNext loads the page after the current cursor. It returns immediately,
// without a request, when the feed is exhausted or a fetch for the same cursor
// is already running. Results that arrive after Restart or Close are dropped.
func (f *Feed[T]) FetchNext(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.exhausted || (f.loading && f.inflight == f.cursor) {
		f.mu.Unlock()
		return nil
	}
	cursor, epoch := f.cursor, f.epoch
	f.loading, f.inflight = true, cursor
	f.publish()
	f.mu.Unlock()

	page, err := f.fetch(ctx, cursor)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.epoch != epoch {
		glog.V(1).Infof("feed: %s: dropping page for cursor %q", f.key, cursor)
		return nil
	}
	f.loading, f.inflight = false, ""
	if err != nil {
		f.lastErr = err
		f.publish()
		return err
	}
	f.lastErr = nil
	f.pages = append(f.pages, page)
	if page.Cursor == "" || f.opts.capped {
		f.exhausted = true
	} else {
		f.cursor = page.Cursor
	}
	f.publish()
	return nil
}

// Snapshot returns the cached state of the feed. When the feed key was
// invalidated the previous state is returned with stale set while the pages
// reload in the background.
func (f *Feed[T]) Snapshot() (Snapshot[T], bool) {
	if v, stale, ok := f.cache.Read(f.key); ok {
		if s, ok := v.(Snapshot[T]); ok {
			return s, stale
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(), false
}

// Items returns the concatenated items of the current snapshot
func (f *Feed[T]) Items() []T {
	s, _ := f.Snapshot()
	return s.Items()
}

// Subscribe calls fn with every new snapshot until cancel is called
func (f *Feed[T]) Subscribe(fn func(Snapshot[T])) (cancel func()) {
	return f.cache.Subscribe(f.key, func(v any) {
		if s, ok := v.(Snapshot[T]); ok {
			fn(s)
		}
	})
}

// Restart forgets every page and returns the feed to Idle. A fetch still
// running is dropped when it completes.
func (f *Feed[T]) Restart() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.reset()
	f.publish()
}

// Close ends the view. The feed's cache entry is evicted and late results
// are discarded.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.reset()
	f.mu.Unlock()
	f.unsub()
}

func (f *Feed[T]) reset() {
	f.epoch++
	f.pages = nil
	f.cursor = ""
	f.exhausted = false
	f.loading, f.inflight = false, ""
	f.lastErr = nil
}

// reload re-runs the cursor protocol from empty for as many pages as the feed
// had loaded. It is the feed key's cache fetcher. A feed with nothing loaded
// or loading stays Idle and costs no request.
func (f *Feed[T]) reload(ctx context.Context) (any, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	want, epoch := len(f.pages), f.epoch
	if want == 0 && f.loading {
		want = 1
	}
	if want == 0 {
		defer f.mu.Unlock()
		f.publish()
		return f.snapshot(), nil
	}
	f.mu.Unlock()

	p := NewPager(f.fetch, f.opts.capped)
	var pages []models.Page[T]
	for p.Fetched() < want && !p.Exhausted() {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}
	if f.epoch != epoch {
		return nil, errSuperseded
	}
	f.epoch++
	f.pages = pages
	f.cursor = p.Cursor()
	f.exhausted = p.Exhausted()
	f.loading, f.inflight = false, ""
	f.lastErr = nil
	f.publish()
	return f.snapshot(), nil
}

// publish writes the snapshot to the cache; callers hold f.mu
func (f *Feed[T]) publish() {
	f.cache.Register(f.key, f.reload)
	f.cache.Write(f.key, f.snapshot())
}

func (f *Feed[T]) snapshot() Snapshot[T] {
	s := Snapshot[T]{
		Pages:   slices.Clone(f.pages),
		Cursor:  f.cursor,
		HasMore: !f.exhausted,
		Err:     f.lastErr,
	}
	switch {
	case f.loading:
		s.State = Loading
	case f.exhausted:
		s.State = Exhausted
	case len(f.pages) > 0:
		s.State = Loaded
	default:
		s.State = Idle
	}
	return s
}
