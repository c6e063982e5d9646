// Package feed drives paginated views over the page cache: one Controller per
// feed view and one CommentPager per expanded post.
package feed

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"yap-client/internal/cache"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

// DefaultPageSize is the number of posts requested per page.
const DefaultPageSize = 10

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateLoadingMore
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadingMore:
		return "loading-more"
	case StateError:
		return "error"
	}
	return "unknown"
}

// PageFetcher loads one page of a feed view.
type PageFetcher interface {
	ListPosts(ctx context.Context, key models.ViewKey, page, limit int) (*models.Page, error)
}

// Controller pages through one feed view. At most one fetch is in flight at a
// time; a response that belongs to a superseded load is dropped.
type Controller struct {
	mu         sync.Mutex
	key        models.ViewKey
	pages      *cache.PageCache
	remote     PageFetcher
	pageSize   int
	state      State
	err        error
	inFlight   bool
	generation atomic.Uint64 // written under mu, read by cache write guards without it
	listeners  []func()

	// set while started
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	reloads     sync.WaitGroup
}

func NewController(key models.ViewKey, pages *cache.PageCache, remote PageFetcher, pageSize int) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Controller{
		key:      key,
		pages:    pages,
		remote:   remote,
		pageSize: pageSize,
	}
}

func (c *Controller) log() *logrus.Entry {
	return utils.Log.WithField("view", c.Key().String())
}

// Start subscribes the controller to its cache entry. From then on an
// invalidation of the entry makes the controller reload page 1 by itself,
// using ctx for the fetch.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.unsubscribe = c.pages.Subscribe(c.key, c.onCacheEvent)
}

// Close stops reacting to the cache and waits for background reloads.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel, unsubscribe := c.cancel, c.unsubscribe
	c.cancel, c.unsubscribe = nil, nil
	c.generation.Add(1)
	c.inFlight = false
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	c.reloads.Wait()
}

// OnChange registers fn to run after every state or data change.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Controller) changed() {
	c.mu.Lock()
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (c *Controller) Key() models.ViewKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the last fetch error, cleared by the next successful fetch.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Posts is the flattened view of every loaded page.
func (c *Controller) Posts() []models.Post {
	return c.pages.Flattened(c.Key())
}

// HasMore reports whether the server said another page exists. It is false
// until the first page has loaded.
func (c *Controller) HasMore() bool {
	last, ok := c.pages.LastPage(c.Key())
	return ok && last.HasMore
}

// Load fetches page 1 and replaces the view's pages with it. A Load issued
// while another page-1 fetch is in flight is dropped.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight && c.state == StateLoading {
		c.mu.Unlock()
		return nil
	}
	gen := c.beginLoadLocked()
	c.mu.Unlock()
	c.changed()

	return c.fetchFirst(ctx, gen)
}

// beginLoadLocked supersedes whatever is in flight and marks a page-1 load.
func (c *Controller) beginLoadLocked() uint64 {
	gen := c.generation.Add(1)
	c.inFlight = true
	c.state = StateLoading
	return gen
}

func (c *Controller) fetchFirst(ctx context.Context, gen uint64) error {
	key := c.Key()
	page, err := c.remote.ListPosts(ctx, key, 1, c.pageSize)

	c.mu.Lock()
	if gen != c.generation.Load() {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.inFlight = false
		c.err = err
		c.state = StateError
		c.mu.Unlock()
		c.log().WithError(err).Warn("failed to load first page")
		c.changed()
		return err
	}
	c.mu.Unlock()

	page.Key = key
	page.Number = 1
	current := func([]models.Page) bool { return c.generation.Load() == gen }
	if !c.pages.ReplacePagesIf(key, *page, current) {
		return nil
	}

	c.finish(gen)
	return nil
}

// LoadMore fetches the page after the last loaded one. It does nothing when
// nothing is loaded yet, when the server reported no more pages, or while
// another fetch is in flight.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil
	}
	key := c.key
	last, ok := c.pages.LastPage(key)
	if !ok || !last.HasMore {
		c.mu.Unlock()
		return nil
	}
	c.inFlight = true
	c.state = StateLoadingMore
	gen := c.generation.Load()
	c.mu.Unlock()
	c.changed()

	next := last.Number + 1
	page, err := c.remote.ListPosts(ctx, key, next, c.pageSize)

	c.mu.Lock()
	if gen != c.generation.Load() {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.inFlight = false
		c.err = err
		c.state = StateError
		c.mu.Unlock()
		c.log().WithError(err).WithField("page", next).Warn("failed to load more")
		c.changed()
		return err
	}
	c.mu.Unlock()

	page.Key = key
	page.Number = next
	// The generation check and the append happen under the cache lock, so a
	// Load or invalidation that lands after the fetch still wins.
	follows := func(pages []models.Page) bool {
		return c.generation.Load() == gen &&
			len(pages) > 0 && pages[len(pages)-1].Number == last.Number
	}
	if !c.pages.AppendPageIf(key, *page, follows) {
		c.settle(gen)
		return nil
	}

	c.finish(gen)
	return nil
}

func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	if gen != c.generation.Load() {
		c.mu.Unlock()
		return
	}
	c.inFlight = false
	c.err = nil
	c.state = StateReady
	c.mu.Unlock()
	c.changed()
}

// settle ends a fetch whose page was dropped because the entry changed under
// it. A superseding load, if any, owns the state instead.
func (c *Controller) settle(gen uint64) {
	c.mu.Lock()
	if gen != c.generation.Load() {
		c.mu.Unlock()
		return
	}
	c.inFlight = false
	if _, ok := c.pages.LastPage(c.key); ok {
		c.state = StateReady
	} else {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.changed()
}

// SetSubject points the controller at another view and restarts at page 1.
func (c *Controller) SetSubject(ctx context.Context, key models.ViewKey) error {
	c.mu.Lock()
	if key == c.key {
		c.mu.Unlock()
		return nil
	}
	unsubscribe := c.unsubscribe
	started := c.cancel != nil
	c.unsubscribe = nil
	c.key = key
	c.generation.Add(1)
	c.inFlight = false
	c.err = nil
	c.state = StateIdle
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.pages.Invalidate(key)
	if started {
		unsub := c.pages.Subscribe(key, c.onCacheEvent)
		c.mu.Lock()
		c.unsubscribe = unsub
		c.mu.Unlock()
	}
	return c.Load(ctx)
}

func (c *Controller) onCacheEvent(e cache.Event) {
	if !e.Invalidated {
		c.changed()
		return
	}

	c.mu.Lock()
	if c.cancel == nil || e.Key != c.key {
		c.mu.Unlock()
		return
	}
	gen := c.beginLoadLocked()
	ctx := c.ctx
	c.reloads.Add(1)
	c.mu.Unlock()
	c.changed()

	go func() {
		defer c.reloads.Done()
		_ = c.fetchFirst(ctx, gen)
	}()
}
