package cache

import (
	"sync"

	"github.com/google/uuid"

	"yap-client/internal/models"
	"yap-client/internal/utils"
)

// Event tells a subscriber that its key changed. Version increases by one with
// every mutation touching the key, including invalidations.
type Event struct {
	Key         models.ViewKey
	Version     uint64
	Invalidated bool // the entry was cleared and must be refetched from page 1
}

type Listener func(Event)

// PageCache is the keyed store of fetched feed pages. It is the sole owner of
// the pages it holds: reads return copies and every change goes through its
// methods. Each mutation is applied under one lock, and subscribers are
// notified after the lock is released, so no reader ever sees half an update.
type PageCache struct {
	mu        sync.RWMutex
	entries   map[models.ViewKey][]models.Page
	versions  map[models.ViewKey]uint64
	listeners map[models.ViewKey]map[uuid.UUID]Listener
}

func NewPageCache() *PageCache {
	return &PageCache{
		entries:   make(map[models.ViewKey][]models.Page),
		versions:  make(map[models.ViewKey]uint64),
		listeners: make(map[models.ViewKey]map[uuid.UUID]Listener),
	}
}

// Pages returns the pages stored for key in fetch order; empty when absent.
func (c *PageCache) Pages(key models.ViewKey) []models.Page {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pages := c.entries[key]
	out := make([]models.Page, len(pages))
	for i, page := range pages {
		out[i] = page.Clone()
	}
	return out
}

// Flattened concatenates the posts of every page for key, page order first and
// then within-page order. No de-duplication is applied.
func (c *PageCache) Flattened(key models.ViewKey) []models.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int
	for _, page := range c.entries[key] {
		n += len(page.Posts)
	}
	out := make([]models.Post, 0, n)
	for _, page := range c.entries[key] {
		for _, post := range page.Posts {
			out = append(out, post.Clone())
		}
	}
	return out
}

// LastPage returns the most recently appended page for key.
func (c *PageCache) LastPage(key models.ViewKey) (models.Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pages := c.entries[key]
	if len(pages) == 0 {
		return models.Page{}, false
	}
	return pages[len(pages)-1].Clone(), true
}

func (c *PageCache) Has(key models.ViewKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Keys lists the keys that currently hold pages.
func (c *PageCache) Keys() []models.ViewKey {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]models.ViewKey, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	return keys
}

func (c *PageCache) Version(key models.ViewKey) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[key]
}

// AppendPage adds page to the end of key's sequence, creating the entry on the
// first call.
func (c *PageCache) AppendPage(key models.ViewKey, page models.Page) {
	c.AppendPageIf(key, page, nil)
}

// AppendPageIf appends page only if accept, run under the cache lock with key's
// current pages, returns true. A nil accept always appends. accept must not
// call back into the cache.
func (c *PageCache) AppendPageIf(key models.ViewKey, page models.Page, accept func(current []models.Page) bool) bool {
	page = page.Clone()
	page.Key = key

	c.mu.Lock()
	if accept != nil && !accept(c.entries[key]) {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = append(c.entries[key], page)
	events := c.bumpLocked(false, key)
	c.mu.Unlock()

	c.notify(events)
	return true
}

// ReplacePages resets key's entry to the single page given, in one step.
func (c *PageCache) ReplacePages(key models.ViewKey, page models.Page) {
	c.ReplacePagesIf(key, page, nil)
}

// ReplacePagesIf is ReplacePages guarded the same way as AppendPageIf.
func (c *PageCache) ReplacePagesIf(key models.ViewKey, page models.Page, accept func(current []models.Page) bool) bool {
	page = page.Clone()
	page.Key = key

	c.mu.Lock()
	if accept != nil && !accept(c.entries[key]) {
		c.mu.Unlock()
		return false
	}
	c.entries[key] = []models.Page{page}
	events := c.bumpLocked(false, key)
	c.mu.Unlock()

	c.notify(events)
	return true
}

// Invalidate clears every page for key. Subscribers are told even when nothing
// was cached, so an in-flight load for that key can be superseded.
func (c *PageCache) Invalidate(keys ...models.ViewKey) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	events := c.bumpLocked(true, keys...)
	c.mu.Unlock()

	utils.Log.WithField("keys", len(keys)).Debug("page cache invalidated")
	c.notify(events)
}

// InvalidateWhere invalidates every cached or subscribed key matching match and
// returns the keys it cleared.
func (c *PageCache) InvalidateWhere(match func(models.ViewKey) bool) []models.ViewKey {
	c.mu.Lock()
	seen := make(map[models.ViewKey]struct{})
	var keys []models.ViewKey
	consider := func(key models.ViewKey) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		if match(key) {
			keys = append(keys, key)
		}
	}
	for key := range c.entries {
		consider(key)
	}
	for key := range c.listeners {
		consider(key)
	}
	for _, key := range keys {
		delete(c.entries, key)
	}
	events := c.bumpLocked(true, keys...)
	c.mu.Unlock()

	c.notify(events)
	return keys
}

// Clear invalidates everything, e.g. on logout.
func (c *PageCache) Clear() {
	c.InvalidateWhere(func(models.ViewKey) bool { return true })
}

// UpdatePostEverywhere replaces every copy of postID, in every page of every
// key, with updater(copy). It returns how many copies were replaced.
func (c *PageCache) UpdatePostEverywhere(postID string, updater func(models.Post) models.Post) int {
	c.mu.Lock()
	var touched []models.ViewKey
	var replaced int
	for key, pages := range c.entries {
		hit := false
		for i := range pages {
			for j := range pages[i].Posts {
				if pages[i].Posts[j].ID != postID {
					continue
				}
				updated := updater(pages[i].Posts[j].Clone())
				updated.ID = postID
				pages[i].Posts[j] = updated.Clone()
				replaced++
				hit = true
			}
		}
		if hit {
			touched = append(touched, key)
		}
	}
	events := c.bumpLocked(false, touched...)
	c.mu.Unlock()

	c.notify(events)
	return replaced
}

// RemovePostEverywhere deletes postID from every page of every key and returns
// how many copies were removed. Page boundaries and continuation state are kept.
func (c *PageCache) RemovePostEverywhere(postID string) int {
	c.mu.Lock()
	var touched []models.ViewKey
	var removed int
	for key, pages := range c.entries {
		hit := false
		for i := range pages {
			kept := pages[i].Posts[:0]
			for _, post := range pages[i].Posts {
				if post.ID == postID {
					removed++
					hit = true
					continue
				}
				kept = append(kept, post)
			}
			pages[i].Posts = kept
		}
		if hit {
			touched = append(touched, key)
		}
	}
	events := c.bumpLocked(false, touched...)
	c.mu.Unlock()

	c.notify(events)
	return removed
}

// Subscribe registers fn for changes to key and returns the function that
// removes it. fn runs outside the cache lock and may read the cache.
func (c *PageCache) Subscribe(key models.ViewKey, fn Listener) (unsubscribe func()) {
	id := uuid.New()

	c.mu.Lock()
	if c.listeners[key] == nil {
		c.listeners[key] = make(map[uuid.UUID]Listener)
	}
	c.listeners[key][id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners[key], id)
			if len(c.listeners[key]) == 0 {
				delete(c.listeners, key)
			}
		})
	}
}

type pendingEvent struct {
	event     Event
	listeners []Listener
}

// bumpLocked increments the version of each key and snapshots its listeners.
// Callers hold c.mu.
func (c *PageCache) bumpLocked(invalidated bool, keys ...models.ViewKey) []pendingEvent {
	events := make([]pendingEvent, 0, len(keys))
	for _, key := range keys {
		c.versions[key]++
		pe := pendingEvent{event: Event{Key: key, Version: c.versions[key], Invalidated: invalidated}}
		for _, fn := range c.listeners[key] {
			pe.listeners = append(pe.listeners, fn)
		}
		events = append(events, pe)
	}
	return events
}

func (c *PageCache) notify(events []pendingEvent) {
	for _, pe := range events {
		for _, fn := range pe.listeners {
			fn(pe.event)
		}
	}
}
