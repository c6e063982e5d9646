package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yap-client/internal/cache"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

type pageRequest struct {
	key  models.ViewKey
	page int
}

// stubPages serves canned pages per view. A request for a page in hold
// blocks until the matching channel is closed.
type stubPages struct {
	mu       sync.Mutex
	pages    map[models.ViewKey][]models.Page
	requests []pageRequest
	hold     map[int]chan struct{}
	arrived  chan pageRequest
	fail     error
}

func newStubPages() *stubPages {
	return &stubPages{
		pages:   make(map[models.ViewKey][]models.Page),
		hold:    make(map[int]chan struct{}),
		arrived: make(chan pageRequest, 16),
	}
}

func (s *stubPages) set(key models.ViewKey, pages ...models.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[key] = pages
}

func (s *stubPages) holdPage(n int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.hold[n] = ch
	return ch
}

func (s *stubPages) calls() []pageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pageRequest(nil), s.requests...)
}

func (s *stubPages) ListPosts(ctx context.Context, key models.ViewKey, page, limit int) (*models.Page, error) {
	s.mu.Lock()
	s.requests = append(s.requests, pageRequest{key: key, page: page})
	hold := s.hold[page]
	delete(s.hold, page)
	fail := s.fail
	pages := s.pages[key]
	s.mu.Unlock()

	s.arrived <- pageRequest{key: key, page: page}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, utils.NewTransportError("list posts", ctx.Err())
		}
	}
	if fail != nil {
		return nil, fail
	}
	if page > len(pages) {
		return &models.Page{Key: key, Number: page}, nil
	}
	p := pages[page-1].Clone()
	return &p, nil
}

func mkPost(id string) models.Post {
	return models.Post{ID: id, Text: id, Likes: []string{}}
}

func mkPage(n int, hasMore bool, ids ...string) models.Page {
	p := models.Page{Number: n, HasMore: hasMore}
	for _, id := range ids {
		p.Posts = append(p.Posts, mkPost(id))
	}
	return p
}

func postIDs(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestLoadThenLoadMore(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	stub.set(key, mkPage(1, true, "A", "B", "C"), mkPage(2, false, "D", "E"))

	c := NewController(key, cache.NewPageCache(), stub, 3)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.HasMore())

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, StateReady, c.State())
	assert.True(t, c.HasMore())

	require.NoError(t, c.LoadMore(context.Background()))
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, postIDs(c.Posts()))
	assert.False(t, c.HasMore())

	// nothing more to fetch
	require.NoError(t, c.LoadMore(context.Background()))
	assert.Len(t, stub.calls(), 2)
}

func TestLoadMoreWhileInFlightIsDropped(t *testing.T) {
	stub := newStubPages()
	key := models.FollowingKey()
	stub.set(key, mkPage(1, true, "A"), mkPage(2, true, "B"), mkPage(3, false, "C"))
	c := NewController(key, cache.NewPageCache(), stub, 1)
	require.NoError(t, c.Load(context.Background()))
	<-stub.arrived

	release := stub.holdPage(2)
	done := make(chan error, 1)
	go func() { done <- c.LoadMore(context.Background()) }()
	<-stub.arrived
	assert.Equal(t, StateLoadingMore, c.State())

	for i := 0; i < 5; i++ {
		require.NoError(t, c.LoadMore(context.Background()))
	}
	close(release)
	require.NoError(t, <-done)

	assert.Len(t, stub.calls(), 2)
	assert.Equal(t, []string{"A", "B"}, postIDs(c.Posts()))
	assert.Equal(t, StateReady, c.State())
}

func TestFailedLoadMoreKeepsLastGoodData(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	stub.set(key, mkPage(1, true, "A", "B"))
	c := NewController(key, cache.NewPageCache(), stub, 2)
	require.NoError(t, c.Load(context.Background()))

	stub.mu.Lock()
	stub.fail = utils.NewServerError(500, "boom")
	stub.mu.Unlock()

	err := c.LoadMore(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, err, c.Err())
	assert.Equal(t, []string{"A", "B"}, postIDs(c.Posts()))
	assert.True(t, c.HasMore())

	stub.mu.Lock()
	stub.fail = nil
	stub.mu.Unlock()
	require.NoError(t, c.LoadMore(context.Background()))
	assert.NoError(t, c.Err())
	assert.Equal(t, StateReady, c.State())
}

func TestStaleLoadMoreNeverAppendsOntoFreshLoad(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	stub.set(key, mkPage(1, true, "A"), mkPage(2, false, "B"))
	c := NewController(key, cache.NewPageCache(), stub, 1)
	require.NoError(t, c.Load(context.Background()))
	<-stub.arrived

	release := stub.holdPage(2)
	done := make(chan error, 1)
	go func() { done <- c.LoadMore(context.Background()) }()
	<-stub.arrived

	stub.set(key, mkPage(1, true, "Z"), mkPage(2, false, "B"))
	require.NoError(t, c.Load(context.Background()))
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"Z"}, postIDs(c.Posts()))
	assert.Equal(t, StateReady, c.State())
}

func TestLoadMoreDropsPageWhenEntryChangedUnderIt(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	pages := cache.NewPageCache()
	stub.set(key, mkPage(1, true, "A"), mkPage(2, false, "B"))
	c := NewController(key, pages, stub, 1)
	require.NoError(t, c.Load(context.Background()))
	<-stub.arrived

	release := stub.holdPage(2)
	done := make(chan error, 1)
	go func() { done <- c.LoadMore(context.Background()) }()
	<-stub.arrived

	// Not started, so the controller does not see the invalidation until the
	// page 2 write is checked against the entry.
	pages.Invalidate(key)
	close(release)
	require.NoError(t, <-done)

	assert.False(t, pages.Has(key))
	assert.Empty(t, c.Posts())
	assert.Equal(t, StateIdle, c.State())

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []string{"A"}, postIDs(c.Posts()))
	assert.Equal(t, StateReady, c.State())
}

func TestInvalidationReloadsPageOne(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	pages := cache.NewPageCache()
	stub.set(key, mkPage(1, true, "A"), mkPage(2, false, "B"))

	c := NewController(key, pages, stub, 1)
	c.Start(context.Background())
	defer c.Close()
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.LoadMore(context.Background()))
	assert.Equal(t, []string{"A", "B"}, postIDs(c.Posts()))

	stub.set(key, mkPage(1, true, "N", "A"))
	pages.Invalidate(key)

	assert.Eventually(t, func() bool {
		return c.State() == StateReady && assert.ObjectsAreEqual([]string{"N", "A"}, postIDs(c.Posts()))
	}, time.Second, 5*time.Millisecond)

	last := stub.calls()[len(stub.calls())-1]
	assert.Equal(t, 1, last.page)
}

func TestClosedControllerIgnoresInvalidation(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	pages := cache.NewPageCache()
	stub.set(key, mkPage(1, false, "A"))

	c := NewController(key, pages, stub, 1)
	c.Start(context.Background())
	require.NoError(t, c.Load(context.Background()))
	c.Close()

	pages.Invalidate(key)
	assert.Len(t, stub.calls(), 1)
	assert.Empty(t, c.Posts())
}

func TestSetSubjectRestartsAtPageOne(t *testing.T) {
	stub := newStubPages()
	alice, bob := models.UserPostsKey("alice"), models.UserPostsKey("bob")
	stub.set(alice, mkPage(1, true, "A1"), mkPage(2, false, "A2"))
	stub.set(bob, mkPage(1, false, "B1"))
	pages := cache.NewPageCache()

	c := NewController(alice, pages, stub, 1)
	c.Start(context.Background())
	defer c.Close()
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.LoadMore(context.Background()))

	require.NoError(t, c.SetSubject(context.Background(), bob))
	assert.Equal(t, bob, c.Key())
	assert.Equal(t, []string{"B1"}, postIDs(c.Posts()))
	assert.Equal(t, pageRequest{key: bob, page: 1}, stub.calls()[2])

	// the old view no longer drives this controller
	pages.Invalidate(alice)
	assert.Len(t, stub.calls(), 3)
}

func TestOnChangeFiresForCacheUpdates(t *testing.T) {
	stub := newStubPages()
	key := models.ForYouKey()
	pages := cache.NewPageCache()
	stub.set(key, mkPage(1, false, "A"))

	c := NewController(key, pages, stub, 1)
	c.Start(context.Background())
	defer c.Close()
	require.NoError(t, c.Load(context.Background()))

	var mu sync.Mutex
	var seen [][]string
	c.OnChange(func() {
		mu.Lock()
		seen = append(seen, postIDs(c.Posts()))
		mu.Unlock()
	})

	pages.UpdatePostEverywhere("A", func(p models.Post) models.Post { return p.WithLikes([]string{"u1"}) })

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, []string{"A"}, seen[len(seen)-1])
	assert.Equal(t, []string{"u1"}, c.Posts()[0].Likes)
}

func TestLoadErrorIsSurfaced(t *testing.T) {
	stub := newStubPages()
	stub.fail = errors.New("offline")
	c := NewController(models.ForYouKey(), cache.NewPageCache(), stub, 10)

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateError, c.State())
	assert.Empty(t, c.Posts())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "loading-more", StateLoadingMore.String())
	assert.Equal(t, "unknown", State(42).String())
}
