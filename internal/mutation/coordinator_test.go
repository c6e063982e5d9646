package mutation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yap-client/internal/cache"
	"yap-client/internal/feed"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

// stubRemote answers every call from its fields and counts calls.
type stubRemote struct {
	mu      sync.Mutex
	calls   map[string]int
	err     error
	likes   []string
	state   *models.CommentsState
	created *models.Post
	updates []models.ProfileUpdate
	block   chan struct{}
}

func newStubRemote() *stubRemote {
	return &stubRemote{calls: make(map[string]int)}
}

func (s *stubRemote) record(name string) error {
	s.mu.Lock()
	s.calls[name]++
	block, err := s.block, s.err
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (s *stubRemote) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubRemote) CreatePost(ctx context.Context, text, image string) (*models.Post, error) {
	if err := s.record("create"); err != nil {
		return nil, err
	}
	return s.created, nil
}

func (s *stubRemote) DeletePost(ctx context.Context, postID string) error {
	return s.record("delete")
}

func (s *stubRemote) ToggleLike(ctx context.Context, postID string) ([]string, error) {
	if err := s.record("like"); err != nil {
		return nil, err
	}
	return s.likes, nil
}

func (s *stubRemote) AddComment(ctx context.Context, postID, text string) (*models.CommentsState, error) {
	if err := s.record("comment"); err != nil {
		return nil, err
	}
	return s.state, nil
}

func (s *stubRemote) Follow(ctx context.Context, userID string) error {
	return s.record("follow")
}

func (s *stubRemote) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	s.mu.Lock()
	s.updates = append(s.updates, update)
	s.mu.Unlock()
	return s.record("update")
}

func (s *stubRemote) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if err := s.record("login"); err != nil {
		return nil, err
	}
	return &models.User{ID: "u1", Username: creds.Username}, nil
}

func (s *stubRemote) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	if err := s.record("signup"); err != nil {
		return nil, err
	}
	return &models.User{ID: "u1", Username: req.Username}, nil
}

func (s *stubRemote) Logout(ctx context.Context) error {
	return s.record("logout")
}

func (s *stubRemote) DeleteNotifications(ctx context.Context) error {
	return s.record("notifications")
}

type pagerMap map[string]*feed.CommentPager

func (m pagerMap) OpenPager(postID string) (*feed.CommentPager, bool) {
	p, ok := m[postID]
	return p, ok
}

func (m pagerMap) ForgetPager(postID string) { delete(m, postID) }

func post(id string) models.Post {
	return models.Post{ID: id, Text: "text " + id, Likes: []string{}, Comments: []models.Comment{}}
}

func page(n int, hasMore bool, ids ...string) models.Page {
	p := models.Page{Number: n, HasMore: hasMore}
	for _, id := range ids {
		p.Posts = append(p.Posts, post(id))
	}
	return p
}

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

type fixture struct {
	remote  *stubRemote
	pages   *cache.PageCache
	queries *cache.QueryCache
	pagers  pagerMap
	coord   *Coordinator
}

func newFixture() *fixture {
	f := &fixture{
		remote:  newStubRemote(),
		pages:   cache.NewPageCache(),
		queries: cache.NewQueryCache(time.Minute),
		pagers:  pagerMap{},
	}
	f.coord = NewCoordinator(f.remote, f.pages, f.queries, f.pagers)
	f.pages.AppendPage(models.ForYouKey(), page(1, true, "A", "B", "C"))
	f.pages.AppendPage(models.FollowingKey(), page(1, false, "B", "C"))
	f.pages.AppendPage(models.UserPostsKey("carol"), page(1, false, "C"))
	return f
}

func TestLikePropagatesToEveryView(t *testing.T) {
	f := newFixture()
	f.remote.likes = []string{"u1"}
	before := f.pages.Flattened(models.ForYouKey())

	likes, err := f.coord.ToggleLike(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, likes)

	for _, key := range []models.ViewKey{models.ForYouKey(), models.FollowingKey()} {
		for _, p := range f.pages.Flattened(key) {
			if p.ID == "B" {
				assert.Equal(t, []string{"u1"}, p.Likes, key.String())
				assert.Equal(t, "text B", p.Text)
			}
		}
	}
	after := f.pages.Flattened(models.ForYouKey())
	assert.Empty(t, cmp.Diff(before[0], after[0]))
	assert.Empty(t, cmp.Diff(before[2], after[2]))
}

func TestFailedLikeLeavesCacheUntouched(t *testing.T) {
	f := newFixture()
	f.remote.err = utils.NewServerError(500, "boom")
	versions := map[models.ViewKey]uint64{}
	for _, key := range f.pages.Keys() {
		versions[key] = f.pages.Version(key)
	}

	_, err := f.coord.ToggleLike(context.Background(), "B")
	require.Error(t, err)

	for key, v := range versions {
		assert.Equal(t, v, f.pages.Version(key))
	}
	assert.Empty(t, f.pages.Flattened(models.ForYouKey())[1].Likes)
}

func TestDeleteRemovesFromAllViews(t *testing.T) {
	f := newFixture()
	f.pagers["C"] = feed.NewCommentPager(post("C"), nil, 10)

	require.NoError(t, f.coord.DeletePost(context.Background(), "C"))

	assert.Equal(t, []string{"A", "B"}, ids(f.pages.Flattened(models.ForYouKey())))
	assert.Equal(t, []string{"B"}, ids(f.pages.Flattened(models.FollowingKey())))
	assert.Empty(t, f.pages.Flattened(models.UserPostsKey("carol")))
	_, open := f.pagers["C"]
	assert.False(t, open)
}

func TestCommentReplacesStateEverywhere(t *testing.T) {
	f := newFixture()
	pager := feed.NewCommentPager(post("B"), nil, 10)
	f.pagers["B"] = pager
	f.remote.state = &models.CommentsState{
		Comments:          []models.Comment{{ID: "c1", Text: "hi"}},
		TotalCommentCount: 7,
		HasMoreComments:   true,
	}

	_, err := f.coord.AddComment(context.Background(), "B", "hi")
	require.NoError(t, err)

	for _, key := range []models.ViewKey{models.ForYouKey(), models.FollowingKey()} {
		for _, p := range f.pages.Flattened(key) {
			if p.ID == "B" {
				assert.Equal(t, 7, p.TotalCommentCount)
				assert.True(t, p.HasMoreComments)
				assert.Len(t, p.Comments, 1)
			}
		}
	}
	assert.Equal(t, 7, pager.Total())
	assert.Equal(t, 6, pager.Remaining())
}

func TestEmptySubmissionsAreBlocked(t *testing.T) {
	f := newFixture()

	_, err := f.coord.AddComment(context.Background(), "B", "   ")
	assert.True(t, utils.IsErrorCode(err, utils.ErrEmptyComment))

	_, err = f.coord.CreatePost(context.Background(), " ", "")
	assert.True(t, utils.IsErrorCode(err, utils.ErrEmptyPost))

	assert.Zero(t, f.remote.count("comment"))
	assert.Zero(t, f.remote.count("create"))
}

func TestCreatePostInvalidatesFirstPages(t *testing.T) {
	f := newFixture()
	f.remote.created = &models.Post{ID: "N", Author: models.UserSummary{Username: "carol"}}

	var invalidated []models.ViewKey
	for _, key := range f.pages.Keys() {
		key := key
		f.pages.Subscribe(key, func(e cache.Event) {
			if e.Invalidated {
				invalidated = append(invalidated, key)
			}
		})
	}
	f.pages.AppendPage(models.UserPostsKey("dave"), page(1, false, "D"))

	_, err := f.coord.CreatePost(context.Background(), "hello", "")
	require.NoError(t, err)

	assert.False(t, f.pages.Has(models.ForYouKey()))
	assert.False(t, f.pages.Has(models.FollowingKey()))
	assert.False(t, f.pages.Has(models.UserPostsKey("carol")))
	assert.True(t, f.pages.Has(models.UserPostsKey("dave")))
	assert.ElementsMatch(t, []models.ViewKey{models.ForYouKey(), models.FollowingKey(), models.UserPostsKey("carol")}, invalidated)
}

func TestSecondLikeWhilePendingIsRejected(t *testing.T) {
	f := newFixture()
	f.remote.likes = []string{"u1"}
	f.remote.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.coord.ToggleLike(context.Background(), "B")
		done <- err
	}()
	require.Eventually(t, func() bool { return f.remote.count("like") == 1 }, time.Second, time.Millisecond)
	assert.True(t, f.coord.Pending("like", "B"))

	_, err := f.coord.ToggleLike(context.Background(), "B")
	assert.True(t, utils.IsErrorCode(err, utils.ErrPending))

	f.remote.mu.Lock()
	close(f.remote.block)
	f.remote.block = nil
	f.remote.mu.Unlock()
	require.NoError(t, <-done)

	assert.Equal(t, 1, f.remote.count("like"))
	assert.False(t, f.coord.Pending("like", "B"))
}

func TestFollowInvalidatesGraphQueries(t *testing.T) {
	f := newFixture()
	f.queries.Set(cache.KeyAuthUser, &models.User{ID: "u1"})
	f.queries.Set(cache.KeySuggestedUsers, []models.SuggestedUser{{ID: "u2"}})
	f.queries.Set(cache.KeyNotifications, []models.Notification{})

	require.NoError(t, f.coord.Follow(context.Background(), "u2"))

	assert.False(t, f.queries.Has(cache.KeyAuthUser))
	assert.False(t, f.queries.Has(cache.KeySuggestedUsers))
	assert.True(t, f.queries.Has(cache.KeyNotifications))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture()
	current := models.User{ID: "u3", Username: "carol", FullName: "Carol", Bio: "old"}
	f.queries.Set(cache.KeyAuthUser, &current)
	f.queries.Set(cache.ProfileKey("carol"), &current)

	form := FormFor(current)
	_, err := f.coord.UpdateProfile(context.Background(), current, form)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNoChanges))
	assert.Zero(t, f.remote.count("update"))

	form.Bio = "new"
	update, err := f.coord.UpdateProfile(context.Background(), current, form)
	require.NoError(t, err)
	assert.Equal(t, models.ProfileUpdate{"bio": "new"}, update)
	assert.Equal(t, []models.ProfileUpdate{{"bio": "new"}}, f.remote.updates)

	assert.False(t, f.queries.Has(cache.KeyAuthUser))
	assert.False(t, f.queries.Has(cache.ProfileKey("carol")))
	assert.False(t, f.pages.Has(models.UserPostsKey("carol")))
	assert.True(t, f.pages.Has(models.ForYouKey()))
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture()
	f.queries.Set(cache.KeyAuthUser, &models.User{ID: "u1"})
	f.remote.err = utils.NewTransportError("logout", context.DeadlineExceeded)

	err := f.coord.Logout(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.pages.Keys())
	assert.False(t, f.queries.Has(cache.KeyAuthUser))
}

func TestDeleteNotificationsInvalidatesList(t *testing.T) {
	f := newFixture()
	f.queries.Set(cache.KeyNotifications, []models.Notification{{ID: "n1"}})

	require.NoError(t, f.coord.DeleteNotifications(context.Background()))
	assert.False(t, f.queries.Has(cache.KeyNotifications))
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture()
	_, err := f.coord.Login(context.Background(), models.Credentials{Username: "carol"})
	assert.True(t, utils.IsValidationError(err))
	assert.Zero(t, f.remote.count("login"))

	f.queries.Set(cache.KeyAuthUser, &models.User{ID: "old"})
	user, err := f.coord.Login(context.Background(), models.Credentials{Username: "carol", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)
	assert.False(t, f.queries.Has(cache.KeyAuthUser))
}
