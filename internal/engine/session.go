// Package engine ties the client pieces together for one logged-in user.
package engine

import (
	"context"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"yap-client/internal/cache"
	"yap-client/internal/config"
	"yap-client/internal/feed"
	"yap-client/internal/models"
	"yap-client/internal/mutation"
	"yap-client/internal/remote"
	"yap-client/internal/utils"
)

// Session owns the caches, open feed controllers, comment pagers and the
// mutation coordinator of one user session.
type Session struct {
	cfg     *config.Config
	client  *remote.Client
	pages   *cache.PageCache
	queries *cache.QueryCache
	actions *mutation.Coordinator

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	feeds  map[models.ViewKey]*feed.Controller
	pagers *lru.Cache[string, *feed.CommentPager]
}

// NewSession builds a session with its own API client.
func NewSession(cfg *config.Config, metrics *utils.MetricsCollector) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	client, err := remote.NewClient(cfg.API, metrics)
	if err != nil {
		return nil, err
	}
	return NewSessionWithClient(cfg, client)
}

// NewSessionWithClient builds a session around an existing client.
func NewSessionWithClient(cfg *config.Config, client *remote.Client) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	pagers, err := lru.New[string, *feed.CommentPager](cfg.Feed.PagerCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pager cache")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		client:  client,
		pages:   cache.NewPageCache(),
		queries: cache.NewQueryCache(cfg.Feed.QueryStaleTime),
		ctx:     ctx,
		cancel:  cancel,
		feeds:   make(map[models.ViewKey]*feed.Controller),
		pagers:  pagers,
	}
	s.actions = mutation.NewCoordinator(client, s.pages, s.queries, s)
	return s, nil
}

func (s *Session) Client() *remote.Client           { return s.client }
func (s *Session) Pages() *cache.PageCache          { return s.pages }
func (s *Session) Queries() *cache.QueryCache       { return s.queries }
func (s *Session) Actions() *mutation.Coordinator   { return s.actions }
func (s *Session) Metrics() *utils.MetricsCollector { return s.client.Metrics() }

// Feed returns the controller for key, opening and loading it on first use.
// The controller is returned even when its first load fails.
func (s *Session) Feed(ctx context.Context, key models.ViewKey) (*feed.Controller, error) {
	if !key.FeedType.Valid() {
		return nil, utils.NewValidationError(utils.ErrInvalidInput, "unknown feed type "+string(key.FeedType))
	}

	s.mu.Lock()
	if c, ok := s.feeds[key]; ok {
		s.mu.Unlock()
		return c, nil
	}
	c := feed.NewController(key, s.pages, s.client, s.cfg.Feed.PageSize)
	c.Start(s.ctx)
	s.feeds[key] = c
	s.mu.Unlock()

	utils.Log.WithField("view", key.String()).Debug("feed opened")
	return c, c.Load(ctx)
}

// CloseFeed stops and forgets the controller for key.
func (s *Session) CloseFeed(key models.ViewKey) {
	s.mu.Lock()
	c, ok := s.feeds[key]
	delete(s.feeds, key)
	s.mu.Unlock()
	if ok {
		c.Close()
	}
}

// OpenFeeds lists the views with an open controller.
func (s *Session) OpenFeeds() []models.ViewKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]models.ViewKey, 0, len(s.feeds))
	for key := range s.feeds {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// RefreshAll reloads page 1 of every open feed concurrently and returns the
// first error. Each reload runs to completion on its own, so one failing view
// does not cancel the others.
func (s *Session) RefreshAll(ctx context.Context) error {
	s.mu.Lock()
	controllers := make([]*feed.Controller, 0, len(s.feeds))
	for _, c := range s.feeds {
		controllers = append(controllers, c)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, c := range controllers {
		c := c
		g.Go(func() error {
			return c.Load(ctx)
		})
	}
	return g.Wait()
}

// Comments returns the pager for post, creating it from the post's embedded
// comments when none is open.
func (s *Session) Comments(post models.Post) *feed.CommentPager {
	if p, ok := s.pagers.Get(post.ID); ok {
		return p
	}
	p := feed.NewCommentPager(post, s.client, s.cfg.Feed.CommentPageSize)
	s.pagers.Add(post.ID, p)
	return p
}

// OpenPager returns the pager for postID when one is open.
func (s *Session) OpenPager(postID string) (*feed.CommentPager, bool) {
	return s.pagers.Peek(postID)
}

func (s *Session) ForgetPager(postID string) {
	s.pagers.Remove(postID)
}

// CurrentUser returns the logged-in user, cached.
func (s *Session) CurrentUser(ctx context.Context) (*models.User, error) {
	if !s.client.HasSession() {
		return nil, utils.NewValidationError(utils.ErrNoSession, "Not logged in")
	}
	return cache.Load(ctx, s.queries, cache.KeyAuthUser, s.client.CurrentUser)
}

func (s *Session) Profile(ctx context.Context, username string) (*models.User, error) {
	return cache.Load(ctx, s.queries, cache.ProfileKey(username), func(ctx context.Context) (*models.User, error) {
		return s.client.UserProfile(ctx, username)
	})
}

func (s *Session) SuggestedUsers(ctx context.Context) ([]models.SuggestedUser, error) {
	return cache.Load(ctx, s.queries, cache.KeySuggestedUsers, s.client.SuggestedUsers)
}

func (s *Session) Notifications(ctx context.Context) ([]models.Notification, error) {
	return cache.Load(ctx, s.queries, cache.KeyNotifications, s.client.Notifications)
}

// UpdateProfile diffs form against the current user and sends the changes.
func (s *Session) UpdateProfile(ctx context.Context, form models.ProfileForm) (models.ProfileUpdate, error) {
	current, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.actions.UpdateProfile(ctx, *current, form)
}

func (s *Session) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	user, err := s.actions.Login(ctx, creds)
	if err != nil {
		return nil, err
	}
	s.queries.Set(cache.KeyAuthUser, user)
	return user, nil
}

func (s *Session) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	user, err := s.actions.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	s.queries.Set(cache.KeyAuthUser, user)
	return user, nil
}

// Logout closes every feed and pager, then ends the session.
func (s *Session) Logout(ctx context.Context) error {
	s.closeViews()
	return s.actions.Logout(ctx)
}

func (s *Session) closeViews() {
	s.mu.Lock()
	feeds := s.feeds
	s.feeds = make(map[models.ViewKey]*feed.Controller)
	s.mu.Unlock()

	for _, c := range feeds {
		c.Close()
	}
	s.pagers.Purge()
}

// Close releases the session's background work. The server session is left
// alone; use Logout to end it.
func (s *Session) Close() {
	s.closeViews()
	s.cancel()
	utils.Log.WithFields(logrus.Fields{
		"requests": s.Metrics().Snapshot().Requests,
	}).Debug("session closed")
}
