// Package mutation runs user actions against the API and, only once the
// server has confirmed them, applies the matching change to the caches.
package mutation

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"yap-client/internal/cache"
	"yap-client/internal/feed"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

// Remote is the part of the API client the coordinator needs.
type Remote interface {
	CreatePost(ctx context.Context, text, image string) (*models.Post, error)
	DeletePost(ctx context.Context, postID string) error
	ToggleLike(ctx context.Context, postID string) ([]string, error)
	AddComment(ctx context.Context, postID, text string) (*models.CommentsState, error)
	Follow(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, update models.ProfileUpdate) error
	Login(ctx context.Context, creds models.Credentials) (*models.User, error)
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, error)
	Logout(ctx context.Context) error
	DeleteNotifications(ctx context.Context) error
}

// CommentPagers gives access to the open comment pager of a post, if any.
type CommentPagers interface {
	OpenPager(postID string) (*feed.CommentPager, bool)
	ForgetPager(postID string)
}

type action string

const (
	actionCreate  action = "create post"
	actionDelete  action = "delete"
	actionLike    action = "like"
	actionComment action = "comment"
	actionFollow  action = "follow"
	actionProfile action = "update profile"
)

// Coordinator sequences every action as: remote call, then on success one
// cache transition, on failure nothing. The same action cannot run twice at
// once for the same target.
type Coordinator struct {
	remote  Remote
	pages   *cache.PageCache
	queries *cache.QueryCache
	pagers  CommentPagers

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewCoordinator wires a coordinator. pagers may be nil.
func NewCoordinator(remote Remote, pages *cache.PageCache, queries *cache.QueryCache, pagers CommentPagers) *Coordinator {
	return &Coordinator{
		remote:  remote,
		pages:   pages,
		queries: queries,
		pagers:  pagers,
		pending: make(map[string]struct{}),
	}
}

// begin claims (act, target) or fails with a PENDING validation error.
func (c *Coordinator) begin(act action, target string) (func(), error) {
	key := string(act) + "/" + target
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pending[key]; busy {
		return nil, utils.NewPendingError(string(act), target)
	}
	c.pending[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
	}, nil
}

// Pending reports whether act is in flight for target.
func (c *Coordinator) Pending(act string, target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.pending[act+"/"+target]
	return busy
}

func logFailure(act action, target string, err error) {
	entry := utils.Log.WithFields(logrus.Fields{"action": act, "target": target}).WithError(err)
	if utils.IsKind(err, utils.KindUnexpected) {
		entry.Error("action failed unexpectedly")
		return
	}
	entry.Info("action failed")
}

// CreatePost publishes a post and invalidates the views whose first page it
// changes: For You, Following and its author's own posts.
func (c *Coordinator) CreatePost(ctx context.Context, text, image string) (*models.Post, error) {
	if strings.TrimSpace(text) == "" && image == "" {
		return nil, utils.NewValidationError(utils.ErrEmptyPost, "Post must have text or image")
	}
	done, err := c.begin(actionCreate, "self")
	if err != nil {
		return nil, err
	}
	defer done()

	post, err := c.remote.CreatePost(ctx, text, image)
	if err != nil {
		logFailure(actionCreate, "self", err)
		return nil, err
	}

	keys := []models.ViewKey{models.ForYouKey(), models.FollowingKey()}
	if post.Author.Username != "" {
		keys = append(keys, models.UserPostsKey(post.Author.Username))
		c.pages.Invalidate(keys...)
	} else {
		c.pages.Invalidate(keys...)
		c.pages.InvalidateWhere(func(k models.ViewKey) bool { return k.FeedType == models.FeedUserPosts })
	}
	return post, nil
}

// DeletePost deletes postID and removes it from every cached view.
func (c *Coordinator) DeletePost(ctx context.Context, postID string) error {
	done, err := c.begin(actionDelete, postID)
	if err != nil {
		return err
	}
	defer done()

	if err := c.remote.DeletePost(ctx, postID); err != nil {
		logFailure(actionDelete, postID, err)
		return err
	}
	removed := c.pages.RemovePostEverywhere(postID)
	if c.pagers != nil {
		c.pagers.ForgetPager(postID)
	}
	utils.Log.WithFields(logrus.Fields{"post": postID, "copies": removed}).Debug("post removed from cache")
	return nil
}

// ToggleLike flips the user's like and writes the server's like set into
// every cached copy of the post.
func (c *Coordinator) ToggleLike(ctx context.Context, postID string) ([]string, error) {
	done, err := c.begin(actionLike, postID)
	if err != nil {
		return nil, err
	}
	defer done()

	likes, err := c.remote.ToggleLike(ctx, postID)
	if err != nil {
		logFailure(actionLike, postID, err)
		return nil, err
	}
	c.pages.UpdatePostEverywhere(postID, func(p models.Post) models.Post {
		return p.WithLikes(likes)
	})
	return likes, nil
}

// AddComment posts a comment and replaces the post's comment state, in every
// cached copy and in its open pager, with the server's recount.
func (c *Coordinator) AddComment(ctx context.Context, postID, text string) (*models.CommentsState, error) {
	if strings.TrimSpace(text) == "" {
		return nil, utils.NewValidationError(utils.ErrEmptyComment, "Comment cannot be empty")
	}
	done, err := c.begin(actionComment, postID)
	if err != nil {
		return nil, err
	}
	defer done()

	state, err := c.remote.AddComment(ctx, postID, text)
	if err != nil {
		logFailure(actionComment, postID, err)
		return nil, err
	}
	c.pages.UpdatePostEverywhere(postID, func(p models.Post) models.Post {
		return p.WithComments(*state)
	})
	if c.pagers != nil {
		if pager, ok := c.pagers.OpenPager(postID); ok {
			pager.Replace(*state)
		}
	}
	return state, nil
}

// Follow toggles following userID and drops the queries derived from the
// follow graph.
func (c *Coordinator) Follow(ctx context.Context, userID string) error {
	done, err := c.begin(actionFollow, userID)
	if err != nil {
		return err
	}
	defer done()

	if err := c.remote.Follow(ctx, userID); err != nil {
		logFailure(actionFollow, userID, err)
		return err
	}
	c.queries.Invalidate(cache.KeySuggestedUsers, cache.KeyAuthUser)
	return nil
}

// UpdateProfile sends only what changed between current and form. An empty
// diff is rejected without a request.
func (c *Coordinator) UpdateProfile(ctx context.Context, current models.User, form models.ProfileForm) (models.ProfileUpdate, error) {
	update := ProfileDiff(current, form)
	if len(update) == 0 {
		return nil, utils.NewValidationError(utils.ErrNoChanges, "Nothing to update")
	}
	done, err := c.begin(actionProfile, current.ID)
	if err != nil {
		return nil, err
	}
	defer done()

	if err := c.remote.UpdateProfile(ctx, update); err != nil {
		logFailure(actionProfile, current.ID, err)
		return nil, err
	}

	c.queries.Invalidate(cache.KeyAuthUser, cache.ProfileKey(current.Username))
	keys := []models.ViewKey{models.UserPostsKey(current.Username)}
	if name, ok := update["username"]; ok {
		c.queries.Invalidate(cache.ProfileKey(name))
		keys = append(keys, models.UserPostsKey(name))
	}
	c.pages.Invalidate(keys...)
	return update, nil
}

func (c *Coordinator) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, utils.NewValidationError(utils.ErrInvalidInput, "Username and password are required")
	}
	user, err := c.remote.Login(ctx, creds)
	if err != nil {
		logFailure("login", creds.Username, err)
		return nil, err
	}
	c.queries.Invalidate(cache.KeyAuthUser)
	return user, nil
}

func (c *Coordinator) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	if req.Username == "" || req.Password == "" || req.Email == "" {
		return nil, utils.NewValidationError(utils.ErrInvalidInput, "Username, email and password are required")
	}
	user, err := c.remote.Signup(ctx, req)
	if err != nil {
		logFailure("signup", req.Username, err)
		return nil, err
	}
	c.queries.Invalidate(cache.KeyAuthUser)
	return user, nil
}

// Logout ends the session. Local caches are cleared either way, since the
// session cookie is dropped even when the server call fails.
func (c *Coordinator) Logout(ctx context.Context) error {
	err := c.remote.Logout(ctx)
	c.queries.Clear()
	c.pages.Clear()
	if err != nil {
		logFailure("logout", "self", err)
	}
	return err
}

func (c *Coordinator) DeleteNotifications(ctx context.Context) error {
	if err := c.remote.DeleteNotifications(ctx); err != nil {
		logFailure("delete notifications", "self", err)
		return err
	}
	c.queries.Invalidate(cache.KeyNotifications)
	return nil
}
