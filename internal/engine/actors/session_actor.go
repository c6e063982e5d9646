package actors

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"yap-client/internal/engine"
	"yap-client/internal/feed"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

// Message types for session operations
type (
	OpenFeedMsg struct {
		Key models.ViewKey
	}

	LoadMoreMsg struct {
		Key models.ViewKey
	}

	RefreshFeedsMsg struct{}

	CreatePostMsg struct {
		Text  string
		Image string
	}

	DeletePostMsg struct {
		PostID string
	}

	ToggleLikeMsg struct {
		PostID string
	}

	AddCommentMsg struct {
		PostID string
		Text   string
	}

	// LoadCommentsMsg opens the post's pager if needed and, when More is set,
	// loads its next batch.
	LoadCommentsMsg struct {
		Post models.Post
		More bool
	}

	FollowMsg struct {
		UserID string
	}

	UpdateProfileMsg struct {
		Form models.ProfileForm
	}

	LoginMsg struct {
		Credentials models.Credentials
	}

	SignupMsg struct {
		Request models.SignupRequest
	}

	LogoutMsg struct{}

	GetCurrentUserMsg struct{}

	GetSuggestedUsersMsg struct{}

	GetNotificationsMsg struct{}

	DeleteNotificationsMsg struct{}

	GetMetricsMsg struct{}
)

// Ack answers messages whose success carries no value.
type Ack struct{}

// FeedSnapshot is what a renderer needs from one feed view.
type FeedSnapshot struct {
	Key     models.ViewKey
	Posts   []models.Post
	HasMore bool
	State   feed.State
	Err     error
}

// CommentsSnapshot is the state of one post's comment pager.
type CommentsSnapshot struct {
	PostID    string
	Comments  []models.Comment
	HasMore   bool
	Remaining int
}

// SessionActor owns one Session and handles its messages one at a time, so
// every user action and every cache transition of the session is ordered.
type SessionActor struct {
	session *engine.Session
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logrus.Entry
}

// NewSessionActor creates a new SessionActor instance
func NewSessionActor(session *engine.Session) actor.Actor {
	return &SessionActor{
		session: session,
		log:     utils.Log.WithField("actor", "session"),
	}
}

// Receive handles incoming messages
func (a *SessionActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.ctx, a.cancel = contextWithCancel()
		a.log.Debug("SessionActor started")

	case *actor.Stopping:
		a.log.Debug("SessionActor stopping")
		if a.cancel != nil {
			a.cancel()
		}

	case *actor.Stopped:
		a.session.Close()
		a.log.Debug("SessionActor stopped")

	case *actor.Restarting:
		a.log.Warn("SessionActor restarting")

	case *OpenFeedMsg:
		a.handleOpenFeed(context, msg)
	case *LoadMoreMsg:
		a.handleLoadMore(context, msg)
	case *RefreshFeedsMsg:
		respond(context, Ack{}, a.session.RefreshAll(a.ctx))
	case *CreatePostMsg:
		post, err := a.session.Actions().CreatePost(a.ctx, msg.Text, msg.Image)
		respond(context, post, err)
	case *DeletePostMsg:
		respond(context, Ack{}, a.session.Actions().DeletePost(a.ctx, msg.PostID))
	case *ToggleLikeMsg:
		likes, err := a.session.Actions().ToggleLike(a.ctx, msg.PostID)
		respond(context, likes, err)
	case *AddCommentMsg:
		state, err := a.session.Actions().AddComment(a.ctx, msg.PostID, msg.Text)
		respond(context, state, err)
	case *LoadCommentsMsg:
		a.handleLoadComments(context, msg)
	case *FollowMsg:
		respond(context, Ack{}, a.session.Actions().Follow(a.ctx, msg.UserID))
	case *UpdateProfileMsg:
		update, err := a.session.UpdateProfile(a.ctx, msg.Form)
		respond(context, update, err)
	case *LoginMsg:
		user, err := a.session.Login(a.ctx, msg.Credentials)
		respond(context, user, err)
	case *SignupMsg:
		user, err := a.session.Signup(a.ctx, msg.Request)
		respond(context, user, err)
	case *LogoutMsg:
		respond(context, Ack{}, a.session.Logout(a.ctx))
	case *GetCurrentUserMsg:
		user, err := a.session.CurrentUser(a.ctx)
		respond(context, user, err)
	case *GetSuggestedUsersMsg:
		users, err := a.session.SuggestedUsers(a.ctx)
		respond(context, users, err)
	case *GetNotificationsMsg:
		notifications, err := a.session.Notifications(a.ctx)
		respond(context, notifications, err)
	case *DeleteNotificationsMsg:
		respond(context, Ack{}, a.session.Actions().DeleteNotifications(a.ctx))
	case *GetMetricsMsg:
		context.Respond(a.session.Metrics().Snapshot())
	default:
		a.log.Warnf("SessionActor: Unknown message type: %T", msg)
	}
}

func (a *SessionActor) handleOpenFeed(context actor.Context, msg *OpenFeedMsg) {
	startTime := time.Now()
	c, err := a.session.Feed(a.ctx, msg.Key)
	if c == nil {
		respond(context, nil, err)
		return
	}
	a.session.Metrics().AddOperationLatency("open_feed", time.Since(startTime))
	context.Respond(snapshot(c))
}

func (a *SessionActor) handleLoadMore(context actor.Context, msg *LoadMoreMsg) {
	c, err := a.session.Feed(a.ctx, msg.Key)
	if c == nil {
		respond(context, nil, err)
		return
	}
	_ = c.LoadMore(a.ctx)
	context.Respond(snapshot(c))
}

func (a *SessionActor) handleLoadComments(context actor.Context, msg *LoadCommentsMsg) {
	pager := a.session.Comments(msg.Post)
	if msg.More {
		if err := pager.LoadMore(a.ctx); err != nil {
			context.Respond(err)
			return
		}
	}
	context.Respond(&CommentsSnapshot{
		PostID:    pager.PostID(),
		Comments:  pager.Comments(),
		HasMore:   pager.HasMore(),
		Remaining: pager.Remaining(),
	})
}

func snapshot(c *feed.Controller) *FeedSnapshot {
	return &FeedSnapshot{
		Key:     c.Key(),
		Posts:   c.Posts(),
		HasMore: c.HasMore(),
		State:   c.State(),
		Err:     c.Err(),
	}
}

func respond(context actor.Context, result interface{}, err error) {
	if err != nil {
		context.Respond(err)
		return
	}
	context.Respond(result)
}

func contextWithCancel() (context.Context, context.CancelFunc) {
	return context.WithCancel(context.Background())
}

// SpawnSession starts a SessionActor for session under system's root.
func SpawnSession(system *actor.ActorSystem, session *engine.Session) *actor.PID {
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewSessionActor(session)
	})
	return system.Root.Spawn(props)
}

// Ask sends msg to a SessionActor and waits for its answer. An error answer
// is returned as the error.
func Ask(root *actor.RootContext, pid *actor.PID, msg interface{}, timeout time.Duration) (interface{}, error) {
	result, err := root.RequestFuture(pid, msg, timeout).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "no answer to %T", msg)
	}
	if failure, ok := result.(error); ok {
		return nil, failure
	}
	return result, nil
}
