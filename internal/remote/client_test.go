package remote_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yap-client/internal/config"
	"yap-client/internal/models"
	"yap-client/internal/remote"
	"yap-client/internal/testutil"
	"yap-client/internal/utils"
)

func TestLoginHoldsSessionCookie(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	api.AddUser("alice", "password123")

	client, err := remote.NewClient(api.APIConfig(), nil)
	require.NoError(t, err)
	assert.False(t, client.HasSession())

	user, err := client.Login(context.Background(), models.Credentials{Username: "alice", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, client.HasSession())

	claims, ok := client.SessionClaims()
	require.True(t, ok)
	assert.Equal(t, user.ID, claims.UserID)
	expiry, ok := client.SessionExpiry()
	require.True(t, ok)
	assert.True(t, expiry.After(time.Now()))

	me, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)

	require.NoError(t, client.Logout(context.Background()))
	assert.False(t, client.HasSession())

	_, err = client.CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsAuthError(err))
}

func TestServerErrorCarriesMessage(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()

	client, err := remote.NewClient(api.APIConfig(), nil)
	require.NoError(t, err)

	_, err = client.Login(context.Background(), models.Credentials{Username: "nobody", Password: "x"})
	require.Error(t, err)
	appErr, ok := utils.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, utils.KindServer, appErr.Kind)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "Invalid username or password", utils.UserMessage(err))
}

func TestTransportErrorWhenServerUnreachable(t *testing.T) {
	api := testutil.NewFakeAPI()
	cfg := api.APIConfig()
	api.Close()

	client, err := remote.NewClient(cfg, nil)
	require.NoError(t, err)

	_, err = client.ListPosts(context.Background(), models.ForYouKey(), 1, 10)
	require.Error(t, err)
	assert.True(t, utils.IsTransportError(err))
	assert.Equal(t, utils.GenericFailureMessage, utils.UserMessage(err))
}

func TestListPostsPaginates(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	client, alice := api.LoggedInClient(t, "alice")
	for i := 0; i < 12; i++ {
		api.AddPost(alice.ID, "post")
	}

	first, err := client.ListPosts(context.Background(), models.ForYouKey(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Number)
	assert.Len(t, first.Posts, 10)
	assert.True(t, first.HasMore)
	assert.Equal(t, models.ForYouKey(), first.Key)

	second, err := client.ListPosts(context.Background(), models.ForYouKey(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Number)
	assert.Len(t, second.Posts, 2)
	assert.False(t, second.HasMore)

	assert.Equal(t, []string{"page=1&limit=10", "page=2&limit=10"}, normalized(t, api.Queries("list_posts")))
}

func normalized(t *testing.T, queries []string) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		v, err := url.ParseQuery(q)
		require.NoError(t, err)
		out[i] = "page=" + v.Get("page") + "&limit=" + v.Get("limit")
	}
	return out
}

func TestFeedPathNeedsSubject(t *testing.T) {
	_, err := remote.FeedPath(models.ViewKey{FeedType: models.FeedUserPosts})
	assert.True(t, utils.IsValidationError(err))

	_, err = remote.FeedPath(models.ViewKey{FeedType: "trending"})
	assert.True(t, utils.IsValidationError(err))

	path, err := remote.FeedPath(models.UserLikesKey("u1"))
	require.NoError(t, err)
	assert.Equal(t, "/posts/likes/u1", path)
}

func TestToggleLikeIsNotIdempotent(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	client, alice := api.LoggedInClient(t, "alice")
	post := api.AddPost(alice.ID, "hello")

	likes, err := client.ToggleLike(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{alice.ID}, likes)

	likes, err = client.ToggleLike(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)
	assert.Equal(t, 2, api.Calls("toggle_like"))
}

func TestCommentsRoundTrip(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	client, alice := api.LoggedInClient(t, "alice")
	post := api.AddPost(alice.ID, "hello")
	api.AddComments(post.ID, alice.ID, 14)

	state, err := client.AddComment(context.Background(), post.ID, "fifteenth")
	require.NoError(t, err)
	assert.Equal(t, 15, state.TotalCommentCount)
	assert.Len(t, state.Comments, testutil.PreviewComments)
	assert.True(t, state.HasMoreComments)

	batch, err := client.ListComments(context.Background(), post.ID, 5, 10)
	require.NoError(t, err)
	assert.Len(t, batch.Items, 10)
	assert.False(t, batch.HasMore)
	assert.Equal(t, "fifteenth", batch.Items[9].Text)
}

func TestCreateAndDeletePost(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	client, alice := api.LoggedInClient(t, "alice")

	created, err := client.CreatePost(context.Background(), "first!", "")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, alice.ID, created.Author.ID)

	require.NoError(t, client.DeletePost(context.Background(), created.ID))
	_, ok := api.Post(created.ID)
	assert.False(t, ok)

	err = client.DeletePost(context.Background(), created.ID)
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestFollowAndNotifications(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	aliceClient, alice := api.LoggedInClient(t, "alice")
	bobClient, _ := api.LoggedInClient(t, "bob")

	require.NoError(t, bobClient.Follow(context.Background(), alice.ID))

	notifications, err := aliceClient.Notifications(context.Background())
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "@bob followed you", notifications[0].Describe())

	require.NoError(t, aliceClient.DeleteNotifications(context.Background()))
	notifications, err = aliceClient.Notifications(context.Background())
	require.NoError(t, err)
	assert.Empty(t, notifications)

	suggested, err := bobClient.SuggestedUsers(context.Background())
	require.NoError(t, err)
	for _, u := range suggested {
		assert.NotEqual(t, alice.ID, u.ID)
	}
}

func TestUpdateProfileSendsOnlyGivenFields(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	client, alice := api.LoggedInClient(t, "alice")

	require.NoError(t, client.UpdateProfile(context.Background(), models.ProfileUpdate{"bio": "hi there"}))
	assert.Equal(t, []map[string]string{{"bio": "hi there"}}, api.Bodies("update_profile"))

	profile, err := client.UserProfile(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "hi there", profile.Bio)
	assert.Equal(t, alice.FullName, profile.FullName)
}

func TestMetricsRecordEveryRequest(t *testing.T) {
	api := testutil.NewFakeAPI()
	defer api.Close()
	client, _ := api.LoggedInClient(t, "alice")

	api.FailNext("notifications", http.StatusInternalServerError, "boom")
	_, err := client.Notifications(context.Background())
	require.Error(t, err)
	_, err = client.Notifications(context.Background())
	require.NoError(t, err)

	snap := client.Metrics().Snapshot()
	assert.Equal(t, uint64(3), snap.Requests) // login + two notification reads
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Contains(t, snap.Operations(), "notifications")
}

func TestNewClientDefaultsConfig(t *testing.T) {
	client, err := remote.NewClient(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, client.Metrics())
	assert.Equal(t, config.DefaultAPIConfig().Endpoint("/auth/me"), "http://localhost:5000/api/v1/auth/me")
}
