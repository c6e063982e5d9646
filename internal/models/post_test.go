package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPostDecodesServerShape(t *testing.T) {
	raw := `{
		"_id": "65f1c2a9e4b0a1b2c3d4e5f6",
		"user": {"_id": "u1", "username": "alice", "fullName": "Alice A", "profilePicture": ""},
		"text": "hello",
		"likes": ["u2"],
		"comments": [{"_id": "c1", "user": {"_id": "u2", "username": "bob"}, "text": "hi"}],
		"totalComments": 7,
		"hasMoreComments": true,
		"createdAt": "2024-03-10T12:00:00.000Z"
	}`

	var post Post
	require.NoError(t, json.Unmarshal([]byte(raw), &post))
	assert.Equal(t, "alice", post.Author.Username)
	assert.Equal(t, 7, post.TotalCommentCount)
	assert.True(t, post.HasMoreComments)
	assert.Equal(t, "bob", post.Comments[0].Author.Username)
	assert.True(t, post.LikedBy("u2"))
	assert.False(t, post.LikedBy("u1"))
}

func TestCreatedFallsBackToObjectIDTimestamp(t *testing.T) {
	at := time.Date(2024, time.January, 5, 8, 30, 0, 0, time.UTC)
	oid := primitive.NewObjectIDFromTimestamp(at)

	post := Post{ID: oid.Hex()}
	assert.True(t, at.Equal(post.Created()))

	post.CreatedAt = at.Add(time.Hour)
	assert.True(t, at.Add(time.Hour).Equal(post.Created()))

	assert.True(t, Post{ID: "not-an-object-id"}.Created().IsZero())
}

func TestWithLikesDedupesAndCopies(t *testing.T) {
	post := Post{ID: "B", Text: "b", Likes: []string{}}
	liked := post.WithLikes([]string{"u1", "u2", "u1"})

	assert.Equal(t, []string{"u1", "u2"}, liked.Likes)
	assert.Equal(t, "b", liked.Text)
	assert.Empty(t, post.Likes)
}

func TestWithCommentsKeepsCountInvariant(t *testing.T) {
	post := Post{ID: "A"}
	updated := post.WithComments(CommentsState{
		Comments:          []Comment{{ID: "c1"}, {ID: "c2"}},
		TotalCommentCount: 1,
		HasMoreComments:   false,
	})
	assert.Len(t, updated.Comments, 2)
	assert.Equal(t, 2, updated.TotalCommentCount)
}

func TestViewKeyEquality(t *testing.T) {
	assert.Equal(t, UserPostsKey("alice"), ViewKey{FeedType: FeedUserPosts, Username: "alice"})
	assert.NotEqual(t, UserPostsKey("alice"), UserPostsKey("bob"))
	assert.NotEqual(t, ForYouKey(), FollowingKey())
	assert.True(t, FeedUserLikes.Valid())
	assert.False(t, FeedType("posts").Valid())
}
