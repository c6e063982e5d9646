package models

import "fmt"

type FeedType string

const (
	FeedForYou    FeedType = "forYou"
	FeedFollowing FeedType = "following"
	FeedUserPosts FeedType = "userPosts"
	FeedUserLikes FeedType = "userLikes"
)

func (t FeedType) Valid() bool {
	switch t {
	case FeedForYou, FeedFollowing, FeedUserPosts, FeedUserLikes:
		return true
	}
	return false
}

// ViewKey identifies one feed view and partitions the page cache. Two keys are
// equal iff all three fields match, so ViewKey is usable as a map key.
type ViewKey struct {
	FeedType FeedType
	Username string
	UserID   string
}

func ForYouKey() ViewKey    { return ViewKey{FeedType: FeedForYou} }
func FollowingKey() ViewKey { return ViewKey{FeedType: FeedFollowing} }

func UserPostsKey(username string) ViewKey {
	return ViewKey{FeedType: FeedUserPosts, Username: username}
}

func UserLikesKey(userID string) ViewKey {
	return ViewKey{FeedType: FeedUserLikes, UserID: userID}
}

func (k ViewKey) String() string {
	return fmt.Sprintf("posts/%s/%s/%s", k.FeedType, k.Username, k.UserID)
}

// Page is one server-fetched batch of posts for a view.
type Page struct {
	Key     ViewKey
	Number  int // 1-based
	Posts   []Post
	HasMore bool
}

// Clone deep-copies the page so the cache never shares slices with callers.
func (p Page) Clone() Page {
	out := p
	out.Posts = make([]Post, len(p.Posts))
	for i, post := range p.Posts {
		out.Posts[i] = post.Clone()
	}
	return out
}

// CommentBatch is one page of a post's comments.
type CommentBatch struct {
	Items   []Comment
	HasMore bool
}

// CommentsState is the authoritative comment state the server returns after a
// new comment: it replaces, never merges with, what the client holds.
type CommentsState struct {
	Comments          []Comment `json:"comments"`
	TotalCommentCount int       `json:"totalComments"`
	HasMoreComments   bool      `json:"hasMoreComments"`
}
