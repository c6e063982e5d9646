package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSummary is the author snapshot embedded in posts and comments. It is
// taken at fetch time and may go stale.
type UserSummary struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

type Comment struct {
	ID     string      `json:"_id"`
	Author UserSummary `json:"user"`
	Text   string      `json:"text"`
}

type Post struct {
	ID                string      `json:"_id"`
	Author            UserSummary `json:"user"`
	Text              string      `json:"text"`
	Image             string      `json:"image,omitempty"`
	Likes             []string    `json:"likes"` // user ids; membership is the only semantics
	Comments          []Comment   `json:"comments"`
	TotalCommentCount int         `json:"totalComments"`
	HasMoreComments   bool        `json:"hasMoreComments"`
	CreatedAt         time.Time   `json:"createdAt"`
}

// Clone returns a copy of p that shares no slices with it.
func (p Post) Clone() Post {
	out := p
	if p.Likes != nil {
		out.Likes = append([]string(nil), p.Likes...)
	}
	if p.Comments != nil {
		out.Comments = append([]Comment(nil), p.Comments...)
	}
	return out
}

// LikedBy reports whether userID is in the post's like set.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// WithLikes returns a copy of p whose like set is likes, duplicates dropped.
func (p Post) WithLikes(likes []string) Post {
	out := p.Clone()
	out.Likes = DedupeIDs(likes)
	return out
}

// WithComments returns a copy of p carrying the server's comment state.
func (p Post) WithComments(state CommentsState) Post {
	out := p.Clone()
	out.Comments = append([]Comment(nil), state.Comments...)
	out.TotalCommentCount = state.TotalCommentCount
	if out.TotalCommentCount < len(out.Comments) {
		out.TotalCommentCount = len(out.Comments)
	}
	out.HasMoreComments = state.HasMoreComments
	return out
}

// Created returns CreatedAt, falling back to the timestamp embedded in the id
// when the server omitted it and the id is an object id.
func (p Post) Created() time.Time {
	if !p.CreatedAt.IsZero() {
		return p.CreatedAt
	}
	if oid, err := primitive.ObjectIDFromHex(p.ID); err == nil {
		return oid.Timestamp()
	}
	return time.Time{}
}

// DedupeIDs keeps the first occurrence of every id, preserving order.
func DedupeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
