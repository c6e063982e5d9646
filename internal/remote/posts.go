package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"yap-client/internal/models"
	"yap-client/internal/utils"
)

type pagination struct {
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

type postListResponse struct {
	Data       []models.Post `json:"data"`
	Pagination pagination    `json:"pagination"`
}

// comment pages come back either as {data, pagination} or as {items, hasMore}
type commentListResponse struct {
	Data       []models.Comment `json:"data"`
	Items      []models.Comment `json:"items"`
	HasMore    *bool            `json:"hasMore"`
	Pagination pagination       `json:"pagination"`
}

type createPostRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// FeedPath maps a view to its list endpoint.
func FeedPath(key models.ViewKey) (string, error) {
	switch key.FeedType {
	case models.FeedForYou:
		return "/posts/all", nil
	case models.FeedFollowing:
		return "/posts/following", nil
	case models.FeedUserPosts:
		if key.Username == "" {
			return "", utils.NewValidationError(utils.ErrInvalidInput, "username is required for a user's posts")
		}
		return "/posts/user/" + url.PathEscape(key.Username), nil
	case models.FeedUserLikes:
		if key.UserID == "" {
			return "", utils.NewValidationError(utils.ErrInvalidInput, "user id is required for a user's likes")
		}
		return "/posts/likes/" + url.PathEscape(key.UserID), nil
	default:
		return "", utils.NewValidationError(utils.ErrInvalidInput, "unknown feed type "+string(key.FeedType))
	}
}

// ListPosts fetches one page of a feed view.
func (c *Client) ListPosts(ctx context.Context, key models.ViewKey, page, limit int) (*models.Page, error) {
	path, err := FeedPath(key)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(limit))

	var resp postListResponse
	if err := c.do(ctx, "list_posts", http.MethodGet, path, query, nil, &resp); err != nil {
		return nil, err
	}

	number := resp.Pagination.Page
	if number == 0 {
		number = page
	}
	return &models.Page{
		Key:     key,
		Number:  number,
		Posts:   resp.Data,
		HasMore: resp.Pagination.HasMore,
	}, nil
}

// CreatePost publishes a post. The server's copy is returned when it sends one.
func (c *Client) CreatePost(ctx context.Context, text, image string) (*models.Post, error) {
	var created models.Post
	if err := c.do(ctx, "create_post", http.MethodPost, "/posts/create", nil, createPostRequest{Text: text, Image: image}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, "delete_post", http.MethodDelete, "/posts/"+url.PathEscape(postID), nil, nil, nil)
}

// ToggleLike flips the current user's like on postID and returns the post's
// full like set. Not idempotent.
func (c *Client) ToggleLike(ctx context.Context, postID string) ([]string, error) {
	likes := []string{}
	if err := c.do(ctx, "toggle_like", http.MethodPost, "/posts/like/"+url.PathEscape(postID), nil, struct{}{}, &likes); err != nil {
		return nil, err
	}
	return models.DedupeIDs(likes), nil
}

// AddComment posts a comment and returns the post's authoritative comment state.
func (c *Client) AddComment(ctx context.Context, postID, text string) (*models.CommentsState, error) {
	var state models.CommentsState
	if err := c.do(ctx, "add_comment", http.MethodPost, "/posts/comment/"+url.PathEscape(postID), nil, commentRequest{Text: text}, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ListComments fetches limit comments of postID after the first skip.
func (c *Client) ListComments(ctx context.Context, postID string, skip, limit int) (*models.CommentBatch, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var resp commentListResponse
	if err := c.do(ctx, "list_comments", http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments", query, nil, &resp); err != nil {
		return nil, err
	}

	batch := &models.CommentBatch{Items: resp.Data, HasMore: resp.Pagination.HasMore}
	if len(resp.Items) > 0 || resp.Data == nil {
		batch.Items = resp.Items
	}
	if resp.HasMore != nil {
		batch.HasMore = *resp.HasMore
	}
	return batch, nil
}
