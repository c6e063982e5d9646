package remote

import (
	"context"
	"net/http"
	"net/url"

	"yap-client/internal/models"
)

// Follow toggles the follow relationship with userID. Not idempotent.
func (c *Client) Follow(ctx context.Context, userID string) error {
	return c.do(ctx, "follow", http.MethodPost, "/users/follow/"+url.PathEscape(userID), nil, struct{}{}, nil)
}

// UpdateProfile sends only the fields present in update.
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) error {
	return c.do(ctx, "update_profile", http.MethodPost, "/users/update", nil, update, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "current_user", http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UserProfile(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "user_profile", http.MethodGet, "/users/profile/"+url.PathEscape(username), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SuggestedUsers(ctx context.Context) ([]models.SuggestedUser, error) {
	users := []models.SuggestedUser{}
	if err := c.do(ctx, "suggested_users", http.MethodGet, "/users/suggested", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	notifications := []models.Notification{}
	if err := c.do(ctx, "notifications", http.MethodGet, "/notifications", nil, nil, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (c *Client) DeleteNotifications(ctx context.Context) error {
	return c.do(ctx, "delete_notifications", http.MethodDelete, "/notifications", nil, nil, nil)
}
