package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"yap-client/internal/models"
)

// SessionCookieName is the cookie the API keeps the session token in.
const SessionCookieName = "jwt"

// Claims is what the API puts in the session token.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Login exchanges credentials for a session cookie and returns the user.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil, creds, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "signup", http.MethodPost, "/auth/signup", nil, req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session server-side and drops the local cookie even when
// the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil, struct{}{}, nil)
	c.dropSessionCookie()
	return err
}

func (c *Client) baseURL() *url.URL {
	u, err := url.Parse(c.cfg.BaseURL + "/")
	if err != nil {
		return &url.URL{}
	}
	return u
}

// SessionToken returns the raw session token, or "" when logged out.
func (c *Client) SessionToken() string {
	for _, cookie := range c.jar.Cookies(c.baseURL()) {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

// SessionClaims decodes the session token without verifying its signature;
// the client only needs to know whose session it is and when it ends.
func (c *Client) SessionClaims() (*Claims, bool) {
	token := c.SessionToken()
	if token == "" {
		return nil, false
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// SessionExpiry reports when the current session token expires.
func (c *Client) SessionExpiry() (time.Time, bool) {
	claims, ok := c.SessionClaims()
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// HasSession reports whether a session cookie is held and not yet expired.
func (c *Client) HasSession() bool {
	if c.SessionToken() == "" {
		return false
	}
	if expiry, ok := c.SessionExpiry(); ok {
		return time.Now().Before(expiry)
	}
	return true
}

func (c *Client) dropSessionCookie() {
	c.jar.SetCookies(c.baseURL(), []*http.Cookie{{
		Name:   SessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}})
}
