package models

import (
	"time"
)

type User struct {
	ID             string    `json:"_id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	FullName       string    `json:"fullName"`
	ProfilePicture string    `json:"profilePicture"`
	CoverPicture   string    `json:"coverPicture"`
	Bio            string    `json:"bio,omitempty"`
	Link           string    `json:"link,omitempty"`
	Followers      []string  `json:"followers"`
	Following      []string  `json:"following"`
	LikedPosts     []string  `json:"likedPosts"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Summary returns the snapshot embedded in posts authored by u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Username:       u.Username,
		FullName:       u.FullName,
		ProfilePicture: u.ProfilePicture,
	}
}

// IsFollowing reports whether u follows userID.
func (u User) IsFollowing(userID string) bool {
	for _, id := range u.Following {
		if id == userID {
			return true
		}
	}
	return false
}

type SuggestedUser struct {
	ID             string `json:"_id"`
	Username       string `json:"username"`
	FullName       string `json:"fullName"`
	ProfilePicture string `json:"profilePicture"`
}

// Credentials for POST /auth/login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignupRequest for POST /auth/signup.
type SignupRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileForm is the editable profile as the user filled it in. Picture fields
// are nil when the user did not pick a new image.
type ProfileForm struct {
	FullName        string
	Username        string
	Email           string
	Bio             string
	Link            string
	CurrentPassword string
	NewPassword     string
	ProfilePicture  *string
	CoverPicture    *string
}

// ProfileUpdate is the partial payload for POST /users/update. Absent fields are
// left unchanged server-side.
type ProfileUpdate map[string]string
