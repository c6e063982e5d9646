package testutil

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"yap-client/internal/middleware"
	"yap-client/internal/models"
)

const maxSuggested = 4

type pagination struct {
	Page    int  `json:"page,omitempty"`
	HasMore bool `json:"hasMore"`
}

type listResponse struct {
	Data       interface{} `json:"data"`
	Pagination pagination  `json:"pagination"`
}

func intParam(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Auth

func (f *FakeAPI) signup(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req := models.SignupRequest{
		Username: c.body["username"],
		FullName: c.body["fullName"],
		Email:    c.body["email"],
		Password: c.body["password"],
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}
	if f.userByName(req.Username) != nil {
		writeError(w, http.StatusBadRequest, "Username is already taken")
		return
	}

	user := f.addUserLocked(req)
	if err := f.tokens.SetSessionCookie(w, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := f.userByName(c.body["username"])
	if user == nil || f.passwords[user.Username] != c.body["password"] {
		writeError(w, http.StatusBadRequest, "Invalid username or password")
		return
	}
	if err := f.tokens.SetSessionCookie(w, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeAPI) logout(w http.ResponseWriter, r *http.Request, c call) {
	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (f *FakeAPI) me(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[c.userID]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Posts

func (f *FakeAPI) paginate(w http.ResponseWriter, r *http.Request, posts []*storedPost) {
	page := intParam(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := intParam(r, "limit", 10)
	if limit < 1 {
		limit = 10
	}

	start := (page - 1) * limit
	if start > len(posts) {
		start = len(posts)
	}
	end := start + limit
	if end > len(posts) {
		end = len(posts)
	}

	data := make([]models.Post, 0, end-start)
	for _, sp := range posts[start:end] {
		data = append(data, f.view(sp))
	}
	writeJSON(w, http.StatusOK, listResponse{
		Data:       data,
		Pagination: pagination{Page: page, HasMore: end < len(posts)},
	})
}

func (f *FakeAPI) listAll(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paginate(w, r, f.postsWhere(func(*storedPost) bool { return true }))
}

func (f *FakeAPI) listFollowing(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := f.users[c.userID]
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	f.paginate(w, r, f.postsWhere(func(sp *storedPost) bool {
		return contains(user.Following, sp.authorID)
	}))
}

func (f *FakeAPI) listUserPosts(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := f.userByName(chi.URLParam(r, "username"))
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	f.paginate(w, r, f.postsWhere(func(sp *storedPost) bool { return sp.authorID == user.ID }))
}

func (f *FakeAPI) listLikes(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := f.users[chi.URLParam(r, "userId")]
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	f.paginate(w, r, f.postsWhere(func(sp *storedPost) bool {
		return contains(user.LikedPosts, sp.post.ID)
	}))
}

func (f *FakeAPI) createPost(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[c.userID]; !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	text, image := c.body["text"], c.body["image"]
	if text == "" && image == "" {
		writeError(w, http.StatusBadRequest, "Post must have text or image")
		return
	}
	writeJSON(w, http.StatusCreated, f.view(f.addPostLocked(c.userID, text, image)))
}

func (f *FakeAPI) deletePost(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := chi.URLParam(r, "id")
	sp, ok := f.posts[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if sp.authorID != c.userID {
		writeError(w, http.StatusUnauthorized, "You are not authorized to delete this post")
		return
	}

	delete(f.posts, id)
	f.order = without(f.order, id)
	for _, u := range f.users {
		u.LikedPosts = without(u.LikedPosts, id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Post deleted successfully"})
}

func (f *FakeAPI) toggleLike(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sp, ok := f.posts[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	user := f.users[c.userID]

	if contains(sp.post.Likes, c.userID) {
		sp.post.Likes = without(sp.post.Likes, c.userID)
		user.LikedPosts = without(user.LikedPosts, sp.post.ID)
	} else {
		sp.post.Likes = append(sp.post.Likes, c.userID)
		user.LikedPosts = append(user.LikedPosts, sp.post.ID)
		if sp.authorID != c.userID {
			f.notifyLocked(sp.authorID, models.NotificationLike, user)
		}
	}
	writeJSON(w, http.StatusOK, sp.post.Likes)
}

func (f *FakeAPI) addComment(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	text := c.body["text"]
	if text == "" {
		writeError(w, http.StatusBadRequest, "Text field is required")
		return
	}
	sp, ok := f.posts[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	f.addCommentLocked(sp, c.userID, text)
	v := f.view(sp)
	writeJSON(w, http.StatusOK, models.CommentsState{
		Comments:          v.Comments,
		TotalCommentCount: v.TotalCommentCount,
		HasMoreComments:   v.HasMoreComments,
	})
}

func (f *FakeAPI) listComments(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sp, ok := f.posts[chi.URLParam(r, "id")]
	if !ok {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	all := sp.post.Comments
	skip := intParam(r, "skip", 0)
	limit := intParam(r, "limit", 10)
	if skip > len(all) {
		skip = len(all)
	}
	end := skip + limit
	if end > len(all) {
		end = len(all)
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data:       append([]models.Comment{}, all[skip:end]...),
		Pagination: pagination{HasMore: end < len(all)},
	})
}

// Users

func (f *FakeAPI) follow(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	targetID := chi.URLParam(r, "id")
	if targetID == c.userID {
		writeError(w, http.StatusBadRequest, "You can't follow/unfollow yourself")
		return
	}
	target, ok := f.users[targetID]
	me := f.users[c.userID]
	if !ok || me == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	if contains(me.Following, targetID) {
		me.Following = without(me.Following, targetID)
		target.Followers = without(target.Followers, me.ID)
		writeJSON(w, http.StatusOK, map[string]string{"message": "User unfollowed successfully"})
		return
	}
	me.Following = append(me.Following, targetID)
	target.Followers = append(target.Followers, me.ID)
	f.notifyLocked(targetID, models.NotificationFollow, me)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User followed successfully"})
}

func (f *FakeAPI) updateProfile(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[c.userID]
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	current, next := c.body["currentPassword"], c.body["newPassword"]
	if (current == "") != (next == "") {
		writeError(w, http.StatusBadRequest, "Please provide both current password and new password")
		return
	}
	if current != "" {
		if f.passwords[user.Username] != current {
			writeError(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		if len(next) < 6 {
			writeError(w, http.StatusBadRequest, "Password must be at least 6 characters long")
			return
		}
		f.passwords[user.Username] = next
	}

	if name, ok := c.body["username"]; ok && name != user.Username {
		if f.userByName(name) != nil {
			writeError(w, http.StatusBadRequest, "Username is already taken")
			return
		}
		f.passwords[name] = f.passwords[user.Username]
		delete(f.passwords, user.Username)
		user.Username = name
	}

	for field, dst := range map[string]*string{
		"fullName":       &user.FullName,
		"email":          &user.Email,
		"bio":            &user.Bio,
		"link":           &user.Link,
		"profilePicture": &user.ProfilePicture,
		"coverPicture":   &user.CoverPicture,
	} {
		if v, ok := c.body[field]; ok {
			*dst = v
		}
	}
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeAPI) profile(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user := f.userByName(chi.URLParam(r, "username"))
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (f *FakeAPI) suggested(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()

	me := f.users[c.userID]
	out := []models.SuggestedUser{}
	for _, id := range sortedIDs(f.users) {
		if id == c.userID || (me != nil && contains(me.Following, id)) {
			continue
		}
		u := f.users[id]
		out = append(out, models.SuggestedUser{
			ID:             u.ID,
			Username:       u.Username,
			FullName:       u.FullName,
			ProfilePicture: u.ProfilePicture,
		})
		if len(out) == maxSuggested {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Notifications

func (f *FakeAPI) notifyLocked(toUserID string, kind models.NotificationType, from *models.User) {
	n := models.Notification{
		ID:   primitive.NewObjectIDFromTimestamp(f.tick()).Hex(),
		Type: kind,
	}
	n.From.Username = from.Username
	n.From.ProfileImg = from.ProfilePicture
	f.notifications[toUserID] = append([]models.Notification{n}, f.notifications[toUserID]...)
}

func (f *FakeAPI) listNotifications(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, append([]models.Notification{}, f.notifications[c.userID]...))
}

func (f *FakeAPI) deleteNotifications(w http.ResponseWriter, r *http.Request, c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notifications, c.userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notifications deleted successfully"})
}
