// Package testutil provides an in-memory stand-in for the feed API so client
// code can be tested end to end over real HTTP.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"yap-client/internal/config"
	"yap-client/internal/middleware"
	"yap-client/internal/models"
)

// PreviewComments is how many comments the API embeds in a post.
const PreviewComments = 5

const fakeSecret = "fake-api-secret"

type storedPost struct {
	post     models.Post // Comments holds every comment, oldest first
	authorID string
}

type failure struct {
	status  int
	message string
}

// FakeAPI is a small, thread-safe imitation of the feed API.
type FakeAPI struct {
	mu            sync.Mutex
	server        *httptest.Server
	handler       http.Handler
	tokens        *middleware.TokenIssuer
	users         map[string]*models.User // by id
	passwords     map[string]string       // username -> password
	posts         map[string]*storedPost
	order         []string // post ids, oldest first
	notifications map[string][]models.Notification
	calls         map[string]int
	queries       map[string][]string
	bodies        map[string][]map[string]string
	failures      map[string][]failure
	gates         map[string]*Gate
	clock         time.Time
	wallClock     bool
}

// NewFakeAPI starts a fake API server. Call Close when done.
func NewFakeAPI() *FakeAPI {
	f := NewDetachedFakeAPI()
	f.server = httptest.NewServer(f.Handler())
	return f
}

// NewDetachedFakeAPI returns a FakeAPI that is not listening anywhere; serve
// Handler yourself.
func NewDetachedFakeAPI() *FakeAPI {
	f := &FakeAPI{
		tokens:        middleware.NewTokenIssuer(fakeSecret),
		users:         make(map[string]*models.User),
		passwords:     make(map[string]string),
		posts:         make(map[string]*storedPost),
		notifications: make(map[string][]models.Notification),
		calls:         make(map[string]int),
		queries:       make(map[string][]string),
		bodies:        make(map[string][]map[string]string),
		failures:      make(map[string][]failure),
		gates:         make(map[string]*Gate),
		clock:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	f.handler = f.routes()
	return f
}

func (f *FakeAPI) Close() {
	if f.server != nil {
		f.server.Close()
	}
}

func (f *FakeAPI) URL() string {
	if f.server == nil {
		return ""
	}
	return f.server.URL
}

func (f *FakeAPI) Handler() http.Handler { return f.handler }

// Counts reports how many users and posts the fake currently holds.
func (f *FakeAPI) Counts() (users, posts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), len(f.posts)
}

// APIConfig points a client at this server.
func (f *FakeAPI) APIConfig() *config.APIConfig {
	cfg := config.DefaultAPIConfig()
	cfg.BaseURL = f.server.URL
	cfg.HTTPTimeout = 5 * time.Second
	return cfg
}

func (f *FakeAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(nil))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", f.handle("signup", f.signup))
		r.Post("/auth/login", f.handle("login", f.login))
		r.Post("/auth/logout", f.handle("logout", f.logout))

		r.Group(func(r chi.Router) {
			r.Use(f.tokens.SessionAuth)

			r.Get("/auth/me", f.handle("current_user", f.me))

			r.Get("/posts/all", f.handle("list_posts", f.listAll))
			r.Get("/posts/following", f.handle("list_posts", f.listFollowing))
			r.Get("/posts/user/{username}", f.handle("list_posts", f.listUserPosts))
			r.Get("/posts/likes/{userId}", f.handle("list_posts", f.listLikes))
			r.Post("/posts/create", f.handle("create_post", f.createPost))
			r.Delete("/posts/{id}", f.handle("delete_post", f.deletePost))
			r.Post("/posts/like/{id}", f.handle("toggle_like", f.toggleLike))
			r.Post("/posts/comment/{id}", f.handle("add_comment", f.addComment))
			r.Get("/posts/{id}/comments", f.handle("list_comments", f.listComments))

			r.Post("/users/follow/{id}", f.handle("follow", f.follow))
			r.Post("/users/update", f.handle("update_profile", f.updateProfile))
			r.Get("/users/profile/{username}", f.handle("user_profile", f.profile))
			r.Get("/users/suggested", f.handle("suggested_users", f.suggested))

			r.Get("/notifications", f.handle("notifications", f.listNotifications))
			r.Delete("/notifications", f.handle("delete_notifications", f.deleteNotifications))
		})
	})
	return r
}

// call is what a handler gets besides the request itself.
type call struct {
	userID string
	body   map[string]string
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, c call)

// handle counts the call, applies queued failures and gates, then runs h.
func (f *FakeAPI) handle(op string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		f.mu.Lock()
		f.calls[op]++
		f.queries[op] = append(f.queries[op], r.URL.RawQuery)
		f.bodies[op] = append(f.bodies[op], body)
		gate := f.gates[op]
		delete(f.gates, op)
		var fail *failure
		if queued := f.failures[op]; len(queued) > 0 {
			fail = &queued[0]
			f.failures[op] = queued[1:]
		}
		f.mu.Unlock()

		if gate != nil {
			gate.wait(r)
		}
		if fail != nil {
			writeJSON(w, fail.status, map[string]string{"message": fail.message})
			return
		}

		userID, _ := middleware.GetUserIDFromContext(r.Context())
		h(w, r, call{userID: userID, body: body})
	}
}

// FailNext makes the next call to op answer status with message.
func (f *FakeAPI) FailNext(op string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], failure{status: status, message: message})
}

// Calls reports how many requests op has received.
func (f *FakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Queries returns the raw query strings op was called with, in order.
func (f *FakeAPI) Queries(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries[op]...)
}

// Bodies returns the JSON bodies op was called with, in order.
func (f *FakeAPI) Bodies(op string) []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.bodies[op]...)
}

// Gate holds one request inside the server until released.
type Gate struct {
	arrived chan struct{}
	release chan struct{}
	once    sync.Once
	relOnce sync.Once
}

// Block makes the next call to op wait at the gate.
func (f *FakeAPI) Block(op string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()
	return g
}

// Arrived is closed once the blocked request reached the server.
func (g *Gate) Arrived() <-chan struct{} { return g.arrived }

func (g *Gate) Release() { g.relOnce.Do(func() { close(g.release) }) }

func (g *Gate) wait(r *http.Request) {
	g.once.Do(func() { close(g.arrived) })
	select {
	case <-g.release:
	case <-r.Context().Done():
	}
}

// AddUser registers a user directly and returns it.
func (f *FakeAPI) AddUser(username, password string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.addUserLocked(models.SignupRequest{
		Username: username,
		FullName: strings.ToUpper(username[:1]) + username[1:],
		Email:    username + "@example.com",
		Password: password,
	})
}

func (f *FakeAPI) addUserLocked(req models.SignupRequest) *models.User {
	user := &models.User{
		ID:         primitive.NewObjectIDFromTimestamp(f.tick()).Hex(),
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Followers:  []string{},
		Following:  []string{},
		LikedPosts: []string{},
		CreatedAt:  f.clock,
	}
	f.users[user.ID] = user
	f.passwords[req.Username] = req.Password
	return user
}

// AddPost stores a post by authorID and returns it as the feed would show it.
func (f *FakeAPI) AddPost(authorID, text string) models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view(f.addPostLocked(authorID, text, ""))
}

func (f *FakeAPI) addPostLocked(authorID, text, image string) *storedPost {
	author := f.users[authorID]
	created := f.tick()
	sp := &storedPost{
		authorID: authorID,
		post: models.Post{
			ID:        primitive.NewObjectIDFromTimestamp(created).Hex(),
			Author:    author.Summary(),
			Text:      text,
			Image:     image,
			Likes:     []string{},
			Comments:  []models.Comment{},
			CreatedAt: created,
		},
	}
	f.posts[sp.post.ID] = sp
	f.order = append(f.order, sp.post.ID)
	return sp
}

// AddComments appends n comments by authorID to postID.
func (f *FakeAPI) AddComments(postID, authorID string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp := f.posts[postID]
	for i := 0; i < n; i++ {
		f.addCommentLocked(sp, authorID, "comment "+strconv.Itoa(len(sp.post.Comments)+1))
	}
}

func (f *FakeAPI) addCommentLocked(sp *storedPost, authorID, text string) {
	sp.post.Comments = append(sp.post.Comments, models.Comment{
		ID:     primitive.NewObjectIDFromTimestamp(f.tick()).Hex(),
		Author: f.users[authorID].Summary(),
		Text:   text,
	})
}

// Post returns the server's full copy of a post.
func (f *FakeAPI) Post(id string) (models.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp, ok := f.posts[id]
	if !ok {
		return models.Post{}, false
	}
	return sp.post.Clone(), true
}

// User returns the server's copy of a user.
func (f *FakeAPI) User(id string) (models.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// tick advances the fake clock so ids and timestamps are strictly ordered.
func (f *FakeAPI) tick() time.Time {
	if f.wallClock {
		return time.Now().UTC()
	}
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// UseWallClock stamps new users and posts with the current time instead of
// the fixed test clock.
func (f *FakeAPI) UseWallClock() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wallClock = true
}

// view is a post as list endpoints return it: only the first comments embedded.
func (f *FakeAPI) view(sp *storedPost) models.Post {
	p := sp.post.Clone()
	if author, ok := f.users[sp.authorID]; ok {
		p.Author = author.Summary()
	}
	p.TotalCommentCount = len(p.Comments)
	if len(p.Comments) > PreviewComments {
		p.Comments = p.Comments[:PreviewComments]
	}
	p.HasMoreComments = p.TotalCommentCount > len(p.Comments)
	return p
}

func (f *FakeAPI) userByName(username string) *models.User {
	for _, u := range f.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

// newest first, like the API
func (f *FakeAPI) postsWhere(match func(*storedPost) bool) []*storedPost {
	var out []*storedPost
	for i := len(f.order) - 1; i >= 0; i-- {
		if sp := f.posts[f.order[i]]; match(sp) {
			out = append(out, sp)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func sortedIDs(m map[string]*models.User) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
