package simulator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yap-client/internal/engine/actors"
	"yap-client/internal/models"
)

// SimulateActivities hands every connected user to the worker pool once per
// tick until ctx ends.
func (s *EnhancedSimulator) SimulateActivities(ctx context.Context) {
	s.log.Info("Starting activities simulation...")

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	jobs := make(chan *SimulatedUser, len(s.users))

	var wg sync.WaitGroup
	for i := 0; i < s.config.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for user := range jobs {
				if ctx.Err() != nil {
					continue
				}
				s.act(user)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return
		case <-ticker.C:
			s.mu.RLock()
			for _, user := range s.users {
				if user.IsConnected() {
					select {
					case jobs <- user:
					default: // Don't block if channel is full
					}
				}
			}
			s.mu.RUnlock()
		}
	}
}

// act rolls each activity for one user and performs the ones that come up.
func (s *EnhancedSimulator) act(user *SimulatedUser) {
	if s.chance(s.config.ScrollChance) {
		s.scroll(user)
	}
	if s.chance(s.config.PostChance) {
		s.post(user)
	}
	if s.chance(s.config.LikeChance) {
		s.like(user)
	}
	if s.chance(s.config.CommentChance) {
		s.comment(user)
	}
	if s.chance(s.config.FollowChance) {
		s.follow(user)
	}
}

func (s *EnhancedSimulator) scroll(user *SimulatedUser) {
	key := models.ForYouKey()
	if s.chance(0.3) {
		key = models.FollowingKey()
	}
	result, err := s.ask(user, &actors.OpenFeedMsg{Key: key})
	if err != nil {
		return
	}
	if snap := result.(*actors.FeedSnapshot); snap.HasMore {
		s.ask(user, &actors.LoadMoreMsg{Key: key})
	}
	s.stats.mu.Lock()
	s.stats.TotalScrolls++
	s.stats.mu.Unlock()
}

func (s *EnhancedSimulator) post(user *SimulatedUser) {
	text := fmt.Sprintf("Post by %s at %s", user.Username, time.Now().Format(time.RFC3339))
	result, err := s.ask(user, &actors.CreatePostMsg{Text: text})
	if err != nil {
		return
	}
	post := result.(*models.Post)

	s.mu.Lock()
	s.posts = append(s.posts, post.ID)
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.TotalPosts++
	s.stats.mu.Unlock()
}

// pickPost returns a known post, popular ones more often.
func (s *EnhancedSimulator) pickPost() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.posts) == 0 {
		return "", false
	}
	return s.posts[s.zipfIndex(len(s.posts))], true
}

func (s *EnhancedSimulator) like(user *SimulatedUser) {
	postID, ok := s.pickPost()
	if !ok {
		return
	}
	if _, err := s.ask(user, &actors.ToggleLikeMsg{PostID: postID}); err != nil {
		return
	}
	s.stats.mu.Lock()
	s.stats.TotalLikes++
	s.stats.mu.Unlock()
}

func (s *EnhancedSimulator) comment(user *SimulatedUser) {
	postID, ok := s.pickPost()
	if !ok {
		return
	}
	text := fmt.Sprintf("Comment from %s: %s", user.Username, time.Now().Format(time.RFC3339))
	if _, err := s.ask(user, &actors.AddCommentMsg{PostID: postID, Text: text}); err != nil {
		return
	}
	s.stats.mu.Lock()
	s.stats.TotalComments++
	s.stats.mu.Unlock()
}

func (s *EnhancedSimulator) follow(user *SimulatedUser) {
	s.mu.RLock()
	n := len(s.users)
	if n < 2 {
		s.mu.RUnlock()
		return
	}
	target := s.users[s.intn(n)]
	s.mu.RUnlock()
	if target.ID == user.ID {
		return
	}

	if _, err := s.ask(user, &actors.FollowMsg{UserID: target.ID}); err != nil {
		return
	}
	s.stats.mu.Lock()
	s.stats.TotalFollows++
	s.stats.mu.Unlock()
}
