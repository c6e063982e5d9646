package feed

import (
	"context"
	"sync"

	"yap-client/internal/models"
	"yap-client/internal/utils"
)

// DefaultCommentPageSize is the number of comments requested per LoadMore.
const DefaultCommentPageSize = 10

// CommentFetcher loads a window of a post's comments.
type CommentFetcher interface {
	ListComments(ctx context.Context, postID string, skip, limit int) (*models.CommentBatch, error)
}

// CommentPager incrementally loads one post's comments, independent of the
// feed pages the post sits in. The next request always skips exactly what is
// already loaded.
type CommentPager struct {
	mu         sync.Mutex
	postID     string
	remote     CommentFetcher
	pageSize   int
	comments   []models.Comment
	total      int
	hasMore    bool
	loading    bool
	err        error
	generation uint64
}

// NewCommentPager starts from the comments the post arrived with.
func NewCommentPager(post models.Post, remote CommentFetcher, pageSize int) *CommentPager {
	if pageSize <= 0 {
		pageSize = DefaultCommentPageSize
	}
	p := &CommentPager{postID: post.ID, remote: remote, pageSize: pageSize}
	p.resetLocked(models.CommentsState{
		Comments:          post.Comments,
		TotalCommentCount: post.TotalCommentCount,
		HasMoreComments:   post.HasMoreComments,
	})
	return p
}

func (p *CommentPager) resetLocked(state models.CommentsState) {
	p.comments = append([]models.Comment{}, state.Comments...)
	p.total = state.TotalCommentCount
	if p.total < len(p.comments) {
		p.total = len(p.comments)
	}
	p.hasMore = state.HasMoreComments
	p.err = nil
}

func (p *CommentPager) PostID() string { return p.postID }

// LoadMore appends the next batch. Calls while a batch is loading, or after
// the server reported no more comments, do nothing.
func (p *CommentPager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.loading || !p.hasMore {
		p.mu.Unlock()
		return nil
	}
	p.loading = true
	skip := len(p.comments)
	gen := p.generation
	p.mu.Unlock()

	batch, err := p.remote.ListComments(ctx, p.postID, skip, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		// replaced by an add-comment response while loading
		return nil
	}
	p.loading = false
	if err != nil {
		p.err = err
		utils.Log.WithError(err).WithField("post", p.postID).Warn("failed to load comments")
		return err
	}

	p.err = nil
	p.comments = append(p.comments, batch.Items...)
	p.hasMore = batch.HasMore
	if p.total < len(p.comments) {
		p.total = len(p.comments)
	}
	return nil
}

// Replace resets the pager to the server's recount after a new comment.
func (p *CommentPager) Replace(state models.CommentsState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.loading = false
	p.resetLocked(state)
}

func (p *CommentPager) Comments() []models.Comment {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Comment{}, p.comments...)
}

func (p *CommentPager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *CommentPager) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Remaining is how many comments exist beyond those loaded, never negative.
func (p *CommentPager) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.total - len(p.comments); n > 0 {
		return n
	}
	return 0
}

func (p *CommentPager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

func (p *CommentPager) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
