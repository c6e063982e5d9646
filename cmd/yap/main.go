package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docopt/docopt-go"

	"yap-client/internal/config"
	"yap-client/internal/engine"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

const YapVersion = "0.1.0"

const usage = `Yap command line client.

Credentials come from --username/--password or YAP_USERNAME/YAP_PASSWORD.
The API address comes from YAP_API_URL unless --api_url is given.

Usage:
    yap feed [--following | --posts=<username> | --likes=<user_id>] [--pages=<n>] [options]
    yap post <text> [--image=<image>] [options]
    yap delete <post_id> [options]
    yap like <post_id> [options]
    yap comment <post_id> <text> [options]
    yap comments <post_id> [--all] [options]
    yap follow <user_id> [options]
    yap notifications [--clear] [options]
    yap suggested [options]
    yap profile <username> [options]
    yap whoami [options]
    yap -h | --help
    yap --version

Options:
    -h --help                Show this screen.
    --version                Show version.
    --username=<username>    Account to log in as.
    --password=<password>    Password for the account.
    --api_url=<api_url>      Override the API base url.
    --pages=<n>              Pages to scroll through [default: 1].
    --image=<image>          Image attached to the post.
    --all                    Load every comment, not just the preview.
    --clear                  Delete all notifications after listing them.
    --debug                  Log at debug level.`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fail(err)
	}
}

// run executes one command line against the API and writes its output to out.
func run(args []string, out io.Writer) error {
	opts, err := docopt.ParseArgs(usage, args, YapVersion)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if debug, _ := opts.Bool("--debug"); debug {
		cfg.LogLevel = "debug"
	}
	utils.InitLogger("yap", cfg.LogLevel)
	if apiURL, _ := opts.String("--api_url"); apiURL != "" {
		cfg.API.BaseURL = strings.TrimRight(apiURL, "/")
	}

	session, err := engine.NewSession(cfg, nil)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := login(ctx, session, opts); err != nil {
		return err
	}

	if feed_, _ := opts.Bool("feed"); feed_ {
		err = feed(ctx, out, session, opts)
	} else if post_, _ := opts.Bool("post"); post_ {
		err = createPost(ctx, out, session, opts)
	} else if delete_, _ := opts.Bool("delete"); delete_ {
		err = deletePost(ctx, out, session, opts)
	} else if like_, _ := opts.Bool("like"); like_ {
		err = like(ctx, out, session, opts)
	} else if comment_, _ := opts.Bool("comment"); comment_ {
		err = comment(ctx, out, session, opts)
	} else if comments_, _ := opts.Bool("comments"); comments_ {
		err = comments(ctx, out, session, opts)
	} else if follow_, _ := opts.Bool("follow"); follow_ {
		err = follow(ctx, out, session, opts)
	} else if notifications_, _ := opts.Bool("notifications"); notifications_ {
		err = notifications(ctx, out, session, opts)
	} else if suggested_, _ := opts.Bool("suggested"); suggested_ {
		err = suggested(ctx, out, session)
	} else if profile_, _ := opts.Bool("profile"); profile_ {
		err = profile(ctx, out, session, opts)
	} else if whoami_, _ := opts.Bool("whoami"); whoami_ {
		err = whoami(ctx, out, session)
	}
	return err
}

func fail(err error) {
	utils.Log.WithError(err).Debug("command failed")
	fmt.Fprintln(os.Stderr, utils.UserMessage(err))
	os.Exit(1)
}

func login(ctx context.Context, session *engine.Session, opts docopt.Opts) error {
	username, _ := opts.String("--username")
	if username == "" {
		username = os.Getenv("YAP_USERNAME")
	}
	password, _ := opts.String("--password")
	if password == "" {
		password = os.Getenv("YAP_PASSWORD")
	}
	_, err := session.Login(ctx, models.Credentials{Username: username, Password: password})
	return err
}

func feedKey(opts docopt.Opts) models.ViewKey {
	if following, _ := opts.Bool("--following"); following {
		return models.FollowingKey()
	}
	if username, _ := opts.String("--posts"); username != "" {
		return models.UserPostsKey(username)
	}
	if userID, _ := opts.String("--likes"); userID != "" {
		return models.UserLikesKey(userID)
	}
	return models.ForYouKey()
}

func feed(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	pagesOpt, _ := opts.String("--pages")
	pages, err := strconv.Atoi(pagesOpt)
	if err != nil || pages < 1 {
		return utils.NewValidationError(utils.ErrInvalidInput, "--pages must be a positive number")
	}

	c, err := session.Feed(ctx, feedKey(opts))
	if err != nil {
		return err
	}
	for i := 1; i < pages && c.HasMore(); i++ {
		if err := c.LoadMore(ctx); err != nil {
			return err
		}
	}

	posts := c.Posts()
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts in this tab. Switch 👻")
		return nil
	}
	now := time.Now()
	for _, p := range posts {
		printPost(out, p, now)
	}
	if c.HasMore() {
		fmt.Fprintln(out, "(more posts available, use --pages)")
	}
	return nil
}

func printPost(out io.Writer, p models.Post, now time.Time) {
	fmt.Fprintf(out, "%s  @%s · %s\n", p.ID, p.Author.Username, utils.FormatPostDate(p.Created(), now))
	fmt.Fprintf(out, "    %s\n", p.Text)
	if p.Image != "" {
		fmt.Fprintf(out, "    [image] %s\n", p.Image)
	}
	fmt.Fprintf(out, "    ♥ %d  💬 %d\n", len(p.Likes), p.TotalCommentCount)
}

func createPost(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	text, _ := opts.String("<text>")
	image, _ := opts.String("--image")
	post, err := session.Actions().CreatePost(ctx, text, image)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Post created successfully")
	printPost(out, *post, time.Now())
	return nil
}

func deletePost(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	if err := session.Actions().DeletePost(ctx, postID); err != nil {
		return err
	}
	fmt.Fprintln(out, "Post deleted successfully")
	return nil
}

func like(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	likes, err := session.Actions().ToggleLike(ctx, postID)
	if err != nil {
		return err
	}
	me, err := session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	liked := models.Post{Likes: likes}.LikedBy(me.ID)
	if liked {
		fmt.Fprintf(out, "Liked %s (%d likes)\n", postID, len(likes))
	} else {
		fmt.Fprintf(out, "Unliked %s (%d likes)\n", postID, len(likes))
	}
	return nil
}

func comment(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	text, _ := opts.String("<text>")
	state, err := session.Actions().AddComment(ctx, postID, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Comment posted successfully (%d comments)\n", state.TotalCommentCount)
	return nil
}

func comments(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	postID, _ := opts.String("<post_id>")
	all, _ := opts.Bool("--all")

	// The pager starts from the preview embedded in a fetched post.
	c, err := session.Feed(ctx, models.ForYouKey())
	if err != nil {
		return err
	}
	var post *models.Post
	for c.HasMore() {
		if post = findPost(c.Posts(), postID); post != nil {
			break
		}
		if err := c.LoadMore(ctx); err != nil {
			return err
		}
	}
	if post == nil {
		post = findPost(c.Posts(), postID)
	}
	if post == nil {
		return utils.NewValidationError(utils.ErrNotFound, "Post not found")
	}

	pager := session.Comments(*post)
	for all && pager.HasMore() {
		if err := pager.LoadMore(ctx); err != nil {
			return err
		}
	}
	for _, cm := range pager.Comments() {
		fmt.Fprintf(out, "@%s: %s\n", cm.Author.Username, cm.Text)
	}
	if remaining := pager.Remaining(); remaining > 0 {
		fmt.Fprintf(out, "View %d more comments (use --all)\n", remaining)
	}
	return nil
}

func findPost(posts []models.Post, postID string) *models.Post {
	for i := range posts {
		if posts[i].ID == postID {
			return &posts[i]
		}
	}
	return nil
}

func follow(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	userID, _ := opts.String("<user_id>")
	if err := session.Actions().Follow(ctx, userID); err != nil {
		return err
	}
	me, err := session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if me.IsFollowing(userID) {
		fmt.Fprintln(out, "Followed", userID)
	} else {
		fmt.Fprintln(out, "Unfollowed", userID)
	}
	return nil
}

func notifications(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	list, err := session.Notifications(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No notifications 🤔")
	}
	for _, n := range list {
		fmt.Fprintln(out, n.Describe())
	}
	if clearAll, _ := opts.Bool("--clear"); clearAll && len(list) > 0 {
		if err := session.Actions().DeleteNotifications(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Notifications deleted successfully")
	}
	return nil
}

func suggested(ctx context.Context, out io.Writer, session *engine.Session) error {
	users, err := session.SuggestedUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(out, "%s  %s (@%s)\n", u.ID, u.FullName, u.Username)
	}
	return nil
}

func profile(ctx context.Context, out io.Writer, session *engine.Session, opts docopt.Opts) error {
	username, _ := opts.String("<username>")
	user, err := session.Profile(ctx, username)
	if err != nil {
		return err
	}
	printUser(out, user)
	return nil
}

func whoami(ctx context.Context, out io.Writer, session *engine.Session) error {
	user, err := session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	printUser(out, user)
	return nil
}

func printUser(out io.Writer, u *models.User) {
	fmt.Fprintf(out, "%s (@%s)  %s\n", u.FullName, u.Username, u.ID)
	if u.Bio != "" {
		fmt.Fprintln(out, u.Bio)
	}
	if u.Link != "" {
		fmt.Fprintln(out, u.Link)
	}
	fmt.Fprintln(out, utils.FormatMemberSince(u.CreatedAt))
	fmt.Fprintf(out, "%d following · %d followers\n", len(u.Following), len(u.Followers))
}
