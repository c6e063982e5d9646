package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/go-chi/chi/v5"

	"yap-client/internal/testutil"
	"yap-client/internal/utils"
)

const usage = `In-memory feed API for running the client and simulator locally.

Usage:
    devserver [--addr=<addr>] [--seed]
    devserver -h | --help

Options:
    -h --help      Show this screen.
    --addr=<addr>  Listen address [default: localhost:5000].
    --seed         Create demo users alice and bob (password "password123") with a few posts.`

// Server holds all dependencies
type Server struct {
	api *testutil.FakeAPI
}

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], "")
	if err != nil {
		panic(err)
	}
	addr, _ := opts.String("--addr")
	seed, _ := opts.Bool("--seed")

	utils.InitLogger("yap-devserver", os.Getenv("LOG_LEVEL"))
	log := utils.Log

	server := NewServer(seed)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.Infof("Starting server on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("Server failed to start")
	}
}

// NewServer builds the in-memory API, optionally with demo content.
func NewServer(seed bool) *Server {
	api := testutil.NewDetachedFakeAPI()
	api.UseWallClock()
	if seed {
		alice := api.AddUser("alice", "password123")
		bob := api.AddUser("bob", "password123")
		first := api.AddPost(alice.ID, "hello from alice")
		api.AddPost(bob.ID, "bob was here")
		api.AddComments(first.ID, bob.ID, 7)
	}
	return &Server{api: api}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Mount("/", s.api.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	users, posts := s.api.Counts()
	response := fmt.Sprintf("Yap dev server status:\n"+
		"- Total Users: %d\n"+
		"- Total Posts: %d\n",
		users,
		posts,
	)
	fmt.Fprint(w, response)
}
