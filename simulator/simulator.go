package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"yap-client/internal/config"
	"yap-client/internal/engine"
	"yap-client/internal/engine/actors"
	"yap-client/internal/models"
	"yap-client/internal/utils"
)

type SimConfig struct {
	NumUsers       int
	SimulationTime time.Duration
	TickInterval   time.Duration
	// Chance per tick that a connected user does each activity
	PostChance     float64
	LikeChance     float64
	CommentChance  float64
	FollowChance   float64
	ScrollChance   float64
	DisconnectRate float64
	ReconnectRate  float64
	ZipfS          float64 // skew of post popularity, must be > 1
	SignupsPerSec  float64
	NumWorkers     int
	AskTimeout     time.Duration
	MetricsEvery   time.Duration
	API            *config.APIConfig
	Feed           *config.FeedConfig
}

// DefaultSimConfig returns a small run against the default API address.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		NumUsers:       10,
		SimulationTime: 2 * time.Minute,
		TickInterval:   500 * time.Millisecond,
		PostChance:     0.05,
		LikeChance:     0.2,
		CommentChance:  0.1,
		FollowChance:   0.02,
		ScrollChance:   0.1,
		DisconnectRate: 0.01,
		ReconnectRate:  0.05,
		ZipfS:          1.07,
		SignupsPerSec:  5,
		NumWorkers:     5,
		AskTimeout:     10 * time.Second,
		MetricsEvery:   10 * time.Second,
		API:            config.DefaultAPIConfig(),
		Feed:           config.DefaultFeedConfig(),
	}
}

type SimulationStats struct {
	mu              sync.RWMutex
	StartTime       time.Time
	TotalActions    int64
	SuccessActions  int64
	FailedActions   int64
	AverageLatency  time.Duration
	ActiveUsers     int
	TotalPosts      int
	TotalComments   int
	TotalLikes      int
	TotalFollows    int
	TotalScrolls    int
	TotalReconnects int
}

// SimulatedUser is one signed-up account driven through its own SessionActor.
type SimulatedUser struct {
	ID        string
	Username  string
	Password  string
	PID       *actor.PID
	connected atomic.Bool
}

func (u *SimulatedUser) IsConnected() bool { return u.connected.Load() }

type EnhancedSimulator struct {
	config  SimConfig
	stats   *SimulationStats
	system  *actor.ActorSystem
	metrics *utils.MetricsCollector
	limiter *rate.Limiter
	log     *logrus.Entry

	mu    sync.RWMutex
	users []*SimulatedUser
	posts []string // oldest first; low indexes are the popular ones

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewEnhancedSimulator(cfg SimConfig) *EnhancedSimulator {
	defaults := DefaultSimConfig()
	if cfg.API == nil {
		cfg.API = defaults.API
	}
	if cfg.Feed == nil {
		cfg.Feed = defaults.Feed
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = defaults.NumWorkers
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if cfg.AskTimeout <= 0 {
		cfg.AskTimeout = defaults.AskTimeout
	}
	if cfg.MetricsEvery <= 0 {
		cfg.MetricsEvery = defaults.MetricsEvery
	}
	if cfg.ZipfS <= 1 {
		cfg.ZipfS = defaults.ZipfS
	}
	if cfg.SignupsPerSec <= 0 {
		cfg.SignupsPerSec = defaults.SignupsPerSec
	}

	return &EnhancedSimulator{
		config: cfg,
		stats: &SimulationStats{
			StartTime: time.Now(),
		},
		system:  actor.NewActorSystem(),
		metrics: utils.NewMetricsCollector(),
		limiter: rate.NewLimiter(rate.Limit(cfg.SignupsPerSec), 1),
		log:     utils.Log.WithField("component", "simulator"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run signs up every user, then drives activity until ctx ends.
func (s *EnhancedSimulator) Run(ctx context.Context) error {
	s.log.Info("Starting enhanced simulation...")

	if err := s.initialize(ctx); err != nil {
		return errors.Wrap(err, "initialization failed")
	}
	defer s.shutdown()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SimulateActivities(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *EnhancedSimulator) initialize(ctx context.Context) error {
	s.log.Infof("Creating %d users...", s.config.NumUsers)

	users := make([]*SimulatedUser, s.config.NumUsers)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.NumWorkers)
	for i := range users {
		i := i
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			user, err := s.signup(gctx, i)
			if err != nil {
				return errors.Wrapf(err, "signup of user_%d", i)
			}
			users[i] = user
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	for _, u := range users {
		if u != nil {
			s.users = append(s.users, u)
		}
	}
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.ActiveUsers = len(s.users)
	s.stats.mu.Unlock()

	if err != nil {
		return err
	}
	s.log.Info("Initialization completed successfully")
	return nil
}

func (s *EnhancedSimulator) signup(ctx context.Context, n int) (*SimulatedUser, error) {
	session, err := engine.NewSession(&config.Config{API: s.config.API, Feed: s.config.Feed}, s.metrics)
	if err != nil {
		return nil, err
	}
	user := &SimulatedUser{
		Username: fmt.Sprintf("user_%d_%d", n, time.Now().UnixNano()%100000),
		Password: "testpass123",
		PID:      actors.SpawnSession(s.system, session),
	}

	start := time.Now()
	result, err := actors.Ask(s.system.Root, user.PID, &actors.SignupMsg{Request: models.SignupRequest{
		Username: user.Username,
		FullName: fmt.Sprintf("Sim User %d", n),
		Email:    user.Username + "@test.com",
		Password: user.Password,
	}}, s.config.AskTimeout)
	s.recordActionMetrics(start, err)
	if err != nil {
		s.system.Root.Stop(user.PID)
		return nil, err
	}
	user.ID = result.(*models.User).ID
	user.connected.Store(true)
	return user, nil
}

func (s *EnhancedSimulator) shutdown() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if err := s.system.Root.StopFuture(u.PID).Wait(); err != nil {
			s.log.WithError(err).Warnf("stopping session of %s", u.Username)
		}
	}
}

func (s *EnhancedSimulator) ask(user *SimulatedUser, msg interface{}) (interface{}, error) {
	start := time.Now()
	result, err := actors.Ask(s.system.Root, user.PID, msg, s.config.AskTimeout)
	s.recordActionMetrics(start, err)
	if err != nil {
		s.log.WithError(err).Debugf("%s: %T failed", user.Username, msg)
	}
	return result, err
}

func (s *EnhancedSimulator) chance(p float64) bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < p
}

func (s *EnhancedSimulator) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

// zipfIndex picks an index below n, favouring low ones.
func (s *EnhancedSimulator) zipfIndex(n int) int {
	if n <= 1 {
		return 0
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	zipf := rand.NewZipf(s.rng, s.config.ZipfS, 1, uint64(n-1))
	return int(zipf.Uint64())
}

func (s *EnhancedSimulator) simulateConnectivity(ctx context.Context) {
	s.log.Info("Starting connectivity simulation...")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			users := append([]*SimulatedUser(nil), s.users...)
			s.mu.RUnlock()

			for _, user := range users {
				if user.IsConnected() {
					if s.chance(s.config.DisconnectRate) {
						user.connected.Store(false)
						s.ask(user, &actors.LogoutMsg{})
						s.stats.mu.Lock()
						s.stats.ActiveUsers--
						s.stats.mu.Unlock()
					}
				} else if s.chance(s.config.ReconnectRate) {
					_, err := s.ask(user, &actors.LoginMsg{Credentials: models.Credentials{
						Username: user.Username,
						Password: user.Password,
					}})
					if err != nil {
						continue
					}
					user.connected.Store(true)
					s.stats.mu.Lock()
					s.stats.ActiveUsers++
					s.stats.TotalReconnects++
					s.stats.mu.Unlock()
				}
			}
		}
	}
}

func (s *EnhancedSimulator) recordActionMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalActions++
	if err != nil {
		s.stats.FailedActions++
	} else {
		s.stats.SuccessActions++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalActions-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalActions)
}

func (s *EnhancedSimulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.log.WithFields(logrus.Fields{
				"elapsed":      time.Since(s.stats.StartTime).Round(time.Second).String(),
				"actions":      m.TotalActions,
				"failed":       m.ErrorCount,
				"avg_latency":  m.AverageLatency.String(),
				"active_users": fmt.Sprintf("%d/%d", m.ActiveUsers, m.TotalUsers),
				"posts":        m.TotalPosts,
				"comments":     m.TotalComments,
				"likes":        m.TotalLikes,
				"follows":      m.TotalFollows,
				"api_requests": m.APIRequests,
				"api_rps":      fmt.Sprintf("%.2f", m.APIRequestsPerSecond),
			}).Info("simulation metrics")
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers           int
	ActiveUsers          int
	TotalActions         int64
	TotalPosts           int
	TotalComments        int
	TotalLikes           int
	TotalFollows         int
	TotalScrolls         int
	TotalReconnects      int
	AverageLatency       time.Duration
	ErrorCount           int
	APIRequests          uint64
	APIErrors            uint64
	APIRequestsPerSecond float64
	// Average API latency per client operation
	APILatency map[string]time.Duration
}

// GetMetrics returns the current simulation metrics
func (s *EnhancedSimulator) GetMetrics() SimulationMetrics {
	s.mu.RLock()
	totalUsers := len(s.users)
	s.mu.RUnlock()

	api := s.metrics.Snapshot()

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return SimulationMetrics{
		TotalUsers:           totalUsers,
		ActiveUsers:          s.stats.ActiveUsers,
		TotalActions:         s.stats.TotalActions,
		TotalPosts:           s.stats.TotalPosts,
		TotalComments:        s.stats.TotalComments,
		TotalLikes:           s.stats.TotalLikes,
		TotalFollows:         s.stats.TotalFollows,
		TotalScrolls:         s.stats.TotalScrolls,
		TotalReconnects:      s.stats.TotalReconnects,
		AverageLatency:       s.stats.AverageLatency,
		ErrorCount:           int(s.stats.FailedActions),
		APIRequests:          api.Requests,
		APIErrors:            api.Errors,
		APIRequestsPerSecond: api.RequestsPerSecond,
		APILatency:           api.AverageLatency,
	}
}
