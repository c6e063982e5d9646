package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"yap-client/internal/config"
	"yap-client/internal/utils"
	"yap-client/simulator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		utils.Log.WithError(err).Fatal("Failed to load configuration")
	}
	utils.InitLogger("yap-simulator", cfg.LogLevel)
	log := utils.Log

	simConfig := simulator.DefaultSimConfig()
	simConfig.API = cfg.API
	simConfig.Feed = cfg.Feed

	sim := simulator.NewEnhancedSimulator(simConfig)

	ctx, cancel := context.WithTimeout(context.Background(), simConfig.SimulationTime)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"api":             cfg.API.Endpoint(""),
		"users":           simConfig.NumUsers,
		"duration":        simConfig.SimulationTime.String(),
		"post_chance":     simConfig.PostChance,
		"like_chance":     simConfig.LikeChance,
		"comment_chance":  simConfig.CommentChance,
		"disconnect_rate": simConfig.DisconnectRate,
		"reconnect_rate":  simConfig.ReconnectRate,
		"zipf_s":          simConfig.ZipfS,
	}).Info("Starting simulation")

	if err := sim.Run(ctx); err != nil {
		log.WithError(err).Fatal("Simulation failed")
	}

	metrics := sim.GetMetrics()
	log.WithFields(logrus.Fields{
		"total_users":  metrics.TotalUsers,
		"active_users": metrics.ActiveUsers,
		"posts":        metrics.TotalPosts,
		"comments":     metrics.TotalComments,
		"likes":        metrics.TotalLikes,
		"follows":      metrics.TotalFollows,
		"reconnects":   metrics.TotalReconnects,
		"errors":       metrics.ErrorCount,
		"api_requests": metrics.APIRequests,
		"api_errors":   metrics.APIErrors,
	}).Info("Simulation completed")
	for op, latency := range metrics.APILatency {
		log.WithField("operation", op).Infof("average latency %v", latency)
	}
}
