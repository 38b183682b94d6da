// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"axonflow/router/agentpool"
	"axonflow/router/routing"
	"axonflow/router/routing/costmodel"
	"axonflow/router/routing/experiment"
	"axonflow/router/shared/logger"
	"axonflow/router/shared/types"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// agentSeed is one entry of the optional AGENTS_FILE. Health and pricing
// tier are derived at registration.
type agentSeed struct {
	ID             string   `yaml:"id"`
	Provider       string   `yaml:"provider"`
	Model          string   `yaml:"model"`
	Capabilities   []string `yaml:"capabilities"`
	CostPerToken   float64  `yaml:"cost_per_token"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	Uptime         float64  `yaml:"uptime"`
	Accuracy       float64  `yaml:"accuracy"`
}

// Run wires the routing service from the environment and serves HTTP until
// SIGINT or SIGTERM.
//
// Environment variables:
//
//	ROUTER_PORT      - HTTP server port (default: 8090)
//	DATABASE_URL     - PostgreSQL connection string (optional; enables
//	                   durable cost records and experiment results)
//	REDIS_ADDR       - Redis address for assignment caching (optional;
//	                   falls back to the in-memory cache)
//	PRICING_FEED     - pricing/demand YAML file layered over the defaults
//	ROUTING_STRATEGY - default scoring strategy (standard | ml-assisted)
//	AGENTS_FILE      - YAML list of agents to register at startup
func Run() error {
	log := logger.New("router")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := costmodel.NewFeed()
	if path := os.Getenv("PRICING_FEED"); path != "" {
		loaded, err := costmodel.LoadFeed(path)
		if err != nil {
			log.Warn("", "", "pricing feed load failed, using built-in defaults",
				map[string]interface{}{"path": path, "error": err.Error()})
		} else {
			feed = loaded
			log.Info("", "", "pricing feed loaded", map[string]interface{}{"path": path})
		}
	}

	modelOpts := []costmodel.Option{costmodel.WithLogger(log)}
	managerOpts := []experiment.ManagerOption{experiment.WithLogger(log)}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err != nil {
			log.Warn("", "", "database unavailable, persistence disabled",
				map[string]interface{}{"error": err.Error()})
		} else {
			defer db.Close()
			modelOpts = append(modelOpts, costmodel.WithStore(costmodel.NewPostgresStore(db)))
			managerOpts = append(managerOpts, experiment.WithResultStore(experiment.NewPostgresResultStore(db)))
			log.Info("", "", "database connected", nil)
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("", "", "redis unavailable, using in-memory assignment cache",
				map[string]interface{}{"addr": addr, "error": err.Error()})
		} else {
			defer client.Close()
			managerOpts = append(managerOpts, experiment.WithCache(experiment.NewRedisCache(client)))
			log.Info("", "", "redis assignment cache enabled", map[string]interface{}{"addr": addr})
		}
	}

	pool := agentpool.NewMemoryPool()
	if path := os.Getenv("AGENTS_FILE"); path != "" {
		count, err := seedAgents(pool, path)
		if err != nil {
			log.Warn("", "", "agent seed file load failed",
				map[string]interface{}{"path": path, "error": err.Error()})
		} else {
			log.Info("", "", "agents registered from seed file",
				map[string]interface{}{"path": path, "count": count})
		}
	}

	manager := experiment.NewManager(managerOpts...)
	model := costmodel.NewModel(feed, modelOpts...)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	engine := routing.NewEngine(pool,
		routing.WithCostModel(model),
		routing.WithExperiments(manager),
		routing.WithObserver(metrics),
		routing.WithLogger(log),
		routing.WithDefaultStrategy(os.Getenv("ROUTING_STRATEGY")),
	)
	server := NewServer(engine, pool, WithMetrics(metrics, registry), WithServerLogger(log))

	go manager.Run(ctx)

	port := os.Getenv("ROUTER_PORT")
	if port == "" {
		port = "8090"
	}
	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "", "router listening", map[string]interface{}{"port": port})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("", "", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// seedAgents registers the agents listed in the YAML file at path.
func seedAgents(pool *agentpool.MemoryPool, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read agents file: %w", err)
	}

	var seeds []agentSeed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return 0, fmt.Errorf("failed to parse agents file: %w", err)
	}

	registered := 0
	for _, seed := range seeds {
		if seed.ID == "" || seed.Provider == "" || seed.Model == "" {
			return registered, fmt.Errorf("agent entry missing id, provider or model")
		}
		pool.Register(types.AgentSnapshot{
			ID:           seed.ID,
			Provider:     seed.Provider,
			Model:        seed.Model,
			Capabilities: seed.Capabilities,
			CostPerToken: seed.CostPerToken,
			Uptime:       seed.Uptime,
			Accuracy:     seed.Accuracy,
			Load:         types.LoadMetrics{MaxConcurrency: seed.MaxConcurrency},
		})
		registered++
	}
	return registered, nil
}
