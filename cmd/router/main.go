// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the AxonFlow routing service.
//
// The router selects the best agent for each AI-generation request by
// weighing capability fit, predicted cost, current load and any active
// A/B experiment, and exposes the decision pipeline over HTTP.
//
// Usage:
//
//	./router
//
// Environment Variables:
//
//	ROUTER_PORT - HTTP server port (default: 8090)
//	DATABASE_URL - PostgreSQL connection string (optional)
//	REDIS_ADDR - Redis address for assignment caching (optional)
//	PRICING_FEED - pricing/demand YAML file (optional)
//	ROUTING_STRATEGY - default scoring strategy (standard | ml-assisted)
//	AGENTS_FILE - YAML list of agents to register at startup (optional)
//
// For more information, see https://docs.getaxonflow.com
package main

import (
	"fmt"
	"os"

	"axonflow/router/service"
)

func main() {
	if err := service.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
