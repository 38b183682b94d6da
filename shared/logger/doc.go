// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger provides structured JSON logging for the AxonFlow routing
service.

# Overview

The logger outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (routing-engine, routing-service, experiment-manager, ...)
  - Instance ID (for distributed tracing)
  - User ID (the routed user)
  - Request ID (for request correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("routing-engine")

Log messages with user and request context:

	log.Info("user-123", "req-456", "request routed", map[string]interface{}{
	    "agent": "gpt-4",
	    "score": 87.5,
	})

Log errors with the error attached:

	log.ErrorWithErr("user-123", "req-456", "cost prediction degraded", err, nil)

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("user-123", "req-456", "request routed",
	    float64(time.Since(start).Milliseconds()), nil)

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"routing-engine","instance_id":"i-abc123",
	 "user_id":"user-123","request_id":"req-456",
	 "message":"request routed","fields":{"agent":"gpt-4"}}

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
