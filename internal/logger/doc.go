// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for the Nexus routing core.

# Overview

The logger package provides structured logging that writes JSON through the
standard library's log package (stderr by default),
making logs easily consumable by CloudWatch, ELK stack, or other log
aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (nexus, router, fallback, etc.)
  - Instance ID and container name (for distributed tracing)
  - Request ID (for per-request correlation across reconciler stages)
  - Agent ID (backend attribution, when a line concerns one backend)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("router")

Log messages with request and backend context:

	log.Info("", reqID, "Processing request", map[string]interface{}{
	    "method": "POST",
	    "path":   "/v1/chat/completions",
	})

Log errors with status codes:

	log.ErrorWithCode("", reqID, "Request failed", 500, err, map[string]interface{}{
	    "endpoint": "/v1/chat/completions",
	})

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("", reqID, "Request completed",
	    float64(time.Since(start).Milliseconds()), nil)

# Output Format

Each log entry is one line: the log package's date/time prefix followed by
the JSON object:

	2025/01/15 10:30:00 {"timestamp":"2025-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"router","instance_id":"i-abc123","container":"router-xyz",
	 "request_id":"req-456",
	 "message":"Processing request","fields":{"method":"POST"}}

# Environment Variables

The logger reads one environment variable:

  - INSTANCE_ID: Deployment instance identifier ("unknown" when unset)

The container name is taken from os.Hostname().

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
