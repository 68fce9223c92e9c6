// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

/*
Command nexus runs the Nexus routing gateway.

Nexus terminates OpenAI-compatible chat completion and embeddings requests,
runs them through the reconciler pipeline (Privacy, Budget, Tier/Capability,
Quality, Scheduler), and returns a routing decision as response headers —
it does not proxy the request body to the selected backend itself.

# Usage

	nexus [flags]

# Flags

	-config string
	      path to a TOML configuration file
	-port int
	      HTTP server port, overrides config file and environment
	-monthly-limit float
	      monthly budget limit in dollars, overrides config file and environment
	-hard-limit-action string
	      one of "reject", "queue", "local-only", overrides config file and environment

# Environment Variables

	NEXUS_SERVER_PORT
	NEXUS_BUDGET_MONTHLY_LIMIT
	NEXUS_BUDGET_HARD_LIMIT_ACTION
	NEXUS_QUALITY_ERROR_RATE_THRESHOLD
	NEXUS_ROUTING_ALIASES        comma-separated key=value pairs
	NEXUS_JWT_SECRET             enables bearer-token auth when set
	NEXUS_AUDIT_DATABASE_URL     optional Postgres sink for the audit log

Precedence is flags > environment > config file > built-in defaults.
*/
package main
