// Copyright 2026 Nexus Authors
// SPDX-License-Identifier: Apache-2.0

/*
Command nexusctl is an administration CLI for a Nexus deployment.

	nexusctl config validate --config nexus.toml
	nexusctl routes explain --config nexus.toml --model gpt-4

"config validate" parses and builds a TOML configuration file without
starting the server, surfacing the same fatal-vs-warn validation the
server applies at startup.

"routes explain" runs a synthetic chat request through the reconciler
pipeline against a configuration file and prints the resulting decision
and, on a reject or queue outcome, every rejection recorded along the way.
*/
package main
