// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

// nexusd is the Nexus platform gateway daemon. It serves the model
// cost optimizer API, the chat endpoint with provider routing, and
// session management.
package main

import "nexus/platform/gateway"

func main() {
	gateway.Run()
}
