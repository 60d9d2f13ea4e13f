//go:build integration

// Package integration provides end-to-end tests for safearchive.
//
// These tests build archives from a YAML config, serve them on a real TCP
// listener and exercise them with a plain HTTP client, including large trees
// and concurrent tampering.
// Run with: go test -tags=integration ./integration/...
package integration
