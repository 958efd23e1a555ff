//go:build tools
// +build tools

// Package tools documents development tool dependencies.
// These tools are run via `go run pkg@version` and are not tracked in go.mod
// since they are development tools, not runtime dependencies.
package tools

// Development tools:
//
// mockgen - Generates the gomock doubles in internal/mocks
//   Run: go generate ./internal/mocks
//   Version: go.uber.org/mock/mockgen@v0.6.0 (matches the go.uber.org/mock test dependency)
//   Docs: https://github.com/uber-go/mock
