//go:build tools

// Package tools lists the development binaries this module expects on PATH.
// They are installed with `go install` and are not tracked in go.mod.
package tools

// mockgen regenerates internal/mocks from the ports in internal/core:
//
//	go install go.uber.org/mock/mockgen@v0.6.0
//	go generate ./internal/mocks/...
