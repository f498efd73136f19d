// Package errors defines error types for the sandbox SDK.
//
// This package provides structured error types for the failure scenarios of a
// streaming execution: transport loss, server reloads, semantic failures
// reported by the server, and control-plane HTTP failures. All error types
// support error unwrapping and can be checked using errors.Is, errors.As, and
// errors.AsType.
package errors
