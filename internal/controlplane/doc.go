// Package controlplane is a minimal client for the sandbox control plane.
//
// It resolves a sandbox name to the dataplane URL that streaming execution
// connects to, and maps HTTP failures onto the SDK's error types.
package controlplane
