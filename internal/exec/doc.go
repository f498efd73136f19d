// Package exec runs a single streaming command against a sandbox dataplane.
//
// Start dials the dataplane, submits the command and waits for the server to
// acknowledge it. From then on a supervisor goroutine owns the transport: it
// forwards output to the Handle, relays kill and stdin requests, and when the
// connection drops it dials again and resumes from the last confirmed byte
// offset of each stream. Output already delivered is never delivered twice.
//
// The supervisor tolerates a bounded number of consecutive connection losses
// with exponential backoff; any output resets the count. A server reload
// (close code 1001) reconnects immediately.
package exec
