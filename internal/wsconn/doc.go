// Package wsconn implements the WebSocket transport for streaming execution.
//
// A Conn owns exactly one WebSocket connection to a sandbox dataplane's
// /execute/ws endpoint. It encodes outbound control frames, decodes inbound
// event frames, and classifies how the connection ended: a graceful close is
// io.EOF, a "going away" close is a server reload, and anything else is a
// connection error the caller may retry.
package wsconn
