package sandboxsdk

import "github.com/wagiedev/sandbox-sdk-go/internal/config"

// Transport is one live streaming connection to a sandbox dataplane.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementation speaks WebSocket to /execute/ws.
// Custom transports are injected with WithDialer.
type Transport = config.Transport

// Dialer opens transports to a dataplane.
type Dialer = config.Dialer

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc = config.DialerFunc
