package sandboxsdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	"github.com/wagiedev/sandbox-sdk-go/internal/controlplane"
	"github.com/wagiedev/sandbox-sdk-go/internal/wsconn"
)

const (
	// EnvEndpoint overrides the default control-plane endpoint.
	EnvEndpoint = "SANDBOX_ENDPOINT"

	// EnvAPIKey supplies the API key when WithAPIKey is not used.
	EnvAPIKey = "SANDBOX_API_KEY"

	// DefaultEndpoint is the control-plane endpoint used when none is configured.
	DefaultEndpoint = config.DefaultEndpoint
)

// Client resolves sandboxes and runs commands in them.
//
// A Client is safe for concurrent use. It holds no connections itself: each
// streaming execution owns its own WebSocket.
//
// Example usage:
//
//	client := sandboxsdk.NewClient(sandboxsdk.WithLogger(slog.Default()))
//
//	sb, err := client.GetSandbox(ctx, "my-sandbox")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	handle, err := sb.RunStreaming(ctx, "make test")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for chunk, err := range handle.Output(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Print(chunk.Data)
//	}
type Client struct {
	log          *slog.Logger
	options      *Options
	controlPlane *controlplane.Client
}

// NewClient creates a client.
//
// Unset endpoint and API key fall back to the SANDBOX_ENDPOINT and
// SANDBOX_API_KEY environment variables.
func NewClient(opts ...Option) *Client {
	options := applyOptions(opts)

	if options.Endpoint == "" {
		options.Endpoint = os.Getenv(EnvEndpoint)
	}

	if options.APIKey == "" {
		options.APIKey = os.Getenv(EnvAPIKey)
	}

	options = options.WithDefaults()

	if options.Dialer == nil {
		options.Dialer = webSocketDialer(options)
	}

	log := options.Logger.With("component", "client")

	return &Client{
		log:     log,
		options: options,
		controlPlane: controlplane.New(
			options.Logger,
			options.HTTPClient,
			options.Endpoint,
			options.APIKey,
			options.UserAgent,
		),
	}
}

// GetSandbox looks up a sandbox by name on the control plane.
//
// Returns AuthError if the API key is rejected and NotFoundError if the
// sandbox does not exist.
func (c *Client) GetSandbox(ctx context.Context, name string) (*Sandbox, error) {
	info, err := c.controlPlane.GetSandbox(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get sandbox %q: %w", name, err)
	}

	c.log.Debug("Resolved sandbox", "name", info.Name, "template", info.TemplateName)

	return newSandbox(c, *info, c.options.APIKey), nil
}

// SandboxFromDataplane returns a sandbox for a known dataplane URL and auth
// token, without consulting the control plane. Use it for relay sessions
// whose dataplane and token were issued elsewhere.
func (c *Client) SandboxFromDataplane(name, dataplaneURL, authToken string) *Sandbox {
	info := SandboxInfo{
		Name:         name,
		TemplateName: "relay",
		DataplaneURL: strings.TrimRight(dataplaneURL, "/"),
	}

	return newSandbox(c, info, authToken)
}

// webSocketDialer returns the default Dialer, which opens WebSocket
// transports configured from options.
func webSocketDialer(options *Options) Dialer {
	dialOpts := wsconn.DialOptions{
		HandshakeTimeout: options.HandshakeTimeout,
		UserAgent:        options.UserAgent,
	}

	return DialerFunc(func(ctx context.Context, baseURL, authToken string) (Transport, error) {
		conn, err := wsconn.Dial(ctx, options.Logger, baseURL, authToken, dialOpts)
		if err != nil {
			return nil, err
		}

		return conn, nil
	})
}
