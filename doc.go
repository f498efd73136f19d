// Package sandboxsdk provides a Go SDK for running commands in remote sandboxes.
//
// Commands execute on a sandbox's dataplane over a persistent WebSocket.
// Output is streamed to the caller as it is produced, stdin and kill requests
// can be sent while the command runs, and dropped connections are resumed
// transparently from the last received byte of each stream, so no output is
// lost or repeated.
//
// # Basic Usage
//
// Resolve a sandbox and run a command to completion:
//
//	client := sandboxsdk.NewClient(sandboxsdk.WithAPIKey(key))
//
//	sb, err := client.GetSandbox(ctx, "my-sandbox")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := sb.Run(ctx, "ls -la", sandboxsdk.WithCwd("/app"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Print(result.Stdout)
//
// # Streaming
//
// RunStreaming returns a CommandHandle as soon as the server has accepted the
// command:
//
//	handle, err := sb.RunStreaming(ctx, "npm test", sandboxsdk.WithTimeout(10*time.Minute))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for chunk, err := range handle.Output(ctx) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if chunk.Stream == sandboxsdk.StreamStderr {
//	        fmt.Fprint(os.Stderr, chunk.Data)
//	    } else {
//	        fmt.Print(chunk.Data)
//	    }
//	}
//
//	result, err := handle.Wait(ctx)
//
// Kill and SendInput may be called from any goroutine while output is being
// consumed. InputSender returns a value carrying only those capabilities.
//
// # Reconnection
//
// A lost connection is retried up to 5 consecutive times with exponential
// backoff (500ms doubling to 8s); any output resets the count. A server
// reload reconnects immediately. Use WithReconnectPolicy to change the limits.
// After a kill, a lost connection is final.
//
// # Error Handling
//
// Errors are typed and can be inspected with errors.As:
//
//	var timeoutErr *sandboxsdk.CommandTimeoutError
//	if errors.As(err, &timeoutErr) {
//	    // the command exceeded its server-side timeout
//	}
//
// Kill and SendInput on a finished command return an error matching
// ErrCommandExited.
//
// # MCP
//
// NewMCPServer exposes a sandbox to MCP clients through a sandbox_exec tool.
//
// # Logging
//
// Pass an *slog.Logger with WithLogger to receive debug output. By default the
// SDK is silent.
package sandboxsdk
