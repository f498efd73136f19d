package sandboxsdk

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	internalmcp "github.com/wagiedev/sandbox-sdk-go/internal/mcp"
)

// Version is the SDK version reported to MCP clients.
const Version = "0.1.0"

// NewMCPServer returns an MCP server exposing a sandbox_exec tool that runs
// commands in sandbox. Serve it on any MCP transport:
//
//	server := sandboxsdk.NewMCPServer(sb)
//	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
//	    log.Fatal(err)
//	}
func NewMCPServer(sandbox *Sandbox) *mcp.Server {
	return internalmcp.NewServer(sandbox.log, "sandbox-"+sandbox.Name(), Version, sandbox.run)
}

// ExecTool returns the sandbox_exec tool and handler, for registration on an
// existing server with AddTool.
func ExecTool(sandbox *Sandbox) (*mcp.Tool, mcp.ToolHandler) {
	return internalmcp.ExecTool(sandbox.log, sandbox.run)
}
