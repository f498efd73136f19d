// Package mcp exposes streaming execution as a Model Context Protocol tool.
//
// The sandbox_exec tool runs a shell command in a sandbox and returns its
// combined output and exit code. NewServer builds a standalone MCP server
// around the tool; ExecTool returns the tool and handler for registration on
// an existing server.
package mcp
