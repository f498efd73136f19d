package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/sandbox-sdk-go/internal/config"
	"github.com/wagiedev/sandbox-sdk-go/internal/exec"
)

// ExecToolName is the name under which the execution tool is registered.
const ExecToolName = "sandbox_exec"

// Instructions is sent to MCP clients on initialization.
const Instructions = `Runs shell commands inside a remote sandbox.

Use sandbox_exec to execute a command. Output is collected while the command
runs; dropped connections are resumed without losing or repeating output.`

// RunFunc runs a command to completion and returns its result.
type RunFunc func(ctx context.Context, opts *config.RunOptions) (*exec.ExecutionResult, error)

// ExecTool returns the sandbox_exec tool and its handler.
func ExecTool(log *slog.Logger, run RunFunc) (*mcp.Tool, mcp.ToolHandler) {
	log = log.With("component", "mcp_exec_tool")

	schema := SimpleSchema(map[string]string{
		"command":         "string",
		"timeout_seconds": "int",
		"cwd":             "string",
	}, "timeout_seconds", "cwd")

	schema.Properties["command"].Description = "Shell command line to run."
	schema.Properties["timeout_seconds"].Description = "Server-side time limit in seconds. Defaults to 60."
	schema.Properties["cwd"].Description = "Working directory. Defaults to the sandbox's default."

	tool := NewTool(ExecToolName, "Run a shell command in the sandbox and return its output and exit code.", schema)

	handler := func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		opts, msg := runOptionsFromRequest(req)
		if msg != "" {
			return ErrorResult(msg), nil
		}

		log.Debug("Running command", "command", opts.Command, "timeout", opts.Timeout)

		result, err := run(ctx, opts)
		if err != nil {
			log.Debug("Command failed", "error", err)

			return ErrorResult("execution failed: " + err.Error()), nil
		}

		res := TextResult(FormatResult(result))
		res.StructuredContent = map[string]any{
			"stdout":    result.Stdout,
			"stderr":    result.Stderr,
			"exit_code": result.ExitCode,
		}

		return res, nil
	}

	return tool, handler
}

// runOptionsFromRequest validates tool arguments. A non-empty message
// describes invalid input.
func runOptionsFromRequest(req *mcp.CallToolRequest) (*config.RunOptions, string) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err.Error()
	}

	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, "command is required"
	}

	opts := config.NewRunOptions(command)

	if raw, ok := args["timeout_seconds"]; ok && raw != nil {
		seconds, ok := raw.(float64)
		if !ok || seconds <= 0 {
			return nil, "timeout_seconds must be a positive number"
		}

		opts.Timeout = time.Duration(seconds * float64(time.Second))
	}

	if cwd, ok := args["cwd"].(string); ok {
		opts.Cwd = cwd
	}

	return opts, ""
}

// FormatResult renders a result as text: stdout, then stderr under a
// marker line, then the exit code.
func FormatResult(r *exec.ExecutionResult) string {
	var b strings.Builder

	b.WriteString(r.Stdout)

	if r.Stderr != "" {
		if b.Len() > 0 && !strings.HasSuffix(r.Stdout, "\n") {
			b.WriteByte('\n')
		}

		b.WriteString("[stderr]\n")
		b.WriteString(r.Stderr)
	}

	if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "[exit code: %d]", r.ExitCode)

	return b.String()
}

// NewServer builds an MCP server exposing sandbox_exec.
func NewServer(log *slog.Logger, name, version string, run RunFunc) *mcp.Server {
	s := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	tool, handler := ExecTool(log, run)
	s.AddTool(tool, handler)

	return s
}
