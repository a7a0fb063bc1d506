// Command mcp-test-server runs a small MCP tool server over stdio,
// suitable as a tool_servers entry for manual testing. It provides
// "echo", "get_time", and "read_file" tools.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "famulus-test-mcp", Version: "v1.0.0"},
		nil,
	)

	type EchoInput struct {
		Message string `json:"message" jsonschema_description:"The message to echo back"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echoes the provided message back",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input EchoInput) (*mcp.CallToolResult, struct{}, error) {
		return textResult(fmt.Sprintf("Echo: %s", input.Message)), struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_time",
		Description: "Returns the current UTC time",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		return textResult(time.Now().UTC().Format(time.RFC3339)), struct{}{}, nil
	})

	type ReadFileInput struct {
		Path string `json:"path" jsonschema_description:"Path of the file to read"`
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "read_file",
		Description: "Reads a file from the local filesystem",
	}, func(_ context.Context, _ *mcp.CallToolRequest, input ReadFileInput) (*mcp.CallToolResult, struct{}, error) {
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return nil, struct{}{}, err
		}
		return textResult(string(data)), struct{}{}, nil
	})

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
