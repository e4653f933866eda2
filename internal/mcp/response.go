package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createErrorResponse reports a tool failure inside the result so the client can see it.
// Protocol-level errors are reserved for transport problems.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	return createSmartErrorResponse(operation, err, nil)
}

// createSmartErrorResponse adds extra fields such as suggestions to an error response
func createSmartErrorResponse(operation string, err error, extra map[string]interface{}) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}
	for k, v := range extra {
		errorData[k] = v
	}
	if help := getOperationHelp(operation); help != "" {
		errorData["help"] = help
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}

func getOperationHelp(operation string) string {
	switch operation {
	case "library_roots":
		return `Use: {"provider": "python"} or {"name": "Gen files"}. list_libraries shows both.`
	case "contains_file":
		return `Use: {"path": "bazel-out/gen/a.py"}. Relative paths are resolved against the project root.`
	case "sync":
		return `Use: {"mode": "full"}, {"mode": "incremental"} or {"mode": "no_build"}.`
	}
	return ""
}
