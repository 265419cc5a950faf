package tools

import (
	"fmt"

	"github.com/GlacierEQ/hyperdoc-ai-powerhouse/core"
)

// Built-in MCP servers.
const (
	ServerNotion   = "notion"
	ServerGitHub   = "github"
	ServerEvidence = "evidence"
)

// BuiltinServers lists the servers with a built-in tool catalogue, in
// registration order.
var BuiltinServers = []string{ServerNotion, ServerGitHub, ServerEvidence}

// NotionDefinitions returns the Notion workspace tools.
func NotionDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			Server:          ServerNotion,
			ToolName:        "notion-search",
			ToolDescription: "Search the Notion workspace for pages and database entries.",
			InputSchema: WithThought(Object(Schema{
				"query": String("Text to search for"),
				"limit": Integer("Maximum number of results"),
			}, "query"), false),
		},
		{
			Server:          ServerNotion,
			ToolName:        "notion-create",
			ToolDescription: "Create a Notion page or database entry.",
			InputSchema: WithThought(Object(Schema{
				"title":   String("Page title"),
				"content": String("Page body in markdown"),
				"parent":  String("Parent page or database id"),
			}, "title"), true),
		},
	}
}

// GitHubDefinitions returns the GitHub repository tools.
func GitHubDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			Server:          ServerGitHub,
			ToolName:        "github-create-repo",
			ToolDescription: "Create a GitHub repository.",
			InputSchema: WithThought(Object(Schema{
				"name":        String("Repository name"),
				"description": String("Short description"),
				"private":     Boolean("Create the repository as private"),
			}, "name"), true),
		},
		{
			Server:          ServerGitHub,
			ToolName:        "github-create-issue",
			ToolDescription: "Open an issue on a GitHub repository.",
			InputSchema: WithThought(Object(Schema{
				"repo":  String("Repository in owner/name form"),
				"title": String("Issue title"),
				"body":  String("Issue body in markdown"),
			}, "repo", "title"), true),
		},
	}
}

// EvidenceDefinitions returns the evidence processing tools.
func EvidenceDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			Server:          ServerEvidence,
			ToolName:        "process-pdf",
			ToolDescription: "Extract text, structure and metadata from a PDF.",
			InputSchema: WithThought(Object(Schema{
				"file":    String("Path or URL of the PDF"),
				"options": Map("Processing options"),
			}, "file"), false),
		},
		{
			Server:          ServerEvidence,
			ToolName:        "transcribe-audio",
			ToolDescription: "Transcribe an audio recording.",
			InputSchema: WithThought(Object(Schema{
				"audio":  String("Path or URL of the recording"),
				"format": Enum("Transcript format", "text", "srt", "json"),
			}, "audio"), false),
		},
	}
}

// Definitions returns the built-in catalogue of server.
func Definitions(server string) ([]core.ToolDefinition, error) {
	switch server {
	case ServerNotion:
		return NotionDefinitions(), nil
	case ServerGitHub:
		return GitHubDefinitions(), nil
	case ServerEvidence:
		return EvidenceDefinitions(), nil
	default:
		return nil, fmt.Errorf("no built-in tools for server %q", server)
	}
}

// Tools binds definitions to executor.
func Tools(executor core.ToolExecutor, defs ...core.ToolDefinition) []core.Tool {
	out := make([]core.Tool, len(defs))
	for i, def := range defs {
		out[i] = core.NewExecutorTool(def, executor)
	}
	return out
}
