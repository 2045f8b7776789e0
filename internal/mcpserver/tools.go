package mcpserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/dedoop/internal/output"
	"github.com/panbanda/dedoop/pkg/analyzer/duplicates"
)

// FindDuplicatesInput holds the find_duplicates tool arguments. Zero values
// fall back to the server's configuration.
type FindDuplicatesInput struct {
	Paths         []string `json:"paths,omitempty" jsonschema:"Directories to scan. Defaults to the configured roots, or the current directory."`
	Format        string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
	Extension     string   `json:"extension,omitempty" jsonschema:"File extension to scan, e.g. py or go."`
	MinLines      int      `json:"min_lines,omitempty" jsonschema:"Shortest duplicated run to report."`
	CommentPrefix string   `json:"comment_prefix,omitempty" jsonschema:"Line-comment marker. Detected from the extension when empty."`
	Encoding      string   `json:"encoding,omitempty" jsonschema:"Text encoding of the files, e.g. utf-8 or latin1."`
	Top           int      `json:"top,omitempty" jsonschema:"Return only the N largest groups. Default 20."`
	IncludeText   bool     `json:"include_text,omitempty" jsonschema:"Include the duplicated text in each group."`
}

const defaultToolTop = 20

func (s *Server) paths(input FindDuplicatesInput) []string {
	if len(input.Paths) > 0 {
		return input.Paths
	}
	if len(s.config.Scan.Roots) > 0 {
		return s.config.Scan.Roots
	}
	return []string{"."}
}

func getFormat(format string) output.Format {
	switch f := output.ParseFormat(format); f {
	case output.FormatJSON, output.FormatYAML, output.FormatMarkdown:
		return f
	default:
		return output.FormatTOON
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := output.Marshal(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleFindDuplicates(ctx context.Context, req *mcp.CallToolRequest, input FindDuplicatesInput) (*mcp.CallToolResult, any, error) {
	scan := s.config.Scan
	if input.Extension != "" {
		scan.Extension = input.Extension
		// The configured prefix belongs to the configured extension.
		scan.CommentPrefix = ""
	}
	if input.MinLines > 0 {
		scan.MinLines = input.MinLines
	}
	if input.CommentPrefix != "" {
		scan.CommentPrefix = input.CommentPrefix
	}
	if input.Encoding != "" {
		scan.Encoding = input.Encoding
	}
	top := input.Top
	if top <= 0 {
		top = defaultToolTop
	}

	analyzer := duplicates.New(
		duplicates.WithConfig(scan),
		duplicates.WithExcludes(s.config.Exclude),
	)
	analysis, err := analyzer.Analyze(ctx, s.paths(input))
	if err != nil {
		if errors.Is(err, duplicates.ErrInvalidConfig) || errors.Is(err, duplicates.ErrNoFolders) {
			return toolError(err.Error())
		}
		return nil, nil, err
	}
	if analysis.Summary.FilesScanned == 0 {
		return toolError("no ." + analysis.Settings.Extension + " files found")
	}

	view := output.NewDuplicatesView(analysis, top, input.IncludeText)
	return toolResult(view.RenderData(), getFormat(input.Format))
}
