package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/debtmap/internal/output"
	"github.com/panbanda/debtmap/pkg/models"
)

// ScanInput is the input of scan_debt.
type ScanInput struct {
	Path        string   `json:"path,omitempty" jsonschema:"Workspace to scan. Defaults to the current directory."`
	Format      string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	MinSeverity string   `json:"min_severity,omitempty" jsonschema:"Only return items at or above this severity: low, medium, high, critical."`
	Kinds       []string `json:"kinds,omitempty" jsonschema:"Only return items of these kinds: todo, complexity, dep, stale."`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum number of items to return, most severe first. 0 returns all."`
}

// ClearCacheInput is the input of clear_blame_cache.
type ClearCacheInput struct {
	Path string `json:"path,omitempty" jsonschema:"Workspace whose cache should be removed, including its on-disk cache. Empty clears every workspace scanned so far."`
}

// scanResult is what scan_debt returns.
type scanResult struct {
	CommitSHA string            `json:"commitSha" toon:"commitSha"`
	ScannedAt time.Time         `json:"scannedAt" toon:"scannedAt"`
	Stats     models.Stats      `json:"stats" toon:"stats"`
	Items     []models.DebtItem `json:"items" toon:"items"`
	Omitted   int               `json:"omitted,omitempty" toon:"omitted,omitempty"`
}

func getPath(path string) string {
	if path == "" {
		return "."
	}
	return path
}

func getFormat(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func parseKinds(names []string) ([]models.Kind, error) {
	kinds := make([]models.Kind, 0, len(names))
	for _, name := range names {
		k := models.Kind(name)
		switch k {
		case models.KindTodo, models.KindComplexity, models.KindDep, models.KindStale:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown kind %q", name)
		}
	}
	return kinds, nil
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	default:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return textResult(text), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleScanDebt(ctx context.Context, req *mcp.CallToolRequest, input ScanInput) (*mcp.CallToolResult, any, error) {
	root := getPath(input.Path)
	format := getFormat(input.Format)

	var minSeverity models.Severity
	if input.MinSeverity != "" {
		sev, ok := models.ParseSeverity(input.MinSeverity)
		if !ok {
			return toolError(fmt.Sprintf("unknown severity %q", input.MinSeverity))
		}
		minSeverity = sev
	}
	kinds, err := parseKinds(input.Kinds)
	if err != nil {
		return toolError(err.Error())
	}

	cfg, err := s.loadConfig(root)
	if err != nil {
		return toolError(err.Error())
	}

	dm, err := s.engine.Scan(ctx, root, cfg, nil)
	if err != nil {
		return toolError(err.Error())
	}

	filtered := &models.DebtMap{
		Items:     models.FilterItems(dm.Items, minSeverity, kinds...),
		ScannedAt: dm.ScannedAt,
		CommitSHA: dm.CommitSHA,
		Stats:     dm.Stats,
	}

	if format == output.FormatMarkdown {
		var buf bytes.Buffer
		rep := output.NewDebtReport(filtered)
		rep.Limit = input.Limit
		if input.Limit <= 0 {
			rep.Limit = -1
		}
		if err := rep.RenderMarkdown(&buf); err != nil {
			return toolError(err.Error())
		}
		return textResult(buf.String()), nil, nil
	}

	result := scanResult{
		CommitSHA: filtered.CommitSHA,
		ScannedAt: filtered.ScannedAt,
		Stats:     filtered.Stats,
		Items:     filtered.Items,
	}
	if input.Limit > 0 && len(result.Items) > input.Limit {
		result.Items = output.MostSevere(result.Items, input.Limit)
		result.Omitted = len(filtered.Items) - input.Limit
	}
	return toolResult(result, format)
}

func (s *Server) handleClearBlameCache(ctx context.Context, req *mcp.CallToolRequest, input ClearCacheInput) (*mcp.CallToolResult, any, error) {
	if input.Path == "" {
		s.engine.ClearCache()
		s.logger.Info("blame cache cleared")
		return textResult("Cleared blame cache (all)"), nil, nil
	}

	cfg, err := s.loadConfig(input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	if err := s.engine.ClearWorkspaceCache(input.Path, cfg); err != nil {
		return toolError(err.Error())
	}
	s.logger.Info("blame cache cleared", "root", input.Path)
	return textResult("Cleared blame cache (" + input.Path + ")"), nil, nil
}
