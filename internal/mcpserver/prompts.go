package mcpserver

import (
	"bytes"
	"context"
	"embed"
	"path"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*.md
var promptFiles embed.FS

// promptArgument is a placeholder a prompt body refers to as {{name}}.
type promptArgument struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// promptDoc is one embedded prompt: a YAML header followed by the body.
type promptDoc struct {
	Description string           `yaml:"description"`
	Arguments   []promptArgument `yaml:"arguments"`
	Body        string           `yaml:"-"`
}

// parsePrompt splits content into its header and body. Content without a
// valid header is returned whole as the body.
func parsePrompt(content []byte) promptDoc {
	whole := promptDoc{Body: string(content)}
	rest, ok := bytes.CutPrefix(content, []byte("---\n"))
	if !ok {
		return whole
	}
	header, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		return whole
	}
	var doc promptDoc
	if err := yaml.Unmarshal(header, &doc); err != nil {
		return whole
	}
	doc.Body = strings.TrimPrefix(string(body), "\n")
	return doc
}

// render substitutes {{name}} placeholders, falling back to defaults.
func (d promptDoc) render(args map[string]string) string {
	var pairs []string
	for _, a := range d.Arguments {
		v := args[a.Name]
		if v == "" {
			v = a.Default
		}
		pairs = append(pairs, "{{"+a.Name+"}}", v)
	}
	if len(pairs) == 0 {
		return d.Body
	}
	return strings.NewReplacer(pairs...).Replace(d.Body)
}

// registerPrompts registers one prompt per embedded markdown file, named
// after the file.
func (s *Server) registerPrompts() {
	entries, err := promptFiles.ReadDir("prompts")
	if err != nil {
		s.logger.Warn("failed to read embedded prompts", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		content, err := promptFiles.ReadFile(path.Join("prompts", entry.Name()))
		if err != nil {
			s.logger.Warn("failed to read prompt", "name", name, "error", err)
			continue
		}

		doc := parsePrompt(content)
		prompt := &mcp.Prompt{Name: name, Description: doc.Description}
		for _, a := range doc.Arguments {
			prompt.Arguments = append(prompt.Arguments, &mcp.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		s.server.AddPrompt(prompt, promptHandler(doc))
	}
}

func promptHandler(doc promptDoc) mcp.PromptHandler {
	return func(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		return &mcp.GetPromptResult{
			Description: doc.Description,
			Messages: []*mcp.PromptMessage{{
				Role:    "user",
				Content: &mcp.TextContent{Text: doc.render(args)},
			}},
		}, nil
	}
}
