// Package graph builds the file-level import graph of a workspace.
package graph

import (
	"context"
	"log/slog"
	"regexp"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/panbanda/debtmap/internal/fileproc"
	"github.com/panbanda/debtmap/internal/logging"
	"github.com/panbanda/debtmap/pkg/source"
)

// importPattern matches the string literal target of static imports,
// re-exports, side-effect imports, dynamic imports and require calls.
var importPattern = regexp.MustCompile(
	`(?:\b(?:import|export)\s[^'";]*?\bfrom\s*['"]([^'"\n]+)['"])` +
		`|(?:\bimport\s*['"]([^'"\n]+)['"])` +
		`|(?:\b(?:import|require)\s*\(\s*['"]([^'"\n]+)['"]\s*\))`,
)

// ExtractImports returns every import target in content, in order of
// appearance, including non-relative ones.
func ExtractImports(content []byte) []string {
	var targets []string
	for _, m := range importPattern.FindAllSubmatch(content, -1) {
		for _, group := range m[1:] {
			if len(group) > 0 {
				targets = append(targets, string(group))
				break
			}
		}
	}
	return targets
}

// Builder extracts imports from script files.
type Builder struct {
	src        source.ContentSource
	logger     *slog.Logger
	maxWorkers int
}

// Option is a functional option for configuring Builder.
type Option func(*Builder)

// WithSource sets the content source used to read files.
func WithSource(src source.ContentSource) Option {
	return func(b *Builder) {
		if src != nil {
			b.src = src
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logging.OrDiscard(l)
	}
}

// WithMaxWorkers bounds the number of files read concurrently.
func WithMaxWorkers(n int) Option {
	return func(b *Builder) {
		b.maxWorkers = n
	}
}

// NewBuilder creates an import graph builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		src:    source.NewFilesystem(),
		logger: logging.NewDiscardLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads every script file and records its relative imports.
// Unreadable files contribute no edges.
func (b *Builder) Build(ctx context.Context, files []source.File) *ImportGraph {
	scripts := make([]source.File, 0, len(files))
	for _, f := range files {
		if IsScript(f.Path) {
			scripts = append(scripts, f)
		}
	}

	targets, errs := fileproc.ForEachFile(ctx, scripts, func(_ context.Context, f source.File) ([]string, error) {
		content, err := source.ReadText(b.src, f)
		if err != nil {
			return nil, err
		}
		return ExtractImports(content), nil
	}, fileproc.Options{MaxWorkers: b.maxWorkers})
	if errs.HasErrors() {
		b.logger.Debug("import extraction skipped files", "count", len(errs.Errors))
	}

	g := NewImportGraph()
	for i, f := range scripts {
		for _, t := range targets[i] {
			if to, ok := Resolve(f.Path, t); ok {
				g.AddEdge(f.Path, to)
			}
		}
	}
	return g
}

// ImportGraph is a directed graph from importing file to imported file.
// It is not safe for concurrent mutation.
type ImportGraph struct {
	g   *simple.DirectedGraph
	ids map[string]int64
	// paths holds node paths by id in insertion order.
	paths []string
}

// NewImportGraph creates an empty graph.
func NewImportGraph() *ImportGraph {
	return &ImportGraph{
		g:   simple.NewDirectedGraph(),
		ids: make(map[string]int64),
	}
}

func (ig *ImportGraph) node(p string) int64 {
	if id, ok := ig.ids[p]; ok {
		return id
	}
	id := int64(len(ig.paths))
	ig.ids[p] = id
	ig.paths = append(ig.paths, p)
	ig.g.AddNode(simple.Node(id))
	return id
}

// AddEdge records that from imports to. Self-imports are ignored and
// repeated imports collapse into one edge.
func (ig *ImportGraph) AddEdge(from, to string) {
	if from == to {
		return
	}
	f, t := ig.node(from), ig.node(to)
	if ig.g.HasEdgeFromTo(f, t) {
		return
	}
	ig.g.SetEdge(simple.Edge{F: simple.Node(f), T: simple.Node(t)})
}

// FanIn returns the number of distinct files importing p.
func (ig *ImportGraph) FanIn(p string) int {
	if ig == nil {
		return 0
	}
	id, ok := ig.ids[p]
	if !ok {
		return 0
	}
	return ig.g.To(id).Len()
}

// Importers returns the sorted paths of files importing p.
func (ig *ImportGraph) Importers(p string) []string {
	if ig == nil {
		return nil
	}
	id, ok := ig.ids[p]
	if !ok {
		return nil
	}
	var out []string
	it := ig.g.To(id)
	for it.Next() {
		out = append(out, ig.paths[it.Node().ID()])
	}
	sort.Strings(out)
	return out
}

// Len returns the number of files in the graph, imported targets included.
func (ig *ImportGraph) Len() int {
	if ig == nil {
		return 0
	}
	return len(ig.paths)
}

// Edges returns all edges sorted by importer then target.
func (ig *ImportGraph) Edges() []Edge {
	if ig == nil {
		return nil
	}
	var out []Edge
	it := ig.g.Edges()
	for it.Next() {
		e := it.Edge()
		out = append(out, Edge{From: ig.paths[e.From().ID()], To: ig.paths[e.To().ID()]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Cycles returns the import cycles of the graph as sorted path lists.
func (ig *ImportGraph) Cycles() [][]string {
	if ig == nil {
		return nil
	}
	var cycles [][]string
	for _, scc := range topo.TarjanSCC(ig.g) {
		if len(scc) < 2 {
			continue
		}
		members := make([]string, len(scc))
		for i, n := range scc {
			members[i] = ig.paths[n.ID()]
		}
		sort.Strings(members)
		cycles = append(cycles, members)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}
