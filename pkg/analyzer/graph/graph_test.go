package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/debtmap/internal/testutil"
	"github.com/panbanda/debtmap/pkg/source"
)

func TestExtractImports(t *testing.T) {
	content := `import React from 'react';
import { a, b } from "./ab";
import type { T } from './types';
import {
  multi,
  line,
} from '../shared/multi';
import './side-effect.css';
export { x } from './reexport';
export * from "./all";
const lazy = await import('./lazy');
const legacy = require("../legacy");
const notAnImport = Array.from(items);
`
	want := []string{
		"react",
		"./ab",
		"./types",
		"../shared/multi",
		"./side-effect.css",
		"./reexport",
		"./all",
		"./lazy",
		"../legacy",
	}
	assert.Equal(t, want, ExtractImports([]byte(content)))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		importer string
		target   string
		want     string
		ok       bool
	}{
		{"src/a.ts", "./b", "src/b.ts", true},
		{"src/a.ts", "./b.js", "src/b.js", true},
		{"src/a.ts", "../lib/c", "lib/c.ts", true},
		{"src/deep/a.ts", "./../b", "src/b.ts", true},
		{"src/a.ts", "./x.service", "src/x.service", true},
		{"src/a.ts", "./dir/", "src/dir.ts", true},
		{"a.ts", "./b", "b.ts", true},
		{"a.ts", "../outside", "", false},
		{"src/a.ts", "../../outside", "", false},
		{"src/a.ts", "react", "", false},
		{"src/a.ts", "@scope/pkg", "", false},
		{"src/a.ts", "/abs/path", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.importer+" "+tt.target, func(t *testing.T) {
			got, ok := Resolve(tt.importer, tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsScript(t *testing.T) {
	for _, p := range []string{"a.ts", "a.tsx", "a.js", "a.JSX", "a.mjs", "c.vue"} {
		assert.True(t, IsScript(p), p)
	}
	for _, p := range []string{"a.go", "a.py", "README.md", "Makefile"} {
		assert.False(t, IsScript(p), p)
	}
}

func TestImportGraphFanIn(t *testing.T) {
	g := NewImportGraph()
	g.AddEdge("a.ts", "util.ts")
	g.AddEdge("a.ts", "util.ts")
	g.AddEdge("b.ts", "util.ts")
	g.AddEdge("c.ts", "util.ts")
	g.AddEdge("util.ts", "util.ts")
	g.AddEdge("c.ts", "a.ts")

	assert.Equal(t, 3, g.FanIn("util.ts"))
	assert.Equal(t, 1, g.FanIn("a.ts"))
	assert.Equal(t, 0, g.FanIn("c.ts"))
	assert.Equal(t, 0, g.FanIn("missing.ts"))
	assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, g.Importers("util.ts"))
	assert.Nil(t, g.Importers("missing.ts"))
	assert.Equal(t, 4, g.Len())
	assert.Len(t, g.Edges(), 4)
}

func TestNilImportGraph(t *testing.T) {
	var g *ImportGraph
	assert.Zero(t, g.FanIn("a.ts"))
	assert.Nil(t, g.Importers("a.ts"))
	assert.Zero(t, g.Len())
	assert.Nil(t, g.Edges())
	assert.Nil(t, g.Cycles())
}

func TestCycles(t *testing.T) {
	g := NewImportGraph()
	g.AddEdge("a.ts", "b.ts")
	g.AddEdge("b.ts", "c.ts")
	g.AddEdge("c.ts", "a.ts")
	g.AddEdge("d.ts", "a.ts")

	assert.Equal(t, [][]string{{"a.ts", "b.ts", "c.ts"}}, g.Cycles())
}

func TestBuild(t *testing.T) {
	root := t.TempDir()
	testutil.CreateFileTree(t, root, map[string]string{
		"src/util.ts":     "export const u = 1;\n",
		"src/a.ts":        "import { u } from './util';\nimport { u as v } from './util';\n",
		"src/b.tsx":       "import { u } from \"./util\";\nimport React from 'react';\n",
		"src/nested/c.js": "const u = require('../util');\n",
		"src/self.ts":     "import './self';\n",
		"src/outside.ts":  "import x from '../../elsewhere';\n",
		"src/go/main.go":  "import \"./util\"\n",
		"src/service.ts":  "import { s } from './x.service';\n",
	})
	paths := []string{
		"src/a.ts", "src/b.tsx", "src/go/main.go", "src/nested/c.js",
		"src/outside.ts", "src/self.ts", "src/service.ts", "src/util.ts",
	}
	files := make([]source.File, len(paths))
	for i, p := range paths {
		files[i] = source.NewFile(root, p)
	}

	g := NewBuilder().Build(context.Background(), files)

	assert.Equal(t, 3, g.FanIn("src/util.ts"))
	assert.Equal(t, []string{"src/a.ts", "src/b.tsx", "src/nested/c.js"}, g.Importers("src/util.ts"))
	assert.Equal(t, 0, g.FanIn("src/self.ts"))
	assert.Equal(t, 1, g.FanIn("src/x.service"))
	assert.Equal(t, []Edge{
		{From: "src/a.ts", To: "src/util.ts"},
		{From: "src/b.tsx", To: "src/util.ts"},
		{From: "src/nested/c.js", To: "src/util.ts"},
		{From: "src/service.ts", To: "src/x.service"},
	}, g.Edges())
}

func TestBuildSkipsUnreadable(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root+"/a.ts", "import './b';\n")
	files := []source.File{source.NewFile(root, "a.ts"), source.NewFile(root, "gone.ts")}

	g := NewBuilder(WithMaxWorkers(2)).Build(context.Background(), files)

	require.NotNil(t, g)
	assert.Equal(t, 1, g.FanIn("b.ts"))
}

func TestBuildEmpty(t *testing.T) {
	g := NewBuilder().Build(context.Background(), nil)
	require.NotNil(t, g)
	assert.Zero(t, g.Len())
}
