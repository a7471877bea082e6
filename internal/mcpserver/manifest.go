package mcpserver

import (
	"encoding/json"
)

// ManifestSchema is the server.json schema the manifest conforms to.
const ManifestSchema = "https://static.modelcontextprotocol.io/schemas/2025-10-17/server.schema.json"

// Manifest is the MCP registry description of this server (server.json).
type Manifest struct {
	Schema      string      `json:"$schema"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Version     string      `json:"version"`
	Repository  *Repository `json:"repository,omitempty"`
	Packages    []Package   `json:"packages,omitempty"`
}

// Repository points at the source code.
type Repository struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// Package is one way to install and launch the server.
type Package struct {
	RegistryType     string     `json:"registryType"`
	Identifier       string     `json:"identifier"`
	Version          string     `json:"version,omitempty"`
	PackageArguments []Argument `json:"packageArguments,omitempty"`
	Transport        Transport  `json:"transport"`
}

// Argument is a command-line argument passed at launch.
type Argument struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Transport names how clients talk to the server.
type Transport struct {
	Type string `json:"type"`
}

// GenerateManifest renders server.json for version.
func GenerateManifest(version string) ([]byte, error) {
	if version == "" {
		version = "0.0.0"
	}
	launch := []Argument{{Type: "positional", Value: "mcp"}}
	stdio := Transport{Type: "stdio"}

	m := Manifest{
		Schema:      ManifestSchema,
		Name:        "io.github.panbanda/debtmap",
		Description: "Technical debt map of a workspace: markers, complex functions, vulnerable dependencies and stale files, with git blame ages",
		Version:     version,
		Repository: &Repository{
			URL:    "https://github.com/panbanda/debtmap",
			Source: "github",
		},
		Packages: []Package{
			{
				RegistryType:     "oci",
				Identifier:       "ghcr.io/panbanda/debtmap:" + version,
				PackageArguments: launch,
				Transport:        stdio,
			},
			{
				RegistryType:     "npm",
				Identifier:       "@panbanda/debtmap",
				Version:          version,
				PackageArguments: launch,
				Transport:        stdio,
			},
		},
	}
	return json.MarshalIndent(m, "", "  ")
}
