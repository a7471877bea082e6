// Package report reads, writes, validates and compares saved DebtMap files.
package report

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/panbanda/debtmap/pkg/models"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "debtmap.schema.json"

// ErrInvalidReport is wrapped by every schema or decoding failure.
var ErrInvalidReport = errors.New("invalid debt report")

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Schema returns the embedded JSON schema document.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// Validate checks data against the report schema.
func Validate(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile report schema: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return nil
}

// Decode reads and validates one report from r.
func Decode(r io.Reader) (*models.DebtMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse validates and decodes a report.
func Parse(data []byte) (*models.DebtMap, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	var dm models.DebtMap
	if err := json.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return &dm, nil
}

// Read loads a report file.
func Read(path string) (*models.DebtMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dm, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dm, nil
}

// Marshal encodes dm as indented JSON.
func Marshal(dm *models.DebtMap) ([]byte, error) {
	return json.MarshalIndent(dm, "", "  ")
}

// Write saves dm to path atomically, creating parent directories.
func Write(path string, dm *models.DebtMap) error {
	data, err := Marshal(dm)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".debtmap-report-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
