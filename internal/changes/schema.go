package changes

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidExport is returned for exports that do not match the export schema.
var ErrInvalidExport = errors.New("changes: invalid pull request export")

const exportSchemaURL = "mem://schemas/pr_export.schema.json"

//go:embed pr_export.schema.json
var exportSchemaJSON []byte

var (
	exportSchemaOnce sync.Once
	exportSchema     *jsonschema.Schema
	exportSchemaErr  error
)

func compileExportSchema() (*jsonschema.Schema, error) {
	exportSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(exportSchemaJSON))
		if err != nil {
			exportSchemaErr = fmt.Errorf("decode export schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(exportSchemaURL, doc); err != nil {
			exportSchemaErr = fmt.Errorf("register export schema: %w", err)
			return
		}
		exportSchema, exportSchemaErr = c.Compile(exportSchemaURL)
	})
	return exportSchema, exportSchemaErr
}

// validateExport checks the raw export document before it is decoded.
func validateExport(data []byte) error {
	schema, err := compileExportSchema()
	if err != nil {
		return err
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	return nil
}
