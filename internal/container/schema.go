package container

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// schemaFiles maps a declared container schema version to its embedded
// JSON Schema. Unknown versions quarantine the package rather than guessing
// a parser.
var schemaFiles = map[string]string{
	"1.0": "schemas/package-1.0.json",
	"1.1": "schemas/package-1.1.json",
}

// Codec validates and decodes package payloads for the schema versions this
// server supports. Compiled once at startup.
type Codec struct {
	schemas map[string]*jsonschema.Schema
}

// NewCodec compiles the embedded schemas for the supported versions.
func NewCodec(supportedVersions []string) (*Codec, error) {
	compiler := jsonschema.NewCompiler()
	schemas := make(map[string]*jsonschema.Schema, len(supportedVersions))
	for _, version := range supportedVersions {
		file, ok := schemaFiles[version]
		if !ok {
			return nil, fmt.Errorf("no embedded schema for version %q", version)
		}
		raw, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", file, err)
		}
		if err := compiler.AddResource(file, doc); err != nil {
			return nil, fmt.Errorf("register schema %s: %w", file, err)
		}
		compiled, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		schemas[version] = compiled
	}
	return &Codec{schemas: schemas}, nil
}

// Supports reports whether the declared schema version is known to this server.
func (c *Codec) Supports(version string) bool {
	_, ok := c.schemas[version]
	return ok
}

// Decode validates raw payload bytes against the schema for the declared
// version and unmarshals them. Fails closed: a payload that does not match
// its declared schema is never decoded.
func (c *Codec) Decode(version string, raw []byte) (*Payload, error) {
	schema, ok := c.schemas[version]
	if !ok {
		return nil, fmt.Errorf("unsupported schema version %q", version)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed payload JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("payload violates schema %s: %w", version, err)
	}
	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &payload, nil
}
