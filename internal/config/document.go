package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var documentSchema string

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

func loadSchema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("tripload.schema.json", strings.NewReader(documentSchema)); err != nil {
			compiledSchemaErr = fmt.Errorf("invalid embedded schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("tripload.schema.json")
	})
	return compiledSchema, compiledSchemaErr
}

// ValidateDocument checks a raw YAML or JSON configuration document against the
// embedded JSON Schema. It catches unknown keys and wrong value types before
// decoding, which the struct decoder would otherwise ignore or report vaguely.
func ValidateDocument(data []byte, path string) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	doc, err := decodeDocument(data, path)
	if err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		errs := &ValidationErrors{}
		collectSchemaErrors(ve, errs)
		if !errs.HasErrors() {
			errs.Add("", ve.Error())
		}
		return errs
	}

	return nil
}

// decodeDocument converts YAML or JSON into the generic value tree the schema
// validator expects (maps, slices, json.Number, strings, bools).
func decodeDocument(data []byte, path string) (interface{}, error) {
	raw := data
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		var node interface{}
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if node == nil {
			node = map[string]interface{}{}
		}
		converted, err := json.Marshal(node)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML config: %w", err)
		}
		raw = converted
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return doc, nil
}

// collectSchemaErrors keeps only the leaf causes, which carry the precise location.
func collectSchemaErrors(ve *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(ve.Causes) == 0 {
		field := strings.TrimPrefix(ve.InstanceLocation, "/")
		errs.Add(strings.ReplaceAll(field, "/", "."), ve.Message)
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaErrors(cause, errs)
	}
}
