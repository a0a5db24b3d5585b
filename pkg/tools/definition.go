// Package tools defines the functions a model may call during a chat turn.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Definition describes one callable tool. Parameters is the JSON schema of the
// input object sent to the model.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`

	execute func(ctx context.Context, args json.RawMessage) (any, error)
}

// NewTool builds a Definition from a typed function. The input struct is
// reflected into a schema with definitions expanded inline.
func NewTool[In any, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) (*Definition, error) {
	if name == "" {
		return nil, errors.New("tool name cannot be empty")
	}
	if fn == nil {
		return nil, errors.Errorf("tool %s: nil function", name)
	}
	schema, err := schemaFor[In]()
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s", name)
	}
	return &Definition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in In
			if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
				if err := json.Unmarshal(trimmed, &in); err != nil {
					return nil, errors.Wrapf(err, "tool %s: invalid arguments", name)
				}
			}
			return fn(ctx, in)
		},
	}, nil
}

// MustNewTool is NewTool for package-level tool declarations.
func MustNewTool[In any, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) *Definition {
	d, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return d
}

func schemaFor[In any]() (*jsonschema.Schema, error) {
	var zero In
	t := reflect.TypeOf(zero)
	if t == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct && t.Kind() != reflect.Map {
		return nil, errors.Errorf("input must be a struct or map, got %s", t.Kind())
	}

	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.ReflectFromType(t)
	schema.Version = ""
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema, nil
}

// Execute decodes args into the tool input and runs the tool.
func (d *Definition) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	if d == nil || d.execute == nil {
		return nil, errors.New("tool function not properly initialized")
	}
	return d.execute(ctx, args)
}

// ParametersJSON returns the parameter schema as a JSON object.
func (d *Definition) ParametersJSON() (json.RawMessage, error) {
	if d.Parameters == nil {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	b, err := json.Marshal(d.Parameters)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal schema for %s", d.Name)
	}
	return b, nil
}
