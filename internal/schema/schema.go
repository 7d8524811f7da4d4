// Package schema builds JSON schema documents from Go struct types.
// The result describes the record shape the extractor asks the model for.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Schema is a JSON schema document.
type Schema map[string]any

// Of reflects v (a struct or pointer to struct) into an object schema.
// Property names follow the json tag; a `description` tag is copied verbatim.
// Fields tagged omitempty are optional, every other field is required.
func Of(v any) (Schema, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: expected struct, got %T", v)
	}
	s := objectSchema(t)
	s["title"] = t.Name()
	return s, nil
}

// MustOf is Of for package-level schema variables.
func MustOf(v any) Schema {
	s, err := Of(v)
	if err != nil {
		panic(err)
	}
	return s
}

// JSON renders the schema as indented JSON.
func (s Schema) JSON() (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func objectSchema(t reflect.Type) Schema {
	props := map[string]any{}
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty, skip := jsonName(f)
		if skip {
			continue
		}

		prop := typeSchema(f.Type)
		if desc := f.Tag.Get("description"); desc != "" {
			prop["description"] = desc
		}
		prop["title"] = title(name)
		props[name] = prop
		if !omitempty {
			required = append(required, name)
		}
	}

	return Schema{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func typeSchema(t reflect.Type) Schema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return Schema{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Schema{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return Schema{"type": "number"}
	case reflect.String:
		return Schema{"type": "string"}
	case reflect.Slice, reflect.Array:
		return Schema{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Map:
		return Schema{"type": "object", "additionalProperties": typeSchema(t.Elem())}
	case reflect.Struct:
		return objectSchema(t)
	default:
		return Schema{}
	}
}

func jsonName(f reflect.StructField) (name string, omitempty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty, false
}

// title turns "actorName" into "Actorname", matching the titles most
// schema generators emit for camelCase keys.
func title(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}
