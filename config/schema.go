package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// requestSchemaJSON describes the wire format a REPL or IDE plugin would
// submit as a single ad-hoc solver.Request: the {function, pc, variable}
// shape of config.Entrypoint, serialised as one JSON object.
const requestSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["function", "pc"],
	"properties": {
		"function": {"type": "string", "minLength": 1},
		"pc": {"type": "integer", "minimum": 0},
		"variable": {"type": "string"}
	},
	"additionalProperties": false
}`

var requestSchema *jsonschema.Schema

func init() {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("request.json", mustUnmarshalJSON(requestSchemaJSON)); err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	s, err := c.Compile("request.json")
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	requestSchema = s
}

func mustUnmarshalJSON(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// ValidateRequest validates a single ad-hoc JSON request against the
// embedded schema, returning every violation jsonschema reports.
func ValidateRequest(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("config: invalid JSON: %w", err)
	}
	if err := requestSchema.Validate(v); err != nil {
		return fmt.Errorf("config: request does not match schema: %w", err)
	}
	return nil
}
