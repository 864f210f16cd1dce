package assist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"carbontracker/internal/core"
)

const estimateSchemaURL = "carbontracker://assist/estimate.json"

// estimateSchema is sent to the provider as responseSchema and, converted to
// JSON Schema, used to validate what comes back.
func estimateSchema() *Schema {
	categories := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		categories = append(categories, string(c))
	}
	return &Schema{
		Type: "OBJECT",
		Properties: map[string]*Schema{
			"productName":      {Type: "STRING", Description: "Short product name"},
			"weight":           {Type: "NUMBER", Description: "Shipping weight in kilograms"},
			"shippingDistance": {Type: "NUMBER", Description: "Shipping distance in kilometres"},
			"category":         {Type: "STRING", Enum: categories},
		},
		Required: []string{"productName", "weight", "shippingDistance", "category"},
	}
}

// toJSONSchema converts the provider schema into a draft 2020-12 document.
func toJSONSchema(s *Schema) map[string]any {
	out := map[string]any{"type": strings.ToLower(s.Type)}
	if len(s.Enum) > 0 {
		enum := make([]any, len(s.Enum))
		for i, v := range s.Enum {
			enum[i] = v
		}
		out["enum"] = enum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = toJSONSchema(p)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

var compiledEstimateSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := json.Marshal(toJSONSchema(estimateSchema()))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(estimateSchemaURL, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(estimateSchemaURL)
})

// validateAgainst decodes text as JSON and checks it against schema.
func validateAgainst(schema *jsonschema.Schema, text string) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return malformed("decode result: %v", err)
	}
	if err := schema.Validate(v); err != nil {
		return malformed("%v", err)
	}
	return nil
}
