package server

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

const lookupSchema = `{
	"type": "object",
	"required": ["cnpj"],
	"properties": {
		"cnpj": {"type": "string", "minLength": 1}
	}
}`

const analysisSchema = `{
	"type": "object",
	"required": ["cnpj"],
	"properties": {
		"cnpj": {"type": "string", "minLength": 1},
		"requested_amount": {"type": "number", "minimum": 0},
		"installments": {"type": "integer", "minimum": 0, "maximum": 480},
		"monthly_rate": {"type": "number", "minimum": 0, "maximum": 100},
		"declared_capital": {"type": "string"},
		"profile": {"type": "object"}
	}
}`

const providerUpdateSchema = `{
	"type": "object",
	"required": ["enabled"],
	"properties": {
		"enabled": {"type": "boolean"},
		"api_key": {"type": "string"}
	},
	"additionalProperties": false
}`

var (
	lookupValidator         = mustSchema(lookupSchema)
	analysisValidator       = mustSchema(analysisSchema)
	providerUpdateValidator = mustSchema(providerUpdateSchema)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return schema
}

// validateBody checks a raw JSON body against schema and joins the
// violations into one message.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return eris.Wrap(err, "invalid JSON body")
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	return eris.New(strings.Join(msgs, "; "))
}
