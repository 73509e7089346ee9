package generation

import (
	_ "embed"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/instruction_sheet.schema.json
var instructionSheetSchema string

var (
	sheetSchemaOnce sync.Once
	sheetSchema     *jsonschema.Schema
	sheetSchemaErr  error
)

func compiledSheetSchema() (*jsonschema.Schema, error) {
	sheetSchemaOnce.Do(func() {
		sheetSchema, sheetSchemaErr = jsonschema.CompileString("instruction_sheet.schema.json", instructionSheetSchema)
	})
	return sheetSchema, sheetSchemaErr
}

// validateSheet checks a normalized sheet document, as produced by
// json.Unmarshal into any, against the instruction sheet schema.
func validateSheet(doc any) error {
	schema, err := compiledSheetSchema()
	if err != nil {
		return fmt.Errorf("failed to compile instruction sheet schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("instruction sheet schema validation failed: %w", err)
	}
	return nil
}
