package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// planSchemaDoc describes the shape a SubQueryGenerator response must have
// before it is even looked up against the tool catalog: an object with a
// sub_queries array of {id, tool_name, arguments, priority} and a strategy
// string. This catches a malformed or truncated LLM response earlier and
// more precisely than a bare json.Unmarshal would.
const planSchemaDoc = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["sub_queries"],
	"properties": {
		"strategy": {"type": "string"},
		"sub_queries": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["tool_name"],
				"properties": {
					"id": {"type": "string"},
					"tool_name": {"type": "string"},
					"arguments": {"type": "object"},
					"priority": {"type": "integer"}
				}
			}
		}
	}
}`

var (
	planSchemaOnce sync.Once
	planSchema     *jsonschema.Schema
	planSchemaErr  error
)

func compiledPlanSchema() (*jsonschema.Schema, error) {
	planSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("plan.json", strings.NewReader(planSchemaDoc)); err != nil {
			planSchemaErr = fmt.Errorf("add plan schema resource: %w", err)
			return
		}
		planSchema, planSchemaErr = compiler.Compile("plan.json")
	})
	return planSchema, planSchemaErr
}

// validateSchema checks raw LLM output against planSchemaDoc before it is
// unmarshalled into rawPlan, so a structurally invalid response (missing
// tool_name, sub_queries not an array) is rejected with a precise error
// rather than surfacing as a confusing downstream zero-value.
func validateSchema(text string) error {
	schema, err := compiledPlanSchema()
	if err != nil {
		return fmt.Errorf("compile plan schema: %w", err)
	}

	var instance any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}
