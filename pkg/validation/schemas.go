package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/loomhq/loom/pkg/models"
)

// configSchemas type-checks raw configuration payloads per operation. The
// tagged union covers presence of required keys; these schemas catch values
// of the wrong shape (an endpoint that is a number, a negative memory
// request) before any rule interprets them.
var configSchemas = map[models.OperationType]map[string]any{
	models.OperationAPICall: {
		"type": "object",
		"properties": map[string]any{
			"endpoint":                map[string]any{"type": "string"},
			"method":                  map[string]any{"type": "string"},
			"external":                map[string]any{"type": "boolean"},
			"requires_auth":           map[string]any{"type": "boolean"},
			"auth_method":             map[string]any{"type": "string"},
			"security_scan_completed": map[string]any{"type": "boolean"},
			"memory_mb":               map[string]any{"type": "number", "minimum": 0},
			"cpu_cores":               map[string]any{"type": "number", "minimum": 0},
		},
	},
	models.OperationTransform: {
		"type": "object",
		"properties": map[string]any{
			"script":    map[string]any{"type": "string"},
			"rules":     map[string]any{"type": "array"},
			"memory_mb": map[string]any{"type": "number", "minimum": 0},
			"cpu_cores": map[string]any{"type": "number", "minimum": 0},
		},
	},
	models.OperationFileTransfer: {
		"type": "object",
		"properties": map[string]any{
			"source_path":      map[string]any{"type": "string"},
			"destination_path": map[string]any{"type": "string"},
			"memory_mb":        map[string]any{"type": "number", "minimum": 0},
			"cpu_cores":        map[string]any{"type": "number", "minimum": 0},
		},
	},
	models.OperationNotify: {
		"type": "object",
		"properties": map[string]any{
			"channel":   map[string]any{"type": "string"},
			"recipient": map[string]any{"type": "string"},
		},
	},
	models.OperationAggregate: {
		"type": "object",
		"properties": map[string]any{
			"sources":   map[string]any{"type": "array"},
			"memory_mb": map[string]any{"type": "number", "minimum": 0},
			"cpu_cores": map[string]any{"type": "number", "minimum": 0},
		},
	},
}

// checkConfigSchema validates an action's raw config against the schema for
// its operation type. Returns one message per schema violation; operations
// without a schema pass.
func checkConfigSchema(action *models.ActionNode) []string {
	schema, ok := configSchemas[action.Operation]
	if !ok {
		return nil
	}

	config := action.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return []string{fmt.Sprintf("schema validation failed: %v", err)}
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		messages = append(messages, schemaErr.String())
	}

	return messages
}
