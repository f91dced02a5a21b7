package validation

import (
	"errors"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

var ErrUnknownOperation = errors.New("unknown operation type")

// ActionConfig is the typed view of an action node's free-form configuration
// map. Parsing happens through an exhaustive switch over the operation tag,
// so new operation kinds fail loudly instead of passing silently, and every
// shape carries an open extension map for keys it does not model.
type ActionConfig interface {
	Operation() models.OperationType
	// MissingRequirements names the required configuration keys the action
	// does not satisfy, in a fixed order.
	MissingRequirements() []string
}

// APICallConfig configures an api-call action.
type APICallConfig struct {
	Endpoint              string
	Method                string
	External              bool
	RequiresAuth          bool
	AuthMethod            string
	SecurityScanCompleted bool
	Extra                 map[string]any
}

func (c APICallConfig) Operation() models.OperationType { return models.OperationAPICall }

func (c APICallConfig) MissingRequirements() []string {
	var missing []string

	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}

	return missing
}

// TransformConfig configures a transform action. Either an inline script or
// a rule list satisfies the requirement.
type TransformConfig struct {
	Script string
	Rules  []any
	Extra  map[string]any
}

func (c TransformConfig) Operation() models.OperationType { return models.OperationTransform }

func (c TransformConfig) MissingRequirements() []string {
	if c.Script == "" && len(c.Rules) == 0 {
		return []string{"script or rules"}
	}

	return nil
}

// FileTransferConfig configures a file-transfer action.
type FileTransferConfig struct {
	SourcePath      string
	DestinationPath string
	Extra           map[string]any
}

func (c FileTransferConfig) Operation() models.OperationType { return models.OperationFileTransfer }

func (c FileTransferConfig) MissingRequirements() []string {
	var missing []string

	if c.SourcePath == "" {
		missing = append(missing, "source_path")
	}

	if c.DestinationPath == "" {
		missing = append(missing, "destination_path")
	}

	return missing
}

// NotifyConfig configures a notify action.
type NotifyConfig struct {
	Channel   string
	Recipient string
	Extra     map[string]any
}

func (c NotifyConfig) Operation() models.OperationType { return models.OperationNotify }

func (c NotifyConfig) MissingRequirements() []string {
	var missing []string

	if c.Channel == "" {
		missing = append(missing, "channel")
	}

	if c.Recipient == "" {
		missing = append(missing, "recipient")
	}

	return missing
}

// AggregateConfig configures an aggregate action.
type AggregateConfig struct {
	Sources []any
	Extra   map[string]any
}

func (c AggregateConfig) Operation() models.OperationType { return models.OperationAggregate }

func (c AggregateConfig) MissingRequirements() []string {
	if len(c.Sources) == 0 {
		return []string{"sources"}
	}

	return nil
}

// ParseActionConfig builds the typed configuration for an action node.
func ParseActionConfig(action *models.ActionNode) (ActionConfig, error) {
	switch action.Operation {
	case models.OperationAPICall:
		endpoint, _ := action.ConfigString("endpoint")
		method, _ := action.ConfigString("method")
		authMethod, _ := action.ConfigString("auth_method")

		return APICallConfig{
			Endpoint:              endpoint,
			Method:                method,
			External:              action.ConfigBool("external"),
			RequiresAuth:          action.ConfigBool("requires_auth"),
			AuthMethod:            authMethod,
			SecurityScanCompleted: action.ConfigBool("security_scan_completed"),
			Extra:                 extraKeys(action.Config, "endpoint", "method", "external", "requires_auth", "auth_method", "security_scan_completed"),
		}, nil
	case models.OperationTransform:
		script, _ := action.ConfigString("script")
		rules, _ := action.Config["rules"].([]any)

		return TransformConfig{
			Script: script,
			Rules:  rules,
			Extra:  extraKeys(action.Config, "script", "rules"),
		}, nil
	case models.OperationFileTransfer:
		sourcePath, _ := action.ConfigString("source_path")
		destinationPath, _ := action.ConfigString("destination_path")

		return FileTransferConfig{
			SourcePath:      sourcePath,
			DestinationPath: destinationPath,
			Extra:           extraKeys(action.Config, "source_path", "destination_path"),
		}, nil
	case models.OperationNotify:
		channel, _ := action.ConfigString("channel")
		recipient, _ := action.ConfigString("recipient")

		return NotifyConfig{
			Channel:   channel,
			Recipient: recipient,
			Extra:     extraKeys(action.Config, "channel", "recipient"),
		}, nil
	case models.OperationAggregate:
		sources, _ := action.Config["sources"].([]any)

		return AggregateConfig{
			Sources: sources,
			Extra:   extraKeys(action.Config, "sources"),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, action.Operation)
	}
}

// extraKeys copies every config entry not claimed by the typed shape.
func extraKeys(config map[string]any, claimed ...string) map[string]any {
	if len(config) == 0 {
		return nil
	}

	claimedSet := make(map[string]bool, len(claimed))
	for _, key := range claimed {
		claimedSet[key] = true
	}

	extra := make(map[string]any)

	for key, value := range config {
		if !claimedSet[key] {
			extra[key] = value
		}
	}

	if len(extra) == 0 {
		return nil
	}

	return extra
}
