// Package validation implements the structural and business-rule validators
// for workflow graphs. Every validator is a pure function over the snapshot
// it receives: no hidden state, safe to call from any number of concurrent
// callers, identical input always yields identical output.
package validation

import (
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

// Handle literals accepted on connection endpoints.
const (
	HandleLeft         = "left"
	HandleRight        = "right"
	HandleTop          = "top"
	HandleBottom       = "bottom"
	HandleContainerIn  = "container-in"
	HandleContainerOut = "container-out"
)

// ConnectionValidator checks proposed graph edits: endpoint compatibility,
// handle legality, and cycle introduction.
type ConnectionValidator struct{}

// NewConnectionValidator creates a connection validator.
func NewConnectionValidator() *ConnectionValidator {
	return &ConnectionValidator{}
}

// ValidateConnection checks a proposed connection between two nodes. Rules
// append to the result instead of short-circuiting, so one call reports every
// violation at once.
func (v *ConnectionValidator) ValidateConnection(sourceID, targetID, sourceHandle, targetHandle string, sourceType, targetType models.NodeType) *models.ValidationResult {
	result := models.NewValidationResult()

	sourceKnown := sourceType.Known()
	if !sourceKnown {
		result.AddError(fmt.Sprintf("Unknown source node type: %s", sourceType))
	}

	targetKnown := targetType.Known()
	if !targetKnown {
		result.AddError(fmt.Sprintf("Unknown target node type: %s", targetType))
	}

	if sourceID != "" && sourceID == targetID {
		result.AddError("Cannot connect a node to itself.")
	}

	// Pairing rules only make sense once both endpoint types are recognized.
	if sourceKnown && targetKnown {
		v.validatePairing(result, sourceHandle, targetHandle, sourceType, targetType)
	}

	if !validHandle(sourceHandle) {
		result.AddError(fmt.Sprintf("Invalid source handle: %s", sourceHandle))
	}

	if !validHandle(targetHandle) {
		result.AddError(fmt.Sprintf("Invalid target handle: %s", targetHandle))
	}

	if sourceType == models.NodeTypeBoundaryInput && targetType == models.NodeTypeBoundaryInput {
		result.AddWarning("Connecting two input boundaries may indicate design issue.")
	}

	return result
}

// validatePairing applies the endpoint-compatibility rules: siblings connect
// laterally, containment crosses container handles, and actions never connect
// directly to anything outside their container.
func (v *ConnectionValidator) validatePairing(result *models.ValidationResult, sourceHandle, targetHandle string, sourceType, targetType models.NodeType) {
	sourceAction := sourceType == models.NodeTypeAction
	targetAction := targetType == models.NodeTypeAction

	switch {
	case sourceAction && targetAction:
		result.AddError("Action nodes cannot connect directly to each other. Connect actions through their owning container.")
	case sourceType.IsBoundary() && targetAction:
		result.AddError("Boundary nodes cannot connect directly to action nodes.")
	case sourceAction && targetType.IsBoundary():
		result.AddError("Action nodes cannot connect directly to boundary nodes.")
	case !sourceAction && !targetAction:
		// Boundary and container nodes are siblings and connect side to side.
		if !lateralHandle(sourceHandle) || !lateralHandle(targetHandle) {
			result.AddError("Sibling connections must use left/right handles.")
		}
	default:
		// One action, one container: a parent/child containment edge.
		if !containmentHandle(sourceHandle) || !containmentHandle(targetHandle) {
			result.AddError("Parent/child connections must use container-in/container-out or top/bottom handles.")
		}
	}
}

func validHandle(handle string) bool {
	switch handle {
	case HandleLeft, HandleRight, HandleTop, HandleBottom, HandleContainerIn, HandleContainerOut:
		return true
	default:
		return false
	}
}

func lateralHandle(handle string) bool {
	return handle == HandleLeft || handle == HandleRight
}

func containmentHandle(handle string) bool {
	switch handle {
	case HandleContainerIn, HandleContainerOut, HandleTop, HandleBottom:
		return true
	default:
		return false
	}
}
