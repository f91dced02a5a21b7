package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LinkType enumerates the supported relationship kinds between entities.
type LinkType string

const (
	LinkTypeDocuments  LinkType = "documents"
	LinkTypeImplements LinkType = "implements"
	LinkTypeReferences LinkType = "references"
	LinkTypeSupports   LinkType = "supports"
	LinkTypeNested     LinkType = "nested"
	LinkTypeTriggers   LinkType = "triggers"
	LinkTypeConsumes   LinkType = "consumes"
	LinkTypeProduces   LinkType = "produces"
	LinkTypeDependency LinkType = "dependency"
)

// Known reports whether t is one of the recognized link types.
func (t LinkType) Known() bool {
	switch t {
	case LinkTypeDocuments, LinkTypeImplements, LinkTypeReferences, LinkTypeSupports,
		LinkTypeNested, LinkTypeTriggers, LinkTypeConsumes, LinkTypeProduces, LinkTypeDependency:
		return true
	default:
		return false
	}
}

// Strength classification thresholds.
const (
	StrongLinkThreshold = 0.7
	WeakLinkThreshold   = 0.3
)

var (
	ErrEmptyEntityID       = errors.New("source and target entity IDs are required")
	ErrIncompleteNodePair  = errors.New("node-level links require both source and target node IDs")
	ErrNodeSelfLink        = errors.New("node cannot link to itself")
	ErrUnknownLinkType     = errors.New("unknown link type")
	ErrInvalidLinkStrength = errors.New("link strength must be between 0.0 and 1.0")
)

// NodeLink is a directed relationship between two entities, optionally scoped
// to specific nodes within them. Links hold weak references only: the entities
// and nodes they point at may no longer exist, and consumers must tolerate
// and report broken references rather than fail on them.
type NodeLink struct {
	ID             string         `json:"id"`
	SourceFeature  string         `json:"source_feature"`
	TargetFeature  string         `json:"target_feature"`
	SourceEntityID string         `json:"source_entity_id" validate:"required"`
	TargetEntityID string         `json:"target_entity_id" validate:"required"`
	SourceNodeID   string         `json:"source_node_id,omitempty"`
	TargetNodeID   string         `json:"target_node_id,omitempty"`
	Type           LinkType       `json:"type"             validate:"required"`
	Strength       float64        `json:"strength"         validate:"gte=0,lte=1"`
	Context        map[string]any `json:"context,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewNodeLink constructs a link after checking every precondition. On failure
// no partial link is returned.
func NewNodeLink(sourceFeature, targetFeature, sourceEntityID, targetEntityID string, linkType LinkType, strength float64) (*NodeLink, error) {
	if sourceEntityID == "" || targetEntityID == "" {
		return nil, ErrEmptyEntityID
	}

	if !linkType.Known() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLinkType, linkType)
	}

	if strength < 0.0 || strength > 1.0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLinkStrength, strength)
	}

	now := time.Now().UTC()

	return &NodeLink{
		ID:             uuid.New().String(),
		SourceFeature:  sourceFeature,
		TargetFeature:  targetFeature,
		SourceEntityID: sourceEntityID,
		TargetEntityID: targetEntityID,
		Type:           linkType,
		Strength:       strength,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ScopeToNodes narrows the link to a specific node pair. Both IDs must be
// present and distinct; entity-level self-links stay legal, node-level ones
// do not.
func (l *NodeLink) ScopeToNodes(sourceNodeID, targetNodeID string) error {
	if sourceNodeID == "" || targetNodeID == "" {
		return ErrIncompleteNodePair
	}

	if sourceNodeID == targetNodeID {
		return ErrNodeSelfLink
	}

	l.SourceNodeID = sourceNodeID
	l.TargetNodeID = targetNodeID
	l.UpdatedAt = time.Now().UTC()

	return nil
}

// IsNodeScoped reports whether the link targets specific nodes rather than
// whole entities.
func (l *NodeLink) IsNodeScoped() bool {
	return l.SourceNodeID != "" && l.TargetNodeID != ""
}

// UpdateStrength replaces the link strength. An out-of-range value leaves
// strength and timestamps untouched.
func (l *NodeLink) UpdateStrength(strength float64) error {
	if strength < 0.0 || strength > 1.0 {
		return fmt.Errorf("%w: %v", ErrInvalidLinkStrength, strength)
	}

	l.Strength = strength
	l.UpdatedAt = time.Now().UTC()

	return nil
}

// UpdateType replaces the link type, rejecting unknown values.
func (l *NodeLink) UpdateType(linkType LinkType) error {
	if !linkType.Known() {
		return fmt.Errorf("%w: %s", ErrUnknownLinkType, linkType)
	}

	l.Type = linkType
	l.UpdatedAt = time.Now().UTC()

	return nil
}

// MergeContext copies the given entries into the link context. The input map
// is copied, not retained, so later caller mutations cannot leak in.
func (l *NodeLink) MergeContext(context map[string]any) {
	if len(context) == 0 {
		return
	}

	if l.Context == nil {
		l.Context = make(map[string]any, len(context))
	}

	for key, value := range context {
		l.Context[key] = value
	}

	l.UpdatedAt = time.Now().UTC()
}

// ContextSnapshot returns a copy of the link context so callers cannot mutate
// the stored map through the returned value.
func (l *NodeLink) ContextSnapshot() map[string]any {
	if l.Context == nil {
		return nil
	}

	snapshot := make(map[string]any, len(l.Context))
	for key, value := range l.Context {
		snapshot[key] = value
	}

	return snapshot
}

// IsStrong reports whether the link strength is at or above the strong threshold.
func (l *NodeLink) IsStrong() bool {
	return l.Strength >= StrongLinkThreshold
}

// IsWeak reports whether the link strength is at or below the weak threshold.
func (l *NodeLink) IsWeak() bool {
	return l.Strength <= WeakLinkThreshold
}
