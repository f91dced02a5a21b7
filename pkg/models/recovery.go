package models

// RecoveryEligibility classifies whether a soft-deleted model can be restored.
type RecoveryEligibility string

const (
	RecoveryEligible         RecoveryEligibility = "ELIGIBLE"
	RecoveryExpired          RecoveryEligibility = "EXPIRED"
	RecoveryPermissionDenied RecoveryEligibility = "PERMISSION_DENIED"
	RecoveryRequiresRepair   RecoveryEligibility = "REQUIRES_REPAIR"
)

// EscalationPath describes how an expired deletion can still be recovered:
// an administrative override with a mandatory justification, not an
// unconditional denial.
type EscalationPath struct {
	RequiredRole          string `json:"required_role"`
	RequiresJustification bool   `json:"requires_justification"`
	Description           string `json:"description,omitempty"`
}

// RepairComplexity grades how involved a single repair action is.
type RepairComplexity string

const (
	RepairComplexityLow    RepairComplexity = "low"
	RepairComplexityMedium RepairComplexity = "medium"
	RepairComplexityHigh   RepairComplexity = "high"
)

// RepairActionType enumerates the reference repairs the dependency service
// can perform.
type RepairActionType string

const (
	RepairRelink            RepairActionType = "relink"
	RepairRemoveReference   RepairActionType = "remove-reference"
	RepairRestoreDependency RepairActionType = "restore-dependency"
)

// RepairAction is one step of a repair plan, aimed at a concrete target.
type RepairAction struct {
	Target     string           `json:"target"` // Entity or link ID the action applies to
	Action     RepairActionType `json:"action"`
	Complexity RepairComplexity `json:"complexity"`
	Detail     string           `json:"detail,omitempty"`
}

// RepairPlan is an ordered list of repair actions; execution order matters.
type RepairPlan struct {
	Actions []RepairAction `json:"actions"`
}

// IsEmpty reports whether the plan carries no actions.
func (p *RepairPlan) IsEmpty() bool {
	return p == nil || len(p.Actions) == 0
}

// IntegrityReport is the dependency service's view of a model's reference
// graph.
type IntegrityReport struct {
	Intact              bool     `json:"intact"`
	BrokenReferences    []string `json:"broken_references,omitempty"`
	MissingDependencies []string `json:"missing_dependencies,omitempty"`
}

// VersionConflict records a dependent pinned to a version that recovery
// would violate.
type VersionConflict struct {
	DependentID     string `json:"dependent_id"`
	RequiredVersion string `json:"required_version"`
	ActualVersion   string `json:"actual_version"`
}

// CompatibilityReport is the version service's verdict on restoring a model.
type CompatibilityReport struct {
	Compatible bool              `json:"compatible"`
	Conflicts  []VersionConflict `json:"conflicts,omitempty"`
}
