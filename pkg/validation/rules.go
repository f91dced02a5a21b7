package validation

import (
	"fmt"
	"regexp"

	"github.com/loomhq/loom/pkg/models"
)

// MaxModelNameLength is the hard ceiling on model names.
const MaxModelNameLength = 100

var modelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)

// ResourceLimits holds the organization ceilings applied by the resource
// rule family.
type ResourceLimits struct {
	MaxActionMemoryMB   float64 `json:"max_action_memory_mb"   yaml:"max_action_memory_mb"`
	MaxActionCPUCores   float64 `json:"max_action_cpu_cores"   yaml:"max_action_cpu_cores"`
	MaxTotalMemoryMB    float64 `json:"max_total_memory_mb"    yaml:"max_total_memory_mb"`
	MaxTotalCPUCores    float64 `json:"max_total_cpu_cores"    yaml:"max_total_cpu_cores"`
	HighMemoryWarningMB float64 `json:"high_memory_warning_mb" yaml:"high_memory_warning_mb"`
}

// DefaultResourceLimits returns the ceilings used when no configuration
// overrides them.
func DefaultResourceLimits() ResourceLimits {
	return ResourceLimits{
		MaxActionMemoryMB:   4096,
		MaxActionCPUCores:   8,
		MaxTotalMemoryMB:    16384,
		MaxTotalCPUCores:    32,
		HighMemoryWarningMB: 2048,
	}
}

// Strictness selects a rule profile. Accepted and threaded through so
// deployments can pin it, but today every profile evaluates the same rules.
type Strictness string

const (
	StrictnessDefault Strictness = "default"
	StrictnessRelaxed Strictness = "relaxed"
	StrictnessStrict  Strictness = "strict"
)

// BusinessRuleValidator evaluates cross-entity policy over a model snapshot.
// It holds configuration only, never request state, so a single instance is
// safe for any number of concurrent callers.
type BusinessRuleValidator struct {
	limits     ResourceLimits
	strictness Strictness
}

// NewBusinessRuleValidator creates a business-rule validator with the given
// resource ceilings.
func NewBusinessRuleValidator(limits ResourceLimits, strictness Strictness) *BusinessRuleValidator {
	if strictness == "" {
		strictness = StrictnessDefault
	}

	return &BusinessRuleValidator{
		limits:     limits,
		strictness: strictness,
	}
}

// ValidateBusinessRules runs every rule family over the given snapshot and
// accumulates all findings into one result. The function never panics:
// malformed input degrades to findings.
func (v *BusinessRuleValidator) ValidateBusinessRules(model *models.Model, actionNodes []*models.ActionNode) *models.ValidationResult {
	result := models.NewValidationResult()

	if model == nil {
		result.AddError("No model provided for business rule validation.")

		return result
	}

	v.validateConfigCompleteness(result, actionNodes)
	v.validateResourceLimits(result, actionNodes)
	v.validateDataSecurity(result, actionNodes)
	v.validateAPISecurity(result, actionNodes)
	v.validateNamingVersioning(result, model)

	return result
}

// validateConfigCompleteness checks that every action carries the
// configuration its operation type requires, then type-checks the raw
// payload against the operation schema.
func (v *BusinessRuleValidator) validateConfigCompleteness(result *models.ValidationResult, actionNodes []*models.ActionNode) {
	for _, action := range actionNodes {
		if action == nil {
			continue
		}

		config, err := ParseActionConfig(action)
		if err != nil {
			result.AddError(fmt.Sprintf("Action %q: %v.", action.Name, err))

			continue
		}

		for _, missing := range config.MissingRequirements() {
			result.AddError(fmt.Sprintf("Action %q (%s) is missing required configuration: %s.", action.Name, action.Operation, missing))
		}

		for _, schemaErr := range checkConfigSchema(action) {
			result.AddError(fmt.Sprintf("Action %q configuration invalid: %s.", action.Name, schemaErr))
		}
	}
}

// validateResourceLimits enforces per-action and aggregate memory/CPU
// ceilings. Individually high allocations that stay under the ceiling are
// advisory only.
func (v *BusinessRuleValidator) validateResourceLimits(result *models.ValidationResult, actionNodes []*models.ActionNode) {
	var totalMemory, totalCPU float64

	for _, action := range actionNodes {
		if action == nil {
			continue
		}

		memory, hasMemory := action.ConfigNumber("memory_mb")
		if hasMemory {
			totalMemory += memory

			switch {
			case memory > v.limits.MaxActionMemoryMB:
				result.AddError(fmt.Sprintf("Action %q requests %.0f MB memory, exceeding the per-action ceiling of %.0f MB.", action.Name, memory, v.limits.MaxActionMemoryMB))
			case memory > v.limits.HighMemoryWarningMB:
				result.AddWarning(fmt.Sprintf("Action %q has high memory allocation (%.0f MB).", action.Name, memory))
			}
		}

		cpu, hasCPU := action.ConfigNumber("cpu_cores")
		if hasCPU {
			totalCPU += cpu

			if cpu > v.limits.MaxActionCPUCores {
				result.AddError(fmt.Sprintf("Action %q requests %.1f CPU cores, exceeding the per-action ceiling of %.1f.", action.Name, cpu, v.limits.MaxActionCPUCores))
			}
		}
	}

	if totalMemory > v.limits.MaxTotalMemoryMB {
		result.AddError(fmt.Sprintf("Workflow requests %.0f MB memory in total, exceeding the aggregate ceiling of %.0f MB.", totalMemory, v.limits.MaxTotalMemoryMB))
	}

	if totalCPU > v.limits.MaxTotalCPUCores {
		result.AddError(fmt.Sprintf("Workflow requests %.1f CPU cores in total, exceeding the aggregate ceiling of %.1f.", totalCPU, v.limits.MaxTotalCPUCores))
	}
}

// validateDataSecurity enforces the data handling policies: encryption for
// sensitive and personal data, approval for external sharing, consent for
// personal data leaving the organization.
func (v *BusinessRuleValidator) validateDataSecurity(result *models.ValidationResult, actionNodes []*models.ActionNode) {
	for _, action := range actionNodes {
		if action == nil {
			continue
		}

		sensitive := action.ConfigBool("handles_sensitive_data")
		personal := action.ConfigBool("handles_personal_data")
		external := action.ConfigBool("external") || action.ConfigBool("external_sharing")

		if (sensitive || personal) && !action.ConfigBool("encryption_enabled") {
			result.AddError(fmt.Sprintf("Action %q processes sensitive data without encryption enabled.", action.Name))
		}

		if action.ConfigBool("external_sharing") && !action.ConfigBool("sharing_approved") {
			result.AddError(fmt.Sprintf("Action %q shares data externally without a recorded approval.", action.Name))
		}

		if personal && external && !action.ConfigBool("consent_obtained") {
			result.AddError(fmt.Sprintf("Action %q sends personal data to an external system without recorded consent.", action.Name))
		}

		if sensitive && !action.ConfigBool("secure_handling") {
			result.AddWarning(fmt.Sprintf("Action %q handles sensitive data without a secure handling flag.", action.Name))
		}
	}
}

// validateAPISecurity enforces the external API policies: completed security
// scans and declared authentication methods.
func (v *BusinessRuleValidator) validateAPISecurity(result *models.ValidationResult, actionNodes []*models.ActionNode) {
	for _, action := range actionNodes {
		if action == nil || action.Operation != models.OperationAPICall {
			continue
		}

		if action.ConfigBool("external") && !action.ConfigBool("security_scan_completed") {
			result.AddError(fmt.Sprintf("Action %q calls an external API without a completed security scan.", action.Name))
		}

		if action.ConfigBool("requires_auth") {
			if method, _ := action.ConfigString("auth_method"); method == "" {
				result.AddError(fmt.Sprintf("Action %q requires authentication but declares no auth method.", action.Name))
			}
		}
	}
}

// validateNamingVersioning enforces name length and pattern conventions and
// semantic-version discipline, including bump expectations recorded in the
// model metadata.
func (v *BusinessRuleValidator) validateNamingVersioning(result *models.ValidationResult, model *models.Model) {
	if len(model.Name) > MaxModelNameLength {
		result.AddError(fmt.Sprintf("Model name exceeds the maximum length of %d characters.", MaxModelNameLength))
	}

	if model.Name != "" && !modelNamePattern.MatchString(model.Name) {
		result.AddWarning(fmt.Sprintf("Model name %q does not follow the naming convention.", model.Name))
	}

	if !models.IsSemver(model.Version) {
		result.AddError(fmt.Sprintf("Model version %q is not a semantic version.", model.Version))

		return
	}

	previousVersion, _ := model.Metadata["previous_version"].(string)
	if previousVersion == "" || !models.IsSemver(previousVersion) {
		return
	}

	if structural, _ := model.Metadata["structural_change"].(bool); structural && model.Version == previousVersion {
		result.AddWarning("Structural changes should be accompanied by a version bump.")
	}

	if breaking, _ := model.Metadata["breaking_change"].(bool); breaking {
		currentMajor, _, _, _ := models.ParseSemver(model.Version)
		previousMajor, _, _, _ := models.ParseSemver(previousVersion)

		if currentMajor == previousMajor {
			result.AddWarning("Breaking changes should bump the major version.")
		}
	}
}
