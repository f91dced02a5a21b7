package models

// ValidationResult is the outcome of a validation pass: a validity flag plus
// ordered error (blocking) and warning (advisory) lists. Append order is
// preserved so identical input always yields identical output.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// NewValidationResult returns a passing result with empty finding lists.
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:    true,
		Errors:   []string{},
		Warnings: []string{},
	}
}

// AddError appends a blocking finding and marks the result invalid.
func (r *ValidationResult) AddError(message string) {
	r.Valid = false
	r.Errors = append(r.Errors, message)
}

// AddWarning appends an advisory finding. Warnings never affect validity.
func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// Merge folds other into r, concatenating findings in call order.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}

	if !other.Valid {
		r.Valid = false
	}

	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// HasErrors reports whether any blocking finding was recorded.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings reports whether any advisory finding was recorded.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}
