// Package validation checks request parameters and reports field errors.
package validation

import (
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/TimurManjosov/silencegate/internal/bitmask"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/threshold"
)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// ValidateFeature checks a feature name.
func ValidateFeature(name string) *ValidationResult {
	result := NewValidationResult()
	name = strings.TrimSpace(name)

	if name == "" {
		result.AddError("feature", "Feature is required")
		return result
	}
	if _, err := syncctl.ParseFeature(name); err != nil {
		result.AddError("feature", fmt.Sprintf("Feature must be one of %v", syncctl.Features()))
	}
	return result
}

// ValidateSelection checks a domain name and a selection for that domain.
func ValidateSelection(domain string, selection int64) *ValidationResult {
	result := NewValidationResult()

	d, ok := bitmask.Lookup(domain)
	if !ok {
		result.AddError("domain", fmt.Sprintf("Domain must be one of %v", bitmask.Names()))
		return result
	}
	if selection < 0 || selection > math.MaxUint32 {
		result.AddError("selection", "Selection must be a non-negative 32-bit integer")
		return result
	}
	if err := d.Validate(bitmask.Selection(selection)); err != nil {
		result.AddError("selection", fmt.Sprintf("Selection must only use bits %#x", uint32(d.Mask())))
	}
	return result
}

// ValidateThreshold checks a count/minutes pair.
func ValidateThreshold(count, minutes int) *ValidationResult {
	result := NewValidationResult()

	if count <= 0 {
		result.AddError("count", "Count must be positive")
	}
	if minutes <= 0 {
		result.AddError("minutes", "Minutes must be positive")
	}
	if result.Valid && !threshold.Validate(count, minutes) {
		result.AddError("count", "Count must be less than minutes")
	}
	return result
}

// ValidateRequestID checks a grant request id.
func ValidateRequestID(id string) *ValidationResult {
	result := NewValidationResult()
	if _, err := uuid.Parse(id); err != nil {
		result.AddError("id", "Request id must be a UUID")
	}
	return result
}

// ValidateCapability checks a capability id, full or short form.
func ValidateCapability(id string) (*ValidationResult, capability.ID) {
	result := NewValidationResult()
	c, err := capability.Parse(id)
	if err != nil {
		result.AddError("capability", fmt.Sprintf("Capability must be one of %v", capability.Known()))
		return result, ""
	}
	return result, c
}
