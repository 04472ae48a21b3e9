package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that should block removals.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that must never be overridden.
	SeverityCritical Severity = "critical"
)

// Policy represents a removal policy with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single removal-policy violation.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// Package is the package name that violated the policy.
	Package string `json:"package,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result represents the result of evaluating removal policies over a set
// of candidate packages.
type Result struct {
	// Allowed lists the package names whose removal no policy blocked.
	Allowed []string `json:"allowed"`

	// Blocked lists the package names whose removal was denied.
	Blocked []string `json:"blocked,omitempty"`

	// Violations lists all policy violations, blocking and advisory.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists evaluation problems that did not block any package.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedAt is when the evaluation happened.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// PackageInput is the package projection handed to Rego policies.
type PackageInput struct {
	// Name is the package name.
	Name string `json:"name"`

	// Version is the package version and revision, e.g. "1.0_1".
	Version string `json:"version"`

	// State is the installation state.
	State string `json:"state"`

	// Automatic indicates the package was installed as a dependency.
	Automatic bool `json:"automatic"`
}

// Input represents the input document for a single policy evaluation.
type Input struct {
	// Package is the removal candidate being evaluated.
	Package *PackageInput `json:"package"`

	// Context provides additional evaluation context.
	Context *Context `json:"context"`
}

// Context provides context information for removal evaluation.
type Context struct {
	// Holds lists package names the operator has pinned against removal.
	Holds []string `json:"holds"`

	// DryRun indicates the removal will not actually be performed.
	DryRun bool `json:"dry_run"`

	// Operation is always "remove" for removal evaluation.
	Operation string `json:"operation"`

	// BatchSize is the number of packages in the removal batch.
	BatchSize int `json:"batch_size"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}
