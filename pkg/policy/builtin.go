package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in removal policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		baseSystemPolicy(),
		heldPackagesPolicy(),
		installStatePolicy(),
		bulkRemovalPolicy(),
	}
}

// baseSystemPolicy protects core system packages from removal.
func baseSystemPolicy() Policy {
	return Policy{
		Name:        "base-system",
		Description: "Prevents removal of core system packages",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"safety", "system"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package quarry.policies.base

import rego.v1

# Packages the system cannot function without
protected_packages := ["base-system", "base-files", "quarry"]

deny contains violation if {
	input.package
	some name in protected_packages
	input.package.name == name

	violation := {
		"message": sprintf("Package %s is part of the base system and cannot be removed", [name]),
		"severity": "critical",
		"package": name,
	}
}`,
	}
}

// heldPackagesPolicy blocks removal of operator-held packages.
func heldPackagesPolicy() Policy {
	return Policy{
		Name:        "held-packages",
		Description: "Prevents removal of packages the operator has put on hold",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"holds", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package quarry.policies.holds

import rego.v1

deny contains violation if {
	input.package
	input.context.holds
	some held in input.context.holds
	input.package.name == held

	violation := {
		"message": sprintf("Package %s is on hold", [held]),
		"severity": "error",
		"package": held,
	}
}`,
	}
}

// installStatePolicy refuses removal of packages that are not fully
// installed; those need repair, not autoremoval.
func installStatePolicy() Policy {
	return Policy{
		Name:        "install-state",
		Description: "Refuses removal of packages that are not in the installed state",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"state", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package quarry.policies.state

import rego.v1

deny contains violation if {
	input.package
	input.package.state != "installed"

	violation := {
		"message": sprintf("Package %s is in state %s and cannot be autoremoved", [input.package.name, input.package.state]),
		"severity": "error",
		"package": input.package.name,
	}
}`,
	}
}

// bulkRemovalPolicy warns about unusually large removal batches.
func bulkRemovalPolicy() Policy {
	return Policy{
		Name:        "bulk-removal",
		Description: "Warns when a removal batch is unusually large",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"operations"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package quarry.policies.bulk

import rego.v1

max_batch := 50

deny contains violation if {
	input.context
	input.context.batch_size > max_batch

	violation := {
		"message": sprintf("Removal batch of %d packages exceeds %d - please review", [input.context.batch_size, max_batch]),
		"severity": "warning",
	}
}`,
	}
}
