// Package policy provides Open Policy Agent (OPA) integration for quarry.
//
// This package gates package removal: before orphans are unregistered,
// every removal candidate is evaluated against Rego policies. Built-in
// policies protect the base system, operator-held packages and packages
// that are not fully installed; custom policies can be loaded from files.
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stderr)
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Evaluating removal candidates:
//
//	result, err := eng.EvaluateRemoval(ctx, orphans, &policy.Context{
//	    Holds: []string{"libfoo"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, name := range result.Blocked {
//	    fmt.Printf("kept: %s\n", name)
//	}
//
// Loading custom policies:
//
//	err = eng.LoadPolicies(ctx, []string{"/etc/quarry/policies"})
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. base-system - Prevents removal of core system packages
//  2. held-packages - Prevents removal of operator-held packages
//  3. install-state - Refuses removal of partially installed packages
//  4. bulk-removal - Warns about unusually large removal batches
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files:
//
//	package custom.policies.kernels
//
//	import rego.v1
//
//	deny contains violation if {
//	    startswith(input.package.name, "linux")
//
//	    violation := {
//	        "message": sprintf("Kernel package %s must be removed manually", [input.package.name]),
//	        "severity": "error",
//	        "package": input.package.name,
//	    }
//	}
//
// # Severity Levels
//
// Violations have four severity levels:
//
//   - info: Informational messages
//   - warning: Issues that should be reviewed but don't block removal
//   - error: Issues that block removal of the package
//   - critical: Severe issues that must never be overridden
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return eng.LoadPolicies(ctx, paths)
//	})
//
// # Performance
//
// Policies are compiled once and reused for multiple evaluations. The
// engine uses OPA's PreparedEvalQuery and the loader caches parsed files.
package policy
