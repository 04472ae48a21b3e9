package policy

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/quarrypkg/quarry/pkg/pkgdb"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func candidate(name string, state pkgdb.PkgState) pkgdb.PackageRecord {
	return pkgdb.PackageRecord{
		Name:      name,
		Version:   "1.0",
		Revision:  "1",
		State:     state,
		Automatic: true,
	}
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func TestNewEngineLoadsBuiltins(t *testing.T) {
	eng := testEngine(t)

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expected := []string{
		"base-system",
		"held-packages",
		"install-state",
		"bulk-removal",
	}

	for _, want := range expected {
		found := false
		for _, p := range policies {
			if p.Name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", want)
		}
	}
}

func TestEvaluateRemovalAllowsPlainOrphans(t *testing.T) {
	eng := testEngine(t)

	result, err := eng.EvaluateRemoval(context.Background(), []pkgdb.PackageRecord{
		candidate("libfoo", pkgdb.StateInstalled),
		candidate("libbar", pkgdb.StateInstalled),
	}, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if len(result.Blocked) != 0 {
		t.Fatalf("Expected no blocked packages, got %v", result.Blocked)
	}
	if !contains(result.Allowed, "libfoo") || !contains(result.Allowed, "libbar") {
		t.Fatalf("Expected both packages allowed, got %v", result.Allowed)
	}
}

func TestEvaluateRemovalBlocksBaseSystem(t *testing.T) {
	eng := testEngine(t)

	result, err := eng.EvaluateRemoval(context.Background(), []pkgdb.PackageRecord{
		candidate("base-system", pkgdb.StateInstalled),
		candidate("libfoo", pkgdb.StateInstalled),
	}, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if !contains(result.Blocked, "base-system") {
		t.Fatalf("Expected base-system blocked, got blocked=%v", result.Blocked)
	}
	if !contains(result.Allowed, "libfoo") {
		t.Fatalf("Expected libfoo allowed, got allowed=%v", result.Allowed)
	}

	foundViolation := false
	for _, v := range result.Violations {
		if v.Policy == "base-system" && v.Package == "base-system" {
			foundViolation = true
			if v.Severity != SeverityCritical {
				t.Errorf("Expected critical severity, got %s", v.Severity)
			}
		}
	}
	if !foundViolation {
		t.Fatal("Expected a base-system violation")
	}
}

func TestEvaluateRemovalRespectsHolds(t *testing.T) {
	eng := testEngine(t)

	result, err := eng.EvaluateRemoval(context.Background(), []pkgdb.PackageRecord{
		candidate("libheld", pkgdb.StateInstalled),
		candidate("libfree", pkgdb.StateInstalled),
	}, &Context{Holds: []string{"libheld"}})
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if !contains(result.Blocked, "libheld") {
		t.Fatalf("Expected held package blocked, got blocked=%v", result.Blocked)
	}
	if !contains(result.Allowed, "libfree") {
		t.Fatalf("Expected unheld package allowed, got allowed=%v", result.Allowed)
	}
}

func TestEvaluateRemovalBlocksPartialState(t *testing.T) {
	eng := testEngine(t)

	result, err := eng.EvaluateRemoval(context.Background(), []pkgdb.PackageRecord{
		candidate("halfway", pkgdb.StateHalfInstalled),
	}, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if !contains(result.Blocked, "halfway") {
		t.Fatalf("Expected half-installed package blocked, got blocked=%v", result.Blocked)
	}
}

func TestEvaluateRemovalEmptyBatch(t *testing.T) {
	eng := testEngine(t)

	result, err := eng.EvaluateRemoval(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(result.Allowed) != 0 || len(result.Blocked) != 0 {
		t.Fatalf("Expected empty result, got allowed=%v blocked=%v", result.Allowed, result.Blocked)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := testEngine(t)

	if err := eng.DisablePolicy("base-system"); err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	result, err := eng.EvaluateRemoval(context.Background(), []pkgdb.PackageRecord{
		candidate("base-system", pkgdb.StateInstalled),
	}, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if len(result.Blocked) != 0 {
		t.Fatalf("Disabled policy still blocked packages: %v", result.Blocked)
	}

	if err := eng.EnablePolicy("base-system"); err != nil {
		t.Fatalf("Failed to re-enable policy: %v", err)
	}

	result, err = eng.EvaluateRemoval(context.Background(), []pkgdb.PackageRecord{
		candidate("base-system", pkgdb.StateInstalled),
	}, nil)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !contains(result.Blocked, "base-system") {
		t.Fatal("Re-enabled policy did not block base-system")
	}

	if err := eng.EnablePolicy("no-such-policy"); err == nil {
		t.Fatal("Expected error for unknown policy")
	}
}

func TestGetPolicy(t *testing.T) {
	eng := testEngine(t)

	p, err := eng.GetPolicy("held-packages")
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}
	if p.Name != "held-packages" {
		t.Fatalf("Got wrong policy: %s", p.Name)
	}

	if _, err := eng.GetPolicy("missing"); err == nil {
		t.Fatal("Expected error for missing policy")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng := testEngine(t)

	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	if len(eng.ListPolicies()) != len(GetBuiltinPolicies()) {
		t.Fatal("Reload did not restore built-in policies")
	}
}
