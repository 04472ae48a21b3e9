package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLoader() *Loader {
	return NewLoader(zerolog.New(nil).Level(zerolog.Disabled))
}

const sampleRego = `package custom.policies.kernels

import rego.v1

# Kernel packages must be removed manually

deny contains violation if {
	startswith(input.package.name, "linux")
	violation := {
		"message": "kernel packages are removed manually",
		"severity": "error",
		"package": input.package.name,
	}
}`

func TestLoadFromFileRego(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "kernel-hold.rego")

	if err := os.WriteFile(policyFile, []byte(sampleRego), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "kernel-hold" {
		t.Errorf("Expected name 'kernel-hold', got '%s'", policy.Name)
	}
	if policy.Rego != sampleRego {
		t.Error("Rego content doesn't match")
	}
	if !policy.Enabled {
		t.Error("Policy should be enabled by default")
	}
	if policy.Description == "" {
		t.Error("Expected description extracted from comments")
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "hold.json")

	policy := Policy{
		Name:        "site-holds",
		Description: "Site-specific hold policy",
		Rego:        "package site.holds\ndeny contains msg if { false; msg := \"never\" }",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"site"},
	}

	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal policy: %v", err)
	}
	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Name != policy.Name {
		t.Errorf("Expected name '%s', got '%s'", policy.Name, loaded.Name)
	}
	if loaded.Severity != policy.Severity {
		t.Errorf("Expected severity '%s', got '%s'", policy.Severity, loaded.Severity)
	}
}

func TestLoadFromDirectoryRecursive(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "site")
	if err := os.Mkdir(subDir, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	files := map[string]string{
		filepath.Join(tmpDir, "one.rego"):  "package p1\ndeny contains msg if { false; msg := \"x\" }",
		filepath.Join(subDir, "two.rego"):  "package p2\ndeny contains msg if { false; msg := \"x\" }",
		filepath.Join(tmpDir, "README.md"): "# not a policy",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write test file: %v", err)
		}
	}

	loaded, err := loader.loadFromDirectory(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("Failed to load directory: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies (including subdirectory), got %d", len(loaded))
	}
}

func TestLoadFromPaths(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	dir1 := filepath.Join(tmpDir, "dir1")
	if err := os.Mkdir(dir1, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir1, "one.rego"), []byte("package p1\ndeny contains msg if { false; msg := \"x\" }"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}
	file1 := filepath.Join(tmpDir, "two.rego")
	if err := os.WriteFile(file1, []byte("package p2\ndeny contains msg if { false; msg := \"x\" }"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.LoadFromPaths(context.Background(), []string{dir1, file1})
	if err != nil {
		t.Fatalf("Failed to load paths: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("Expected 2 policies, got %d", len(loaded))
	}
}

func TestLoadFromPathsNonExistent(t *testing.T) {
	loader := testLoader()

	if _, err := loader.LoadFromPaths(context.Background(), []string{"/nonexistent/path"}); err == nil {
		t.Error("Expected error for non-existent path")
	}
}

func TestLoadFromFileUnsupportedType(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(policyFile, []byte("not a policy"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(policyFile); err == nil {
		t.Error("Expected error for unsupported file type")
	}
}

func TestLoadFromFileInvalidJSON(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.json")
	if err := os.WriteFile(policyFile, []byte("invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(policyFile); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestExtractDescription(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name: "single line comment",
			content: `# Protects held packages
package test`,
			expected: "Protects held packages",
		},
		{
			name: "multi line comments",
			content: `# Protects held packages
# from accidental removal
package test`,
			expected: "Protects held packages from accidental removal",
		},
		{
			name: "no comments",
			content: `package test
deny contains msg if { false; msg := "x" }`,
			expected: "",
		},
		{
			name: "comments with empty lines",
			content: `# First line
#
# Second line
package test`,
			expected: "First line Second line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractDescription(tt.content)
			if result != tt.expected {
				t.Errorf("Expected description '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestClearCache(t *testing.T) {
	loader := testLoader()

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "test.rego")
	if err := os.WriteFile(policyFile, []byte("package test\ndeny contains msg if { false; msg := \"x\" }"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := loader.loadFromFile(policyFile); err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if len(loader.cache) != 1 {
		t.Errorf("Expected 1 cache entry, got %d", len(loader.cache))
	}

	loader.ClearCache()

	if len(loader.cache) != 0 {
		t.Errorf("Expected 0 cache entries after clear, got %d", len(loader.cache))
	}
}

func TestWatchPoliciesReloadsOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	eng := testEngine(t)

	if err := eng.WatchPolicies(ctx, []string{dir}); err != nil {
		t.Fatalf("WatchPolicies returned error: %v", err)
	}

	policyFile := filepath.Join(dir, "kernel-hold.rego")
	if err := os.WriteFile(policyFile, []byte(sampleRego), 0644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	// Reloads are debounced, so poll until the new policy shows up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := eng.GetPolicy("kernel-hold"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("policy file change was never picked up")
		}
		time.Sleep(50 * time.Millisecond)
	}

	p, err := eng.GetPolicy("kernel-hold")
	if err != nil {
		t.Fatalf("GetPolicy returned error: %v", err)
	}
	if !p.Enabled {
		t.Error("reloaded policy should be enabled")
	}
}
