package core

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyCoreImportsPersistenceInfra ensures that the storage factory and
// the composition root are the only consumers of the concrete persistence
// backends. Every other package must depend on the domain.Store interface.
func TestOnlyCoreImportsPersistenceInfra(t *testing.T) {
	infraPrefix := "lifecyclecore/internal/infra/persistence"
	allowedPrefixes := []string{
		"lifecyclecore/internal/core",
		"lifecyclecore/internal/infra/persistence",
		"lifecyclecore/cmd/",
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports}
	pkgs, err := packages.Load(cfg, "lifecyclecore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})

	for _, pkg := range pkgs {
		if isAllowed(pkg.PkgPath, allowedPrefixes) {
			continue
		}
		for importPath := range pkg.Imports {
			if isInfraImport(importPath, infraPrefix) {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden import of persistence backend: %s", v)
		}
		t.Fatalf("found %d forbidden imports of persistence backends", len(violations))
	}
}

func isAllowed(pkgPath string, allowed []string) bool {
	for _, prefix := range allowed {
		if pkgPath == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(pkgPath, prefix) {
			return true
		}
	}
	return false
}

func isInfraImport(importPath, prefix string) bool {
	return importPath == prefix || strings.HasPrefix(importPath, prefix+"/")
}
