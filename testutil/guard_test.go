package testutil

import "testing"

func TestInfraImportForbidden(t *testing.T) {
	if !InfraImportForbidden("bankcore/internal/infra/persistence/postgres") {
		t.Fatal("expected infra path to be forbidden")
	}
	if InfraImportForbidden("bankcore/internal/index") {
		t.Fatal("expected non-infra path to pass")
	}
}

func TestInternalImportForbidden(t *testing.T) {
	if !InternalImportForbidden("bankcore/internal/core") {
		t.Fatal("expected internal path to be forbidden")
	}
	if InternalImportForbidden("bankcore/pkg/domain") {
		t.Fatal("expected public path to pass")
	}
}

func TestAssertNoDirectImportsPassesOnSelf(t *testing.T) {
	// This package only imports the standard library.
	AssertNoDirectImports(t, ".", InternalImportForbidden, "testutil stays standalone")
}
