package domain

import (
	"testing"

	"bankcore/testutil"
)

// The domain package is the public vocabulary of the module; it must not
// depend on any internal package.
func TestDomainHasNoInternalImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/domain must stay free of internal dependencies")
}
