package core

import (
	"go/types"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestBackendImplementationsGuard ensures only the sanctioned persistence
// packages provide concrete implementations of storage.Backend. Adding a new
// backend requires an explicit update of the allowed list.
func TestBackendImplementationsGuard(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "bankcore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	var backend *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "bankcore/internal/storage" {
			continue
		}
		obj := p.Types.Scope().Lookup("Backend")
		if obj == nil {
			t.Fatal("storage.Backend not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatal("storage.Backend is not an interface")
		}
		backend = iface
	}
	if backend == nil {
		t.Fatal("failed to resolve storage.Backend interface")
	}

	allowed := map[string]struct{}{
		"bankcore/internal/infra/persistence/memory":   {},
		"bankcore/internal/infra/persistence/sqlite":   {},
		"bankcore/internal/infra/persistence/postgres": {},
	}
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			obj := p.Types.Scope().Lookup(name)
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if types.Implements(types.NewPointer(named), backend) {
				if _, ok := allowed[p.PkgPath]; !ok {
					unexpected = append(unexpected, p.PkgPath+"."+name)
				}
			}
		}
	}
	if len(unexpected) > 0 {
		t.Fatalf("unexpected storage.Backend implementations (update the allowed list intentionally when adding a backend):\n%v", unexpected)
	}
}
