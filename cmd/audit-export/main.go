// Command audit-export archives the audit history of one or all entity kinds
// to the configured blob store. Backend and blob selection come from the
// BANKCORE_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bankcore/internal/audit"
	"bankcore/internal/blob"
	"bankcore/internal/core"
	"bankcore/internal/schema"
	"bankcore/pkg/domain"
)

func main() {
	kindFlag := flag.String("kind", "", "entity kind to archive (default: all kinds)")
	flag.Parse()

	if err := run(context.Background(), *kindFlag); err != nil {
		fmt.Fprintln(os.Stderr, "audit-export:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, kind string) error {
	kinds := schema.Kinds
	if kind != "" {
		found := false
		for _, k := range schema.Kinds {
			if k == kind {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown kind %q", kind)
		}
		kinds = []string{kind}
	}

	store, err := core.OpenFromEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	blobs, err := blob.Open(ctx)
	if err != nil {
		return err
	}

	archiver := audit.NewArchiver(store, blobs)
	for _, k := range kinds {
		info, err := archiver.ArchiveLive(ctx, domain.EntityType(k))
		if err != nil {
			return fmt.Errorf("archive %s: %w", k, err)
		}
		fmt.Printf("%s\t%d bytes\t%s\n", info.Key, info.Size, blobs.Driver())
	}
	return nil
}
