package hostfunc

import (
	"context"

	"github.com/caffeineduck/quickjs/bridge"
)

// Bundle is a set of host functions installable onto a context as globals.
type Bundle interface {
	Install(ctx context.Context, qjs *bridge.Context) error
}

// InstallAll installs every bundle, stopping at the first failure.
func InstallAll(ctx context.Context, qjs *bridge.Context, bundles ...Bundle) error {
	for _, b := range bundles {
		if err := b.Install(ctx, qjs); err != nil {
			return err
		}
	}
	return nil
}
