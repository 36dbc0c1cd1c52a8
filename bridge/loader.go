package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/value"
)

// ModuleLoader resolves ES module specifiers to source text.
type ModuleLoader interface {
	Load(name string) (string, error)
}

// LoaderFunc adapts a function to the ModuleLoader interface.
type LoaderFunc func(name string) (string, error)

func (f LoaderFunc) Load(name string) (string, error) { return f(name) }

// FSLoader loads modules from a base directory. Specifiers are resolved
// relative to the base and may not escape it.
type FSLoader struct {
	Base string
}

func NewFSLoader(base string) *FSLoader { return &FSLoader{Base: base} }

func (l *FSLoader) Load(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("module name: %w", value.ErrNulByte)
	}

	path := filepath.Join(l.Base, filepath.FromSlash(name))
	rel, err := filepath.Rel(l.Base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("module %q resolves outside the module root", name)
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load module %q: %w", name, err)
	}
	return string(src), nil
}

// SetModuleLoader installs l as the import resolver. A loader failure makes
// the corresponding guest import fail; it never crashes the runtime.
func (c *Context) SetModuleLoader(ctx context.Context, l ModuleLoader) error {
	c.loader = l
	return c.eng.SetModuleLoaderHook(ctx, func(goCtx context.Context, jsctx engine.ContextPtr, name string) (string, bool) {
		if c.loader == nil {
			return "", false
		}
		src, err := c.loader.Load(name)
		if err != nil {
			return "", false
		}
		return src, true
	})
}

// ExecuteModule loads name through the configured loader and evaluates it as
// an ES module.
func (c *Context) ExecuteModule(ctx context.Context, name string) (value.Value, error) {
	if c.loader == nil {
		return value.Value{}, ErrNoModuleLoader
	}
	src, err := c.loader.Load(name)
	if err != nil {
		return value.Value{}, err
	}
	return c.Eval(ctx, src, WithFilename(name), AsModule())
}
