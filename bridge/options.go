package bridge

import (
	"github.com/caffeineduck/quickjs/engine"
)

// Option configures a Context at creation time.
type Option func(*contextConfig)

type contextConfig struct {
	engineOpts  []engine.Option
	memoryLimit uint64
	loader      ModuleLoader
	console     consoleBackend
}

func defaultContextConfig() contextConfig {
	return contextConfig{}
}

// WithMemoryLimit caps the guest JS heap in bytes. Zero means unlimited.
func WithMemoryLimit(bytes uint64) Option {
	return func(c *contextConfig) {
		c.memoryLimit = bytes
	}
}

// WithModuleLoader configures module resolution for ES module evaluation.
func WithModuleLoader(l ModuleLoader) Option {
	return func(c *contextConfig) {
		c.loader = l
	}
}

// WithConsole installs a console implementation backed by b.
func WithConsole(b consoleBackend) Option {
	return func(c *contextConfig) {
		c.console = b
	}
}

// WithEngineOptions passes options through to the underlying engine, such as
// engine.WithDiskCache or engine.WithMemoryLimitPages.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *contextConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}
