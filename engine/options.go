package engine

// Option configures an Engine at creation time.
type Option func(*config)

type config struct {
	wasm             []byte
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32
}

func defaultConfig() config {
	return config{}
}

// WithWASM substitutes a custom shim binary for the embedded one.
func WithWASM(wasm []byte) Option {
	return func(c *config) {
		c.wasm = wasm
	}
}

// WithDiskCache enables a persistent compilation cache for faster startup.
// Optionally provide a custom directory; otherwise uses ~/.cache/quickjs or
// XDG_CACHE_HOME/quickjs.
func WithDiskCache(dir ...string) Option {
	return func(c *config) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimitPages caps the wasm linear memory. Each page is 64KB.
// Zero means the wazero default (4GB). This bounds the whole guest instance;
// use the qjs-level memory limit to bound the JS heap inside it.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16
	MemoryLimit16MB  uint32 = 256
	MemoryLimit64MB  uint32 = 1024
	MemoryLimit256MB uint32 = 4096
	MemoryLimit1GB   uint32 = 16384
)
