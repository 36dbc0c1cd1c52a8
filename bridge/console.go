package bridge

import (
	"context"

	"github.com/caffeineduck/quickjs/console"
	"github.com/caffeineduck/quickjs/value"
)

// consoleBackend matches console.Backend without importing it into every
// signature; the console package stays the single definition site.
type consoleBackend = console.Backend

// consoleShim wires globalThis.console to the host write callback and then
// removes the callback from the global scope.
const consoleShim = `(function() {
	const write = globalThis.__console_write;
	delete globalThis.__console_write;
	const method = (level) => (...args) => write(level, ...args);
	globalThis.console = {
		trace: method("trace"),
		debug: method("debug"),
		log: method("log"),
		info: method("info"),
		warn: method("warn"),
		error: method("error"),
	};
})();`

// installConsole registers the write callback and evaluates the shim.
func (c *Context) installConsole(ctx context.Context) error {
	err := c.RegisterCallback(ctx, "__console_write", 1, func(args []value.Value) (value.Value, error) {
		if len(args) == 0 || c.console == nil {
			return value.Undefined(), nil
		}
		name, _ := args[0].AsString()
		level, _ := console.ParseLevel(name)
		c.console.Log(level, args[1:])
		return value.Undefined(), nil
	})
	if err != nil {
		return err
	}

	res, err := c.Eval(ctx, consoleShim, WithFilename("console.js"))
	if err != nil {
		return err
	}
	res.Release()
	return nil
}
