package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/caffeineduck/quickjs/bridge"
	"github.com/caffeineduck/quickjs/console"
	"github.com/caffeineduck/quickjs/engine"
	"github.com/caffeineduck/quickjs/hostfunc"
	"github.com/caffeineduck/quickjs/value"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a script and drain its pending jobs",
	Long: `Execute JavaScript in a sandboxed QuickJS context.

Code can be provided via:
  - File argument: qjs run script.js
  - Inline flag: qjs run -c '1+1'
  - Stdin: echo '1+1' | qjs run

After the script returns, pending promise jobs are drained and any
still-unhandled rejections are reported.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Code to execute")
	cmd.Flags().Bool("module", false, "Evaluate the source as an ES module")
	addContextFlags(cmd)
}

func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", 30*time.Second, "Execution timeout")
	cmd.Flags().String("memory", "256mb", "JS heap limit: 1mb, 16mb, 64mb, 256mb, 1gb")
	cmd.Flags().String("module-dir", "", "Directory to resolve ES module imports from")
	cmd.Flags().Bool("kv", false, "Enable key-value store")
	cmd.Flags().StringSlice("allow-host", nil, "Allow HTTP to host (repeatable)")
}

// rejectionLog collects unhandled promise rejections and retracts them when
// the guest attaches a handler later.
type rejectionLog struct {
	mu      sync.Mutex
	qjs     *bridge.Context
	pending map[int32]string
}

func newRejectionLog(qjs *bridge.Context) *rejectionLog {
	return &rejectionLog{qjs: qjs, pending: make(map[int32]string)}
}

func (l *rejectionLog) TrackPromiseRejection(promise, reason value.Value, handled bool) {
	ref, ok := promise.AsOpaque()
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if handled {
		delete(l.pending, ref.Handle())
		return
	}
	msg, err := l.qjs.ToString(context.Background(), reason)
	if err != nil {
		msg = reason.String()
	}
	l.pending[ref.Handle()] = msg
}

// Unhandled returns the rejections still unhandled and clears them, so a
// REPL loop reports each one once.
func (l *rejectionLog) Unhandled() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]string, 0, len(l.pending))
	for _, msg := range l.pending {
		msgs = append(msgs, msg)
	}
	l.pending = make(map[int32]string)
	sort.Strings(msgs)
	return msgs
}

func newScriptContext(cmd *cobra.Command) (*bridge.Context, *rejectionLog, error) {
	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")
	logJSON, _ := cmd.Root().PersistentFlags().GetBool("log-json")
	memory, _ := cmd.Flags().GetString("memory")
	moduleDir, _ := cmd.Flags().GetString("module-dir")
	enableKV, _ := cmd.Flags().GetBool("kv")
	allowedHosts, _ := cmd.Flags().GetStringSlice("allow-host")

	var engOpts []engine.Option
	if !noCache {
		engOpts = append(engOpts, engine.WithDiskCache())
	}

	var backend console.Backend
	if logJSON {
		logger, err := zap.NewProduction()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build logger: %w", err)
		}
		backend = console.NewZapBackend(logger)
	} else {
		backend = console.NewWriterBackend(os.Stdout)
	}

	opts := []bridge.Option{
		bridge.WithEngineOptions(engOpts...),
		bridge.WithConsole(backend),
	}
	if bytes := parseMemoryBytes(memory); bytes > 0 {
		opts = append(opts, bridge.WithMemoryLimit(bytes))
	}
	if moduleDir != "" {
		opts = append(opts, bridge.WithModuleLoader(bridge.NewFSLoader(moduleDir)))
	}

	ctx := context.Background()
	qjs, err := bridge.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	var bundles []hostfunc.Bundle
	bundles = append(bundles, hostfunc.NewClock())
	if enableKV {
		bundles = append(bundles, hostfunc.NewKV())
	}
	if len(allowedHosts) > 0 {
		bundles = append(bundles, hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: allowedHosts}))
	}
	if err := hostfunc.InstallAll(ctx, qjs, bundles...); err != nil {
		qjs.Close(ctx)
		return nil, nil, err
	}

	rejections := newRejectionLog(qjs)
	if err := qjs.SetPromiseRejectionTracker(ctx, rejections); err != nil {
		qjs.Close(ctx)
		return nil, nil, err
	}

	return qjs, rejections, nil
}

func runRun(cmd *cobra.Command, args []string) {
	code, _ := cmd.Flags().GetString("code")
	asModule, _ := cmd.Flags().GetBool("module")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	var source string
	filename := "<inline>"

	switch {
	case code != "":
		source = code
	case len(args) > 0:
		filename = args[0]
		data, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	default:
		// Check if stdin has data (not a terminal)
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			// No piped input, show help
			cmd.Help()
			return
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
		filename = "<stdin>"
		if source == "" {
			cmd.Help()
			return
		}
	}

	qjs, rejections, err := newScriptContext(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer qjs.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	evalOpts := []bridge.EvalOption{bridge.WithFilename(filename)}
	if asModule {
		evalOpts = append(evalOpts, bridge.AsModule())
	}

	result, err := qjs.Eval(ctx, source, evalOpts...)
	if err == nil {
		err = qjs.Drain(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !result.IsUndefined() {
		out, strErr := qjs.ToString(ctx, result)
		if strErr != nil {
			out = result.String()
		}
		fmt.Println(out)
	}
	result.Release()

	if unhandled := rejections.Unhandled(); len(unhandled) > 0 {
		for _, msg := range unhandled {
			fmt.Fprintf(os.Stderr, "Unhandled promise rejection: %s\n", msg)
		}
		os.Exit(1)
	}
}
