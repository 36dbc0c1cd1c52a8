// Package hostfunc provides ready-made host function bundles for sandboxed
// script contexts.
//
// Script code has no implicit access to system resources. Each capability is
// a [Bundle] the host installs explicitly:
//
//	kv := hostfunc.NewKV()
//	err := hostfunc.InstallAll(ctx, qjs,
//	    kv,
//	    hostfunc.NewClock(),
//	    hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: []string{"api.example.com"}}),
//	)
//
// Installed globals:
//   - KV store: kv_get, kv_set, kv_delete, kv_keys (size limits configurable)
//   - Clock: time_now
//   - HTTP: http_get, restricted to explicitly allowed hosts
//
// All bundles follow the principle of least privilege and carry size limits
// to prevent resource exhaustion.
package hostfunc
