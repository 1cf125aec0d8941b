package shlink

import "log"

// logf renders a "[tag] message" line (e.g. "[auth] %d API tokens
// configured", "[storage] initialized at %s"). It is package-private:
// the SDK does not impose a logging framework on its callers, it just
// needs somewhere consistent to put its own diagnostics: debug-mode
// traces, plus the storage errors and callback panics the engine logs
// whether or not debug mode is on.
func logf(tag, format string, args ...any) {
	log.Printf("["+tag+"] "+format, args...)
}
