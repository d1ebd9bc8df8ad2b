// Package logger provides debug logging for jsonflat.
// When debug mode is enabled via the --debug flag, diagnostic messages
// are printed to stderr so users can follow records through the
// parse, normalize, merge and output stages.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/davecgh/go-spew/spew"
)

var (
	mu      sync.RWMutex
	enabled bool
	verbose bool
	output  io.Writer = os.Stderr

	dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
)

// SetDebug enables or disables debug logging.
func SetDebug(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// IsDebug returns true if debug logging is enabled.
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetVerbose enables or disables progress messages. Debug mode implies
// verbose.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debug prints a message if debug logging is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if enabled {
		fmt.Fprintf(output, "[DEBUG] "+format+"\n", args...)
	}
}

// Info prints a progress message if verbose or debug logging is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose || enabled {
		fmt.Fprintf(output, "[INFO] "+format+"\n", args...)
	}
}

// Warn prints a warning. Warnings are always shown.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	fmt.Fprintf(output, "[WARN] "+format+"\n", args...)
}

// Dump pretty-prints a labelled Go value if debug logging is enabled.
func Dump(label string, v any) {
	mu.RLock()
	defer mu.RUnlock()
	if enabled {
		fmt.Fprintf(output, "[DEBUG] %s:\n%s", label, dumper.Sdump(v))
	}
}
