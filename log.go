package statetrack

import (
	"io"

	"github.com/dshills/statetrack/internal/logging"
)

// SetLogOutput sends engine logs at level and above ("debug", "info", "warn"
// or "error") to w. A nil w disables logging, which is the default.
func SetLogOutput(w io.Writer, level string) {
	if w == nil {
		logging.Set(nil)
		return
	}
	cfg := logging.DefaultConfig()
	cfg.Output = w
	cfg.Level = logging.ParseLevel(level)
	logging.Set(logging.New(cfg))
}
