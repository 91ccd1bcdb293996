package app

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger returns a logger writing to w at the named level. An unknown
// level falls back to info.
func NewLogger(w io.Writer, prefix, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		Level:           lvl,
		ReportTimestamp: true,
	})
}
