// Package gologger builds the gateway process logger on go-logger.
package gologger

import (
	"fmt"
	"io"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
	FormatPretty  = "pretty"

	rootName = "payments"
)

// New builds the root logger every component resolves its named logger from.
// Level is one of trace, debug, info, warn, error and defaults to info.
// Format is console (logfmt text, the default), json or pretty.
func New(w io.Writer, level string, format string) (*glog.BaseLogger, error) {
	if w == nil {
		w = os.Stderr
	}
	opts := []glog.Option{
		glog.WithWriter(w),
		glog.WithLevel(normalizeLevel(level)),
		glog.WithName(rootName),
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatConsole:
		opts = append(opts, glog.WithLoggerTypeConsole())
	case FormatJSON:
		opts = append(opts, glog.WithLoggerTypeJSON())
	case FormatPretty:
		opts = append(opts, glog.WithLoggerTypePretty())
	default:
		return nil, fmt.Errorf("gologger: unknown log format %q (console, json, pretty)", format)
	}
	return glog.NewLogger(opts...), nil
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return "warn"
	}
	return level
}

var _ glog.LoggerProvider = (*glog.BaseLogger)(nil)
