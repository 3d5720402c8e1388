package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/servoble/pkg/config"
	"golang.org/x/term"
)

// configureLogger starts from the config file logger and applies --log-level,
// then --verbose. Returns an error if --log-level is invalid.
func configureLogger(cmd *cobra.Command, verboseFlagName string, cfg *config.Config) (*logrus.Logger, error) {
	logLevel := cfg.Level()

	// Check --log-level first (takes precedence)
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	if logLevelStr != "" {
		switch logLevelStr {
		case "debug":
			logLevel = logrus.DebugLevel
		case "info":
			logLevel = logrus.InfoLevel
		case "warn":
			logLevel = logrus.WarnLevel
		case "error":
			logLevel = logrus.ErrorLevel
		default:
			return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", logLevelStr)
		}
	} else if verbose, _ := cmd.Flags().GetBool(verboseFlagName); verbose {
		logLevel = logrus.DebugLevel
	}

	out := cmd.ErrOrStderr()
	logger := cfg.NewLogger()
	logger.SetLevel(logLevel)
	logger.SetOutput(out)
	if f, ok := logger.Formatter.(*logrus.TextFormatter); ok {
		f.DisableColors = !isTerminal(out)
	}

	return logger, nil
}

// isTerminal reports whether w is an interactive terminal; log lines piped to
// journald or a file stay free of escape codes
func isTerminal(w interface{}) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
