package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

// InitLogger initializes the zerolog logger with JSON output to stdout and,
// when logFile is set, to that file as well (appended, parent directories
// created). It sets the log level based on the provided string (e.g., "info",
// "debug", "error"). If the file cannot be opened, logging continues on stdout
// only and the error is returned.
func InitLogger(logLevel, logFile string) error {
	var out io.Writer = stdout
	var fileErr error
	if logFile != "" {
		f, err := openLogFile(logFile)
		if err != nil {
			fileErr = fmt.Errorf("opening log file: %w", err)
		} else {
			out = zerolog.MultiLevelWriter(stdout, f)
		}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel) // Default to info if invalid
	}

	log.Info().Msgf("Logger initialized with level: %s", zerolog.GlobalLevel().String())
	return fileErr
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}
