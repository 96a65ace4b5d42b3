package unittest

import (
	"flag"
	"io"
	"os"

	"github.com/rs/zerolog"
)

var verbose = flag.Bool("vv", false, "print debug logs of the code under test")

// Logger returns a debug level logger which is silent unless the tests run with -vv.
func Logger() zerolog.Logger {
	var writer io.Writer = io.Discard
	if *verbose {
		writer = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return LoggerWithWriter(writer).With().Timestamp().Logger()
}

// LoggerWithWriter returns a debug level logger writing JSON lines to writer.
func LoggerWithWriter(writer io.Writer) zerolog.Logger {
	return zerolog.New(writer).Level(zerolog.DebugLevel)
}
