package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/dcmkit/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("dcmkit", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
dcmkit - Parse, validate and canonically rewrite DCM calibration files.

Usage:
  dcmkit [options] [INPUT_PATH]

Arguments:
  INPUT_PATH
    Path to a single .dcm file or a directory searched recursively.

Options:
`)
		flagSet.PrintDefaults()
	}

	jobFlag := flagSet.String("job", "", "Path to an HCL job file describing a batch run.")
	outFlag := flagSet.String("out", "", "Directory for canonically rewritten files. Empty validates only.")
	summaryFlag := flagSet.String("summary", "", "Path for a YAML summary report.")
	lenientFlag := flagSet.Bool("lenient", false, "Skip broken blocks and collect all errors instead of aborting.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" && *jobFlag == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		InputPath: path,
		JobPath:   *jobFlag,
		OutputDir: *outFlag,
		Summary:   *summaryFlag,
		Lenient:   *lenientFlag,
		LogFormat: logFormat,
		LogLevel:  logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
