package matchering

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	"github.com/shinji-kodama/matchering-bridge/internal/model"
)

// Guard runs a flow and reports whatever the flow did not report itself:
// unexpected errors and panics become a "Script error" message box. When
// even the message box fails the error is written to stderr.
//
// The returned error always has Reported set, or is nil.
func Guard(ui UI, stderr io.Writer, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "=== Matchering FATAL ERROR ===\n%v\n%s", r, debug.Stack())
			err = reportScriptError(ui, stderr, fmt.Errorf("%v", r))
		}
	}()

	if err := fn(); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) && cliErr.Reported {
			return err
		}
		return reportScriptError(ui, stderr, err)
	}
	return nil
}

// reportScriptError shows err and returns it as a reported CLIError,
// keeping the exit code of a CLIError inside it.
func reportScriptError(ui UI, stderr io.Writer, err error) error {
	code := model.ExitGeneralError
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		code = cliErr.Code
	}

	text := "Script error:\n" + err.Error()
	if uiErr := ui.Message(text, ErrorTitle); uiErr != nil {
		fmt.Fprintln(stderr, text)
	}
	return &model.CLIError{Code: code, Message: "script error", Err: err, Reported: true}
}
