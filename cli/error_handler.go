package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/wagate/errors"
)

// ErrorHandler prints user-friendly messages for gateway errors.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	red := DefaultTheme.Error
	hint := DefaultTheme.Muted

	gwErr, _ := errors.As(err)
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s configuration file not found\n", red.Render("Error:"))
		fmt.Fprintln(h.Out, hint.Render("Create wagate.yml or pass --config. Run 'wagate config schema' for the format."))

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "%s invalid configuration: %s\n", red.Render("Error:"), errors.Message(err))
		fmt.Fprintln(h.Out, hint.Render("Run 'wagate config validate' to check the file."))

	case errors.ErrCodeStoreCorrupt:
		path := ""
		if gwErr != nil {
			path = fmt.Sprint(gwErr.Details["path"])
		}
		fmt.Fprintf(h.Out, "%s session store %s cannot be decoded\n", red.Render("Error:"), path)
		fmt.Fprintln(h.Out, hint.Render("Fix or remove the file, or set store.recover_corrupt: true to start empty."))

	case errors.ErrCodeStoreUnwritable:
		fmt.Fprintf(h.Out, "%s %s\n", red.Render("Error:"), errors.Message(err))
		fmt.Fprintln(h.Out, hint.Render("Check permissions of the store directory."))

	default:
		fmt.Fprintf(h.Out, "%s %v\n", red.Render("Error:"), err)
	}

	if h.Verbose && gwErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", gwErr.ToJSON())
	}
	return err
}
