package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wolfeidau/assettrack/internal/apperr"
)

func (g *Globals) out() io.Writer {
	if g.Out != nil {
		return g.Out
	}
	return os.Stdout
}

// readInput returns the content of path, or of the input stream for "-".
func (g *Globals) readInput(path string) ([]byte, error) {
	if path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}

	in := g.In
	if in == nil {
		in = os.Stdin
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}

// decodeInput reads path and decodes it into v, rejecting unknown fields.
func (g *Globals) decodeInput(path string, v any) error {
	data, err := g.readInput(path)
	if err != nil {
		return err
	}
	if err := strictUnmarshal(data, v); err != nil {
		return invalidInput(err)
	}
	return nil
}

func invalidInput(err error) error {
	return apperr.Validation(apperr.CodeValidation, "invalid input: %v", err)
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (g *Globals) printJSON(v any) error {
	enc := json.NewEncoder(g.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// publicError hides internal details from the terminal. The full error has
// already been logged.
func publicError(err error) error {
	code, message := apperr.Public(err)
	return &commandError{code: code, message: message, err: err}
}

type commandError struct {
	code    string
	message string
	err     error
}

func (e *commandError) Error() string {
	return e.code + ": " + e.message
}

func (e *commandError) Unwrap() error {
	return e.err
}

// Code returns the stable error code of a failed command.
func Code(err error) string {
	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		return cmdErr.code
	}
	return apperr.CodeOf(err)
}
