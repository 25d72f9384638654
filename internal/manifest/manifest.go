// Package manifest parses command manifest files.
//
// A manifest is line oriented. The first non-blank line must be the
// CommandListHeader. Every following line up to the ValidCommandsHeader names a
// command to execute; every line after it names a whitelisted command. Lines
// are trimmed of surrounding whitespace and blank lines are ignored.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

const (
	// CommandListHeader must be the first meaningful line of every manifest.
	CommandListHeader = "[COMMAND LIST]"

	// ValidCommandsHeader separates the requested commands from the whitelist.
	ValidCommandsHeader = "[VALID COMMANDS]"

	maxLineSize = 1 << 20
)

// ErrMissingHeader is wrapped by FormatError when the manifest does not open
// with CommandListHeader.
var ErrMissingHeader = errors.New("manifest does not start with " + CommandListHeader)

// FormatError reports a manifest that cannot be interpreted.
type FormatError struct {
	Source string
	Line   int
	Err    error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("invalid manifest %s (line %d): %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Source, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Manifest is the parsed content of a manifest file.
type Manifest struct {
	// Requested lists the commands in file order, duplicates included.
	Requested []string
	Whitelist execution.Whitelist
}

// Approved returns the requested commands that pass the whitelist.
func (m *Manifest) Approved() []string {
	return execution.Validate(m.Requested, m.Whitelist)
}

// Parse reads a manifest from r. source names the input in errors.
func Parse(r io.Reader, source string) (*Manifest, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	m := &Manifest{Whitelist: execution.NewWhitelist()}
	var (
		lineNo      int
		sawHeader   bool
		inWhitelist bool
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if !sawHeader {
			if line != CommandListHeader {
				return nil, &FormatError{Source: source, Line: lineNo, Err: ErrMissingHeader}
			}
			sawHeader = true
			continue
		}

		if inWhitelist {
			m.Whitelist[line] = struct{}{}
			continue
		}

		switch line {
		case CommandListHeader:
			// A repeated header inside the command section is ignored.
		case ValidCommandsHeader:
			inWhitelist = true
		default:
			m.Requested = append(m.Requested, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", source, err)
	}
	if !sawHeader {
		return nil, &FormatError{Source: source, Err: ErrMissingHeader}
	}

	return m, nil
}
