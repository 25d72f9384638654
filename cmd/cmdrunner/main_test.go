//go:build unix

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/cmdrunner/internal/manifest"
)

func writeManifest(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "commands.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestRootCmd_DryRunReport(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping shell test in short mode")
	}

	path := writeManifest(t, "[COMMAND LIST]\necho hi\nsleep 30\nuname -z\n[VALID COMMANDS]\necho hi\nsleep 30\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--dry-run", "--deadline=1s", "--kill-grace=1s", "--report=-", path})

	require.NoError(t, cmd.Execute())

	var report struct {
		Summary struct {
			Total     int `yaml:"total"`
			Completed int `yaml:"completed"`
			TimedOut  int `yaml:"timed_out"`
		} `yaml:"summary"`
		Results []struct {
			Command string `yaml:"command"`
			Output  string `yaml:"output"`
		} `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &report))

	assert.Equal(t, 2, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Completed)
	assert.Equal(t, 1, report.Summary.TimedOut)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "echo hi", report.Results[0].Command)
	assert.Equal(t, "hi\n", report.Results[0].Output)
}

func TestRootCmd_BadManifestExitCode(t *testing.T) {
	path := writeManifest(t, "echo hi\n")

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--dry-run", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrMissingHeader)
	assert.Equal(t, exitBadManifest, exitCode(err))
}

func TestRootCmd_BadManifestBeforeDatabase(t *testing.T) {
	path := writeManifest(t, "echo hi\n")

	cmd := newRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	// Nothing listens on port 1; reaching the store would retry for seconds.
	cmd.SetArgs([]string{"--database-url=postgres://u:p@127.0.0.1:1/db?sslmode=disable", path})

	start := time.Now()
	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, exitBadManifest, exitCode(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailure, exitCode(fmt.Errorf("boom")))
	assert.Equal(t, exitBadManifest, exitCode(fmt.Errorf("wrap: %w", &manifest.FormatError{Source: "x", Err: manifest.ErrMissingHeader})))
}
