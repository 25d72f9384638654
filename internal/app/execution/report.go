package execution

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/cmdrunner/internal/domain/execution"
)

type batchReport struct {
	BatchID   string         `yaml:"batch_id"`
	CreatedAt string         `yaml:"created_at,omitempty"`
	Summary   reportSummary  `yaml:"summary"`
	Results   []reportResult `yaml:"results"`
}

type reportSummary struct {
	Total       int `yaml:"total"`
	Completed   int `yaml:"completed"`
	TimedOut    int `yaml:"timed_out"`
	SpawnFailed int `yaml:"spawn_failed"`
}

type reportResult struct {
	Command        string `yaml:"command"`
	PID            *int   `yaml:"pid,omitempty"`
	Outcome        string `yaml:"outcome"`
	ExitCode       *int   `yaml:"exit_code,omitempty"`
	ElapsedSeconds int    `yaml:"elapsed_seconds"`
	Output         string `yaml:"output"`
	Error          string `yaml:"error,omitempty"`
}

// WriteReport renders batch as a YAML document on w.
func WriteReport(w io.Writer, batch *execution.ResultBatch) error {
	counts := batch.CountByOutcome()
	rep := batchReport{
		BatchID: batch.ID().String(),
		Summary: reportSummary{
			Total:       batch.Len(),
			Completed:   counts[execution.OutcomeCompleted],
			TimedOut:    counts[execution.OutcomeTimedOut],
			SpawnFailed: counts[execution.OutcomeSpawnFailed],
		},
		Results: make([]reportResult, 0, batch.Len()),
	}

	for _, rec := range batch.Records() {
		res := reportResult{
			Command:        rec.Command(),
			Outcome:        rec.Outcome().String(),
			ElapsedSeconds: rec.ElapsedSeconds(),
			Output:         string(rec.Output()),
			Error:          rec.SpawnError(),
		}
		if pid, ok := rec.ProcessID(); ok {
			res.PID = &pid
		}
		if code, ok := rec.ExitCode(); ok {
			res.ExitCode = &code
		}
		rep.Results = append(rep.Results, res)
	}

	return encodeReport(w, rep)
}

// WritePersistedReport renders a batch read back from storage. Stored results
// carry no process ids.
func WritePersistedReport(w io.Writer, pb *execution.PersistedBatch) error {
	rep := batchReport{
		BatchID:   pb.ID.String(),
		CreatedAt: pb.CreatedAt.UTC().Format(time.RFC3339),
		Summary:   reportSummary{Total: len(pb.Results)},
		Results:   make([]reportResult, 0, len(pb.Results)),
	}

	for _, r := range pb.Results {
		switch r.Outcome {
		case execution.OutcomeCompleted:
			rep.Summary.Completed++
		case execution.OutcomeTimedOut:
			rep.Summary.TimedOut++
		case execution.OutcomeSpawnFailed:
			rep.Summary.SpawnFailed++
		}
		rep.Results = append(rep.Results, reportResult{
			Command:        r.Command,
			Outcome:        r.Outcome.String(),
			ExitCode:       r.ExitCode,
			ElapsedSeconds: r.ElapsedSeconds,
			Output:         string(r.Output),
		})
	}

	return encodeReport(w, rep)
}

func encodeReport(w io.Writer, rep batchReport) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode batch report: %w", err)
	}
	return enc.Close()
}
