// Package nextflow invokes the external workflow runner. Each invocation
// gets a private work directory and sample sheet in the system temp
// location, and a runner log file under the configured logs directory.
package nextflow

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"
)

// Invocation describes one pipeline run.
type Invocation struct {
	// Pipeline is the short pipeline name, e.g. "routine-assembly".
	Pipeline string
	// Version is the revision tag passed to the runner, e.g. "v0.4.2".
	Version string
	// WorkDir is the private scratch directory for this invocation.
	WorkDir string
	// SampleSheet is the generated CSV driving the pipeline.
	SampleSheet string
	// OutDir is where the pipeline writes its per-library outputs.
	OutDir string
	// ExtraArgs carries pipeline-specific flags (tool choices, db paths).
	ExtraArgs []string
}

// Runner executes pipeline invocations. The daemon depends on this seam so
// dispatch logic is testable without a workflow runner on the host.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// CLIRunner shells out to the nextflow binary.
type CLIRunner struct {
	// PipelineOrg prefixes pipeline names into runner targets,
	// e.g. "phl-lab" + "mlst-nf" → "phl-lab/mlst-nf".
	PipelineOrg string
	// LogsDir receives one runner log file per invocation.
	LogsDir string
}

func (r *CLIRunner) Run(ctx context.Context, inv Invocation) error {
	args := []string{
		"run", r.PipelineOrg + "/" + inv.Pipeline,
		"-profile", "conda",
		"-r", inv.Version,
		"-work-dir", inv.WorkDir,
		"--samplesheet_input", inv.SampleSheet,
		"--outdir", inv.OutDir,
	}
	args = append(args, inv.ExtraArgs...)

	cmd := exec.CommandContext(ctx, "nextflow", args...)
	cmd.Env = append(os.Environ(), "NXF_LOG_FILE="+r.logPath(inv.Pipeline, time.Now()))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("nextflow %s exited with status %d", inv.Pipeline, exitErr.ExitCode())
		}
		return fmt.Errorf("nextflow %s: %w", inv.Pipeline, err)
	}
	return nil
}

var nonDigits = regexp.MustCompile(`\D`)

func (r *CLIRunner) logPath(pipeline string, now time.Time) string {
	digits := nonDigits.ReplaceAllString(now.Format(time.RFC3339), "")
	return filepath.Join(r.LogsDir, fmt.Sprintf("%s-%s-nextflow.log", digits, pipeline))
}

// ScratchWorkDir returns the private work directory path for an invocation
// id.
func ScratchWorkDir(pipeline, id string) string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("work-%s-%s", pipeline, id))
}

// WriteSampleSheet writes a temporary CSV sample sheet with the given header
// and rows and returns its path. The caller removes it after the run.
func WriteSampleSheet(pipeline string, header []string, rows [][]string) (string, error) {
	f, err := os.CreateTemp("", pipeline+"-samplesheet-*.csv")
	if err != nil {
		return "", fmt.Errorf("create sample sheet: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return "", err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}
