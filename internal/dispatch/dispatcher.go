// Package dispatch drives external pipelines over batches from the analysis
// topic. Each batch is grouped by event kind, partitioned by library
// collection year, and fanned out to the stage pipelines for that kind.
// Partitions run concurrently; the pipelines within one partition run one at
// a time.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phl-lab/autoanalysis/internal/bus"
	"github.com/phl-lab/autoanalysis/internal/config"
	"github.com/phl-lab/autoanalysis/internal/events"
	"github.com/phl-lab/autoanalysis/internal/fsutil"
	"github.com/phl-lab/autoanalysis/internal/nextflow"
	"github.com/phl-lab/autoanalysis/internal/seq"
)

const (
	pipelineRoutineAssembly = "routine-assembly"
	pipelineTaxonAbundance  = "taxon-abundance"
	pipelineMlst            = "mlst-nf"
	pipelinePlasmidScreen   = "plasmid-screen"
)

// Dispatcher consumes analysis batches and invokes stage pipelines.
type Dispatcher struct {
	store  *config.Store
	runner nextflow.Runner
	pub    *asyncPublisher

	in     <-chan []events.Message
	doneCh chan struct{}
}

func New(store *config.Store, b *bus.Bus, runner nextflow.Runner, in <-chan []events.Message) *Dispatcher {
	return &Dispatcher{
		store:  store,
		runner: runner,
		pub:    newAsyncPublisher(b),
		in:     in,
		doneCh: make(chan struct{}),
	}
}

// Start consumes batches until the upstream channel closes, then drains any
// queued publications.
func (d *Dispatcher) Start() {
	go func() {
		defer close(d.doneCh)
		for batch := range d.in {
			d.Dispatch(batch)
		}
		d.pub.close()
	}()
}

// Done is closed when the dispatcher has drained its upstream channel.
func (d *Dispatcher) Done() <-chan struct{} { return d.doneCh }

// Dispatch fans one batch out to its stage pipelines and blocks until every
// invocation has returned.
func (d *Dispatcher) Dispatch(batch []events.Message) {
	cfg := d.store.Current()
	var g errgroup.Group

	for year, part := range partitionByYear(filterKind[events.SymlinksCreated](batch)) {
		year, part := year, part
		g.Go(func() error {
			d.runRoutineAssembly(cfg, year, part)
			d.runTaxonAbundance(cfg, year, part)
			return nil
		})
	}
	for year, part := range partitionByYear(filterKind[events.AssemblyCompleted](batch)) {
		year, part := year, part
		g.Go(func() error {
			d.runMlst(cfg, year, part)
			d.runPlasmidScreen(cfg, year, part)
			return nil
		})
	}
	_ = g.Wait()
}

// filterKind projects the batch onto one message variant, preserving order.
func filterKind[T events.Message](batch []events.Message) []T {
	var out []T
	for _, msg := range batch {
		if m, ok := msg.(T); ok {
			out = append(out, m)
		}
	}
	return out
}

// partitionByYear buckets messages by the collection year of their library.
// Libraries without a parseable year land in the current-year bucket.
func partitionByYear[T events.Message](msgs []T) map[string][]T {
	parts := make(map[string][]T)
	for _, msg := range msgs {
		year := seq.YearPartition(msg.LibraryID(), time.Now())
		parts[year] = append(parts[year], msg)
	}
	return parts
}

func (d *Dispatcher) runRoutineAssembly(cfg *config.Config, year string, part []events.SymlinksCreated) {
	pc := cfg.RoutineAssembly
	rows := make([][]string, 0, len(part))
	for _, m := range part {
		rows = append(rows, []string{m.ID, m.Symlinks.R1, m.Symlinks.R2})
	}
	extra := toolArgs("--assembly_tool", pc.AssemblyTool, "--annotation_tool", pc.AnnotationTool)

	outDir, ok := d.invoke(cfg, pipelineRoutineAssembly, pc.Version, year, libraryIDs(part),
		[]string{"ID", "R1", "R2"}, rows, extra)
	if !ok {
		return
	}

	for _, m := range part {
		libOut := libraryOutDir(outDir, m.ID, pipelineRoutineAssembly, pc.Version)
		if !d.markComplete(libOut, pipelineRoutineAssembly, m.ID) {
			continue
		}
		assembly := locateArtifact(libOut, m.ID+"*.fa",
			filepath.Join(libOut, fmt.Sprintf("%s_%s.fa", m.ID, pc.AssemblyTool)))
		d.publishCompletion(events.AssemblyCompleted{
			ID:             m.ID,
			R1Path:         m.Symlinks.R1,
			R2Path:         m.Symlinks.R2,
			AssemblyPath:   assembly,
			AssemblyTool:   pc.AssemblyTool,
			AnnotationTool: pc.AnnotationTool,
			Timestamp:      time.Now(),
		})
		d.publishCompletion(events.NewAnalysisCompleted(pipelineRoutineAssembly, pc.Version, m.ID, libOut))
	}
}

func (d *Dispatcher) runTaxonAbundance(cfg *config.Config, year string, part []events.SymlinksCreated) {
	pc := cfg.TaxonAbundance
	rows := make([][]string, 0, len(part))
	for _, m := range part {
		rows = append(rows, []string{m.ID, m.Symlinks.R1, m.Symlinks.R2})
	}
	extra := toolArgs("--kraken_db", pc.KrakenDB, "--bracken_db", pc.BrackenDB)

	outDir, ok := d.invoke(cfg, pipelineTaxonAbundance, pc.Version, year, libraryIDs(part),
		[]string{"ID", "R1", "R2"}, rows, extra)
	if !ok {
		return
	}

	for _, m := range part {
		libOut := libraryOutDir(outDir, m.ID, pipelineTaxonAbundance, pc.Version)
		if !d.markComplete(libOut, pipelineTaxonAbundance, m.ID) {
			continue
		}
		d.publishCompletion(events.NewAnalysisCompleted(pipelineTaxonAbundance, pc.Version, m.ID, libOut))
	}
}

func (d *Dispatcher) runMlst(cfg *config.Config, year string, part []events.AssemblyCompleted) {
	pc := cfg.MlstNF
	rows := make([][]string, 0, len(part))
	for _, m := range part {
		rows = append(rows, []string{m.ID, m.AssemblyPath})
	}

	outDir, ok := d.invoke(cfg, pipelineMlst, pc.Version, year, libraryIDs(part),
		[]string{"ID", "ASSEMBLY"}, rows, nil)
	if !ok {
		return
	}

	for _, m := range part {
		libOut := libraryOutDir(outDir, m.ID, pipelineMlst, pc.Version)
		if !d.markComplete(libOut, pipelineMlst, m.ID) {
			continue
		}
		sequenceType := locateArtifact(libOut, m.ID+"*sequence_type*",
			filepath.Join(libOut, m.ID+"_sequence_type.tsv"))
		d.publishCompletion(events.MlstCompleted{
			ID:                   m.ID,
			MlstSequenceTypePath: sequenceType,
			Timestamp:            time.Now(),
		})
		d.publishCompletion(events.NewAnalysisCompleted(pipelineMlst, pc.Version, m.ID, libOut))
	}
}

func (d *Dispatcher) runPlasmidScreen(cfg *config.Config, year string, part []events.AssemblyCompleted) {
	pc := cfg.PlasmidScreen
	rows := make([][]string, 0, len(part))
	for _, m := range part {
		rows = append(rows, []string{m.ID, m.R1Path, m.R2Path, m.AssemblyPath})
	}
	extra := toolArgs("--mob_db", pc.MobSuiteDB)

	outDir, ok := d.invoke(cfg, pipelinePlasmidScreen, pc.Version, year, libraryIDs(part),
		[]string{"ID", "R1", "R2", "ASSEMBLY"}, rows, extra)
	if !ok {
		return
	}

	for _, m := range part {
		libOut := libraryOutDir(outDir, m.ID, pipelinePlasmidScreen, pc.Version)
		if !d.markComplete(libOut, pipelinePlasmidScreen, m.ID) {
			continue
		}
		report := locateArtifact(libOut, m.ID+"*resistance_gene*",
			filepath.Join(libOut, m.ID+"_resistance_gene_report.tsv"))
		d.publishCompletion(events.PlasmidScreenCompleted{
			ID:                       m.ID,
			ResistanceGeneReportPath: report,
			Timestamp:                time.Now(),
		})
		d.publishCompletion(events.NewAnalysisCompleted(pipelinePlasmidScreen, pc.Version, m.ID, libOut))
	}
}

// invoke runs one pipeline over one year partition: private work dir and
// sample sheet, runner call, then cleanup and tree permissions regardless of
// outcome. Returns the year output directory and whether the runner
// succeeded.
func (d *Dispatcher) invoke(cfg *config.Config, pipeline, version, year string, libs []string, header []string, rows [][]string, extra []string) (string, bool) {
	id := uuid.NewString()
	workDir := nextflow.ScratchWorkDir(pipeline, id)

	sheet, err := nextflow.WriteSampleSheet(pipeline, header, rows)
	if err != nil {
		d.logf("error", "[dispatch] %s: %v", pipeline, err)
		return "", false
	}

	outDir := filepath.Join(cfg.AnalysisOutputDir, year)
	if err := fsutil.MkdirTree(outDir, 0o750); err != nil {
		d.logf("error", "[dispatch] %s: create %s: %v", pipeline, outDir, err)
		os.Remove(sheet)
		return "", false
	}

	for _, lib := range libs {
		started := events.NewAnalysisStarted(pipeline, lib)
		d.pub.publish(events.TopicAnalysis, started)
		d.pub.publish(events.TopicLogging, started)
	}

	runErr := d.runner.Run(context.Background(), nextflow.Invocation{
		Pipeline:    pipeline,
		Version:     version,
		WorkDir:     workDir,
		SampleSheet: sheet,
		OutDir:      outDir,
		ExtraArgs:   extra,
	})

	if err := fsutil.ChmodTree(outDir, 0o750, 0o640); err != nil {
		d.logf("error", "[dispatch] %s: chmod %s: %v", pipeline, outDir, err)
	}
	if err := fsutil.RemoveTree(workDir); err != nil {
		d.logf("error", "[dispatch] %s: remove work dir: %v", pipeline, err)
	}
	os.Remove(sheet)

	if runErr != nil {
		d.logf("error", "[dispatch] %s year %s: %v", pipeline, year, runErr)
		return "", false
	}
	d.logf("info", "[dispatch] %s year %s: completed for %d libraries", pipeline, year, len(rows))
	return outDir, true
}

// markComplete drops the per-library completion marker. A library whose
// marker cannot be written gets no completion event.
func (d *Dispatcher) markComplete(libOut, pipeline, lib string) bool {
	marker := struct {
		Timestamp string `json:"timestamp"`
	}{Timestamp: time.Now().Format(time.RFC3339)}
	path := filepath.Join(libOut, seq.AnalysisCompleteMarker)
	if err := fsutil.WriteJSON(path, marker, 0o640); err != nil {
		d.logf("error", "[dispatch] %s library %s: write completion marker: %v", pipeline, lib, err)
		return false
	}
	return true
}

func (d *Dispatcher) publishCompletion(msg events.Message) {
	d.pub.publish(events.TopicAnalysis, msg)
	d.pub.publish(events.TopicLogging, msg)
}

func (d *Dispatcher) logf(level, format string, args ...any) {
	d.pub.publish(events.TopicLogging, events.NewLogRecord(level, fmt.Sprintf(format, args...)))
}

// libraryOutDir is the pipeline's per-library output directory, e.g.
// <root>/<year>/<lib>/mlst-nf-0.3-output.
func libraryOutDir(yearDir, lib, pipeline, version string) string {
	return filepath.Join(yearDir, lib, fmt.Sprintf("%s-%s-output", pipeline, majorMinor(version)))
}

// majorMinor reduces a revision tag to its major.minor digits: v0.4.2 → 0.4.
func majorMinor(version string) string {
	v := strings.TrimPrefix(version, "v")
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}

// locateArtifact globs for a produced file, falling back to the expected
// path when the pipeline did not produce it. Downstream stages tolerate the
// dangling path or fail deterministically.
func locateArtifact(dir, pattern, fallback string) string {
	if matches := fsutil.Glob(dir, pattern); len(matches) > 0 {
		return matches[0]
	}
	return fallback
}

func libraryIDs[T events.Message](part []T) []string {
	ids := make([]string, 0, len(part))
	for _, m := range part {
		ids = append(ids, m.LibraryID())
	}
	return ids
}

// toolArgs builds flag pairs, dropping flags whose value is unset.
func toolArgs(pairs ...string) []string {
	var args []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			args = append(args, pairs[i], pairs[i+1])
		}
	}
	return args
}
