// Package symlinker materializes discovered runs into the year-partitioned
// symlink tree. For every library of interest in a run it links the R1/R2
// read files under <symlinks-root>/<year>/ and announces the pair with a
// symlinks-created event.
package symlinker

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/phl-lab/autoanalysis/internal/bus"
	"github.com/phl-lab/autoanalysis/internal/config"
	"github.com/phl-lab/autoanalysis/internal/events"
	"github.com/phl-lab/autoanalysis/internal/exclude"
	"github.com/phl-lab/autoanalysis/internal/fsutil"
	"github.com/phl-lab/autoanalysis/internal/progress"
	"github.com/phl-lab/autoanalysis/internal/samplesheet"
	"github.com/phl-lab/autoanalysis/internal/seq"
)

// Materializer consumes run-directory-found events and promotes runs.
type Materializer struct {
	store    *config.Store
	excluded *exclude.Registry
	promoted *progress.Registry
	bus      *bus.Bus
	sheets   samplesheet.Reader

	in     <-chan events.Message
	doneCh chan struct{}
}

func New(store *config.Store, excluded *exclude.Registry, promoted *progress.Registry, b *bus.Bus, sheets samplesheet.Reader, in <-chan events.Message) *Materializer {
	return &Materializer{
		store:    store,
		excluded: excluded,
		promoted: promoted,
		bus:      b,
		sheets:   sheets,
		in:       in,
		doneCh:   make(chan struct{}),
	}
}

// Start consumes the symlinking topic until the upstream channel closes.
func (m *Materializer) Start() {
	go func() {
		defer close(m.doneCh)
		for msg := range m.in {
			found, ok := msg.(events.RunDirectoryFound)
			if !ok {
				continue
			}
			m.Handle(found.RunDir)
		}
	}()
}

// Done is closed when the materializer has drained its upstream channel.
func (m *Materializer) Done() <-chan struct{} { return m.doneCh }

// Handle promotes one run directory. The run is marked promoted whether or
// not materialization succeeds, so the scanner emits each run at most once
// per process lifetime; re-driving a failed run takes operator action.
func (m *Materializer) Handle(runDir string) {
	runID := filepath.Base(runDir)
	defer m.promoted.MarkPromoted(runID)

	cfg := m.store.Current()

	instrument := seq.Classify(runID)
	if instrument == seq.InstrumentUnknown {
		m.logf("error", "[symlinker] run %s: unknown instrument class, skipping", runID)
		return
	}

	sheetPath, ok := seq.FindSampleSheet(fsutil.ListDir(runDir))
	if !ok {
		m.logf("error", "[symlinker] run %s: no sample sheet found, skipping", runID)
		return
	}
	lines, err := samplesheet.ReadLines(sheetPath)
	if err != nil {
		m.logf("error", "[symlinker] run %s: read sample sheet: %v", runID, err)
		return
	}

	libs := m.sheets.LibrariesOfInterest(lines, sheetParams(instrument, cfg.SamplesheetProjectID))
	if len(libs) == 0 {
		m.logf("info", "[symlinker] run %s: no libraries of interest", runID)
		return
	}

	fastqDir, err := locateFastqDir(runDir, instrument)
	if err != nil {
		m.logf("error", "[symlinker] run %s: %v", runID, err)
		return
	}
	fastqs := fsutil.ListDir(fastqDir)

	for _, lib := range libs {
		m.materializeLibrary(cfg, runID, lib, fastqs)
	}
}

// materializeLibrary links one library's read pair and publishes the
// symlinks-created event. Excluded libraries, already-linked libraries, and
// libraries with a missing or partially linked pair publish nothing.
func (m *Materializer) materializeLibrary(cfg *config.Config, runID, lib string, fastqs []string) {
	if m.excluded.ExcludedLibrary(lib) {
		m.logf("info", "[symlinker] library %s: excluded, skipping", lib)
		return
	}

	year := seq.YearPartition(lib, time.Now())
	destR1 := filepath.Join(cfg.FastqSymlinksDir, year, lib+"_R1.fastq.gz")
	destR2 := filepath.Join(cfg.FastqSymlinksDir, year, lib+"_R2.fastq.gz")
	if fsutil.Exists(destR1) && fsutil.Exists(destR2) {
		return
	}

	srcR1, srcR2 := seq.FindReadPair(fastqs, lib)
	if srcR1 == "" || srcR2 == "" {
		m.logf("error", "[symlinker] library %s: read pair not found in run %s, skipping", lib, runID)
		return
	}

	fsutil.Symlink(srcR1, destR1)
	fsutil.Symlink(srcR2, destR2)
	if !fsutil.Exists(destR1) || !fsutil.Exists(destR2) {
		m.logf("error", "[symlinker] library %s: symlink pair incomplete, not publishing", lib)
		return
	}

	created := events.NewSymlinksCreated(lib, destR1, destR2)
	m.bus.Publish(events.TopicSymlinking, created)
	m.bus.Publish(events.TopicAnalysis, created)
	m.bus.Publish(events.TopicLogging, created)
}

func (m *Materializer) logf(level, format string, args ...any) {
	m.bus.Publish(events.TopicLogging, events.NewLogRecord(level, fmt.Sprintf(format, args...)))
}

// sheetParams returns the section tag and column indexes for the
// instrument's sample-sheet layout.
func sheetParams(instrument seq.Instrument, projectID string) samplesheet.Params {
	switch instrument {
	case seq.InstrumentNextseq:
		return samplesheet.Params{Section: "[Cloud_Data]", ProjectID: projectID, ProjectCol: 1, LibraryCol: 0}
	default:
		return samplesheet.Params{Section: "[Data]", ProjectID: projectID, ProjectCol: 9, LibraryCol: 1}
	}
}

// locateFastqDir finds the demultiplexed read directory for a run. NextSeq
// runs keep one directory per demultiplex under Analysis/; the lexically
// last one is the most recent.
func locateFastqDir(runDir string, instrument seq.Instrument) (string, error) {
	switch instrument {
	case seq.InstrumentMiseq:
		return filepath.Join(runDir, "Data", "Intensities", "BaseCalls"), nil
	case seq.InstrumentNextseq:
		analyses := fsutil.ListDir(filepath.Join(runDir, "Analysis"))
		if len(analyses) == 0 {
			return "", fmt.Errorf("no demultiplex output under %s", filepath.Join(runDir, "Analysis"))
		}
		return filepath.Join(analyses[len(analyses)-1], "Data", "fastq"), nil
	default:
		return "", fmt.Errorf("unknown instrument class")
	}
}
