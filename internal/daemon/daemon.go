// Package daemon wires the watch/publish/dispatch engine together and owns
// its lifecycle. Stop order matters: scanners first (no new events), then
// the bus, which closes every subscriber channel and lets the materializer,
// batcher, dispatcher and logging consumer drain and exit.
package daemon

import (
	"log"
	"time"

	"github.com/phl-lab/autoanalysis/internal/batch"
	"github.com/phl-lab/autoanalysis/internal/bus"
	"github.com/phl-lab/autoanalysis/internal/config"
	"github.com/phl-lab/autoanalysis/internal/ctl"
	"github.com/phl-lab/autoanalysis/internal/dispatch"
	"github.com/phl-lab/autoanalysis/internal/events"
	"github.com/phl-lab/autoanalysis/internal/exclude"
	"github.com/phl-lab/autoanalysis/internal/logging"
	"github.com/phl-lab/autoanalysis/internal/nextflow"
	"github.com/phl-lab/autoanalysis/internal/progress"
	"github.com/phl-lab/autoanalysis/internal/samplesheet"
	"github.com/phl-lab/autoanalysis/internal/scanner"
	"github.com/phl-lab/autoanalysis/internal/symlinker"
)

// PipelineOrg is the organization the stage pipelines are fetched from by
// the workflow runner.
const PipelineOrg = "phl-lab"

// Daemon is the assembled engine.
type Daemon struct {
	store     *config.Store
	bus       *bus.Bus
	excluded  *exclude.Registry
	promoted  *progress.Registry
	scanner   *scanner.Scanner
	material  *symlinker.Materializer
	dispatch  *dispatch.Dispatcher
	consumer  *logging.Consumer
	ctlServer *ctl.Server
	startedAt time.Time
}

// New assembles a daemon over the given config store.
func New(store *config.Store) *Daemon {
	cfg := store.Current()

	b := bus.New(64)
	promoted := progress.NewRegistry()
	excluded := exclude.NewRegistry(func() ([]string, []string) {
		c := store.Current()
		return c.RunExcludeFiles, c.LibraryExcludeFiles
	})

	symlinkingCh := b.Subscribe(events.TopicSymlinking, 16)
	analysisCh := b.Subscribe(events.TopicAnalysis, 64)
	loggingCh := b.Subscribe(events.TopicLogging, 256)

	runner := &nextflow.CLIRunner{PipelineOrg: PipelineOrg, LogsDir: cfg.NextflowLogsDir}
	batches := batch.Batch(analysisCh, cfg.AnalysisBatchMaxSize, cfg.AnalysisBatchTimeout())

	d := &Daemon{
		store:    store,
		bus:      b,
		excluded: excluded,
		promoted: promoted,
		scanner:  scanner.New(store, excluded, promoted, b),
		material: symlinker.New(store, excluded, promoted, b, samplesheet.LineReader{}, symlinkingCh),
		dispatch: dispatch.New(store, b, runner, batches),
		consumer: logging.New(loggingCh),
	}
	if cfg.REPL {
		d.ctlServer = ctl.NewServer(ctl.SocketPath(), d.status)
	}
	return d
}

// Start brings every component up. The consumer starts first so log records
// flow from the very first scan.
func (d *Daemon) Start() {
	d.startedAt = time.Now()
	d.consumer.Start()
	d.dispatch.Start()
	d.material.Start()
	d.store.StartReloader()
	d.excluded.Start(d.store.Current().ExcludeFilesReloadInterval())
	d.scanner.Start()
	if d.ctlServer != nil {
		if err := d.ctlServer.Start(); err != nil {
			log.Printf("[daemon] status socket disabled: %v", err)
			d.ctlServer = nil
		}
	}
	log.Printf("[daemon] watching %d run directories", len(d.store.Current().RunDirs))
}

// Stop shuts the engine down cooperatively and waits for the consumers to
// drain. A pipeline invocation in flight completes before its worker exits.
func (d *Daemon) Stop() {
	d.scanner.Stop()
	d.excluded.Stop()
	d.store.StopReloader()
	d.bus.Close()
	<-d.material.Done()
	<-d.dispatch.Done()
	<-d.consumer.Done()
	if d.ctlServer != nil {
		d.ctlServer.Stop()
	}
	log.Printf("[daemon] stopped")
}

func (d *Daemon) status() ctl.Status {
	return ctl.Status{
		StartedAt:    d.startedAt,
		UptimeSecs:   int64(time.Since(d.startedAt).Seconds()),
		PromotedRuns: d.promoted.Count(),
		RunDirs:      d.store.Current().RunDirs,
	}
}
