// Package scanner discovers newly uploaded run directories. Each tick walks
// the configured roots in configured order, each root's listing in lexical
// order, and publishes at most one eligible
// run, so promotion proceeds as a steady trickle rather than a burst.
package scanner

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/phl-lab/autoanalysis/internal/bus"
	"github.com/phl-lab/autoanalysis/internal/config"
	"github.com/phl-lab/autoanalysis/internal/events"
	"github.com/phl-lab/autoanalysis/internal/exclude"
	"github.com/phl-lab/autoanalysis/internal/fsutil"
	"github.com/phl-lab/autoanalysis/internal/progress"
	"github.com/phl-lab/autoanalysis/internal/seq"
)

// Scanner periodically scans for eligible run directories.
type Scanner struct {
	store    *config.Store
	excluded *exclude.Registry
	promoted *progress.Registry
	bus      *bus.Bus

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(store *config.Store, excluded *exclude.Registry, promoted *progress.Registry, b *bus.Bus) *Scanner {
	return &Scanner{
		store:    store,
		excluded: excluded,
		promoted: promoted,
		bus:      b,
	}
}

// Start begins the scan loop. The interval is re-read from the config
// snapshot on every tick so cadence changes apply without a restart.
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run()
}

// Stop requests the scan loop to exit and waits for it. Honoured between
// ticks; a tick in progress completes first.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Scanner) run() {
	defer close(s.doneCh)
	for {
		s.ScanOnce()
		select {
		case <-s.stopCh:
			return
		case <-time.After(s.store.Current().SymlinkingScanningInterval()):
		}
	}
}

// ScanOnce walks the configured roots and publishes the first eligible run
// found, if any. Eligibility is evaluated against the current exclusion and
// promotion snapshots.
func (s *Scanner) ScanOnce() {
	cfg := s.store.Current()
	for _, root := range cfg.RunDirs {
		root = seq.RemoveFromEnd(root, "/")
		for _, candidate := range fsutil.ListDir(root) {
			if !s.eligible(candidate) {
				continue
			}
			s.bus.Publish(events.TopicSymlinking, events.NewRunDirectoryFound(candidate))
			s.bus.Publish(events.TopicLogging,
				events.NewLogRecord("info", fmt.Sprintf("[scanner] found run directory %s", candidate)))
			return
		}
	}
}

func (s *Scanner) eligible(path string) bool {
	runID := filepath.Base(path)
	return fsutil.IsDir(path) &&
		seq.IsRunID(runID) &&
		fsutil.Exists(filepath.Join(path, seq.UploadCompleteMarker)) &&
		!s.excluded.ExcludedRun(runID) &&
		!s.promoted.WasPromoted(runID)
}
