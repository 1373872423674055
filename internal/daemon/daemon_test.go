package daemon

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/phl-lab/autoanalysis/internal/config"
	"github.com/phl-lab/autoanalysis/internal/ctl"
)

func newStore(t *testing.T, repl bool) *config.Store {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yml")
	cfg := fmt.Sprintf(`
run-dirs:
  - %s
fastq-symlinks-dir: %s
analysis-output-dir: %s
samplesheet-project-id: cpo
symlinking-scanning-interval-ms: 50
analysis-batch-max-size: 2
analysis-batch-timeout-ms: 100
repl: %v
`, t.TempDir(), t.TempDir(), t.TempDir(), repl)
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := config.NewStore(configPath)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	d := New(newStore(t, false))
	d.Start()
	d.Stop()
}

func TestStatusSocket(t *testing.T) {
	t.Parallel()
	d := New(newStore(t, true))
	d.Start()
	defer d.Stop()

	conn, err := net.Dial("unix", ctl.SocketPath())
	if err != nil {
		t.Fatalf("status socket not listening: %v", err)
	}
	conn.Close()
}
