package fsutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestListDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"b", "a", "c"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	paths := ListDir(dir)
	if len(paths) != 3 {
		t.Fatalf("ListDir() returned %d entries, want 3", len(paths))
	}
	for i, want := range []string{"a", "b", "c"} {
		if filepath.Base(paths[i]) != want {
			t.Errorf("ListDir()[%d] = %q, want basename %q", i, paths[i], want)
		}
		if !filepath.IsAbs(paths[i]) {
			t.Errorf("ListDir()[%d] = %q, want absolute", i, paths[i])
		}
	}
}

func TestListDirMissing(t *testing.T) {
	t.Parallel()
	if got := ListDir(filepath.Join(t.TempDir(), "nope")); len(got) != 0 {
		t.Errorf("ListDir() on missing dir = %v, want empty", got)
	}
}

func TestExistsAndIsDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if !Exists(file) || !Exists(dir) {
		t.Error("Exists() should be true for file and dir")
	}
	if Exists(filepath.Join(dir, "missing")) {
		t.Error("Exists() should be false for missing path")
	}
	if !IsDir(dir) || IsDir(file) {
		t.Error("IsDir() misclassified")
	}
}

func TestSymlink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.fastq.gz")
	if err := os.WriteFile(src, []byte("reads"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Destination parent does not exist yet.
	dest := filepath.Join(dir, "links", "21", "lib_R1.fastq.gz")
	Symlink(src, dest)
	if !Exists(dest) {
		t.Fatal("Symlink() did not create the link")
	}
	if target, err := os.Readlink(dest); err != nil || target != src {
		t.Errorf("Readlink() = (%q, %v), want %q", target, err, src)
	}

	// Re-linking over an existing destination succeeds.
	Symlink(src, dest)
	if !Exists(dest) {
		t.Error("Symlink() over existing destination removed the link")
	}

	// A pre-existing regular file at the destination is replaced.
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	Symlink(src, plain)
	if target, err := os.Readlink(plain); err != nil || target != src {
		t.Errorf("Symlink() did not replace regular file: (%q, %v)", target, err)
	}
}

func TestSymlinkEmptyArgsNoOp(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dest := filepath.Join(dir, "link")

	Symlink("", dest)
	if Exists(dest) {
		t.Error("Symlink with empty source created a link")
	}
	Symlink(filepath.Join(dir, "src"), "")
	if got := ListDir(dir); len(got) != 0 {
		t.Errorf("Symlink with empty destination created %v", got)
	}
}

func TestGlob(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	for _, name := range []string{"lib_a.fa", "lib_b.fa", "other.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got := Glob(dir, "lib_*.fa")
	if len(got) != 2 {
		t.Errorf("Glob() = %v, want 2 matches", got)
	}
}

func TestChmodTree(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	t.Parallel()
	root := t.TempDir()
	sub := filepath.Join(root, "lib", "out")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "result.tsv")
	if err := os.WriteFile(file, []byte("x"), 0o666); err != nil {
		t.Fatal(err)
	}

	if err := ChmodTree(root, 0o750, 0o640); err != nil {
		t.Fatalf("ChmodTree() error: %v", err)
	}

	dirInfo, err := os.Stat(sub)
	if err != nil {
		t.Fatal(err)
	}
	if got := dirInfo.Mode().Perm(); got != 0o750 {
		t.Errorf("dir mode = %o, want 750", got)
	}
	fileInfo, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if got := fileInfo.Mode().Perm(); got != 0o640 {
		t.Errorf("file mode = %o, want 640", got)
	}
}

func TestSetMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	t.Parallel()
	file := filepath.Join(t.TempDir(), "marker.json")
	if err := os.WriteFile(file, []byte("{}"), 0o666); err != nil {
		t.Fatal(err)
	}
	if err := SetMode(file, 0o640); err != nil {
		t.Fatalf("SetMode() error: %v", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if got := info.Mode().Perm(); got != 0o640 {
		t.Errorf("mode = %o, want 640", got)
	}
	if err := SetMode(filepath.Join(t.TempDir(), "missing"), 0o640); err == nil {
		t.Error("SetMode() on a missing path should error")
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out", "analysis_complete.json")
	marker := map[string]string{"timestamp": "2022-02-07T00:00:00Z"}

	if err := WriteJSON(path, marker, 0o640); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got["timestamp"] != marker["timestamp"] {
		t.Errorf("timestamp = %q, want %q", got["timestamp"], marker["timestamp"])
	}
}
