package samplesheet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func miseqParams() Params {
	return Params{Section: "[Data]", ProjectID: "cpo", ProjectCol: 9, LibraryCol: 1}
}

func TestLibrariesOfInterestMiseq(t *testing.T) {
	t.Parallel()
	lines := []string{
		"[Header]",
		"IEMFileVersion,4",
		"Experiment Name,run1",
		"[Data]",
		"Sample_ID,Sample_Name,Sample_Plate,Sample_Well,I7_Index_ID,index,I5_Index_ID,index2,Sample_Project,Description",
		"",
		"A,BC21A001A,,,,,,,,cpo",
		"B,BC21A002A,,,,,,,,other",
		"C,BC21A003A,,,,,,,,cpo",
	}

	got := LineReader{}.LibrariesOfInterest(lines, miseqParams())
	want := []string{"BC21A001A", "BC21A003A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LibrariesOfInterest() mismatch (-want +got):\n%s", diff)
	}
}

func TestLibrariesOfInterestIgnoresRowsBeforeSection(t *testing.T) {
	t.Parallel()
	lines := []string{
		"A,BC21A009A,,,,,,,,cpo",
		"[Data]",
		"colnames",
		"secondary",
		"A,BC21A001A,,,,,,,,cpo",
	}
	got := LineReader{}.LibrariesOfInterest(lines, miseqParams())
	want := []string{"BC21A001A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows before section leaked in (-want +got):\n%s", diff)
	}
}

func TestLibrariesOfInterestSkipsTwoHeaderLines(t *testing.T) {
	t.Parallel()
	// The two lines after the section tag carry a "cpo" in the project
	// column and must still be skipped.
	lines := []string{
		"[Data]",
		"A,SHOULDSKIP1,,,,,,,,cpo",
		"A,SHOULDSKIP2,,,,,,,,cpo",
		"A,BC21A001A,,,,,,,,cpo",
	}
	got := LineReader{}.LibrariesOfInterest(lines, miseqParams())
	want := []string{"BC21A001A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("header lines not skipped (-want +got):\n%s", diff)
	}
}

func TestLibrariesOfInterestShortRows(t *testing.T) {
	t.Parallel()
	lines := []string{
		"[Data]",
		"colnames",
		"",
		"A,BC21A001A",
		"A,BC21A002A,,,,,,,,cpo",
	}
	// The short row has no column 9, which reads as "", not a panic.
	got := LineReader{}.LibrariesOfInterest(lines, miseqParams())
	want := []string{"BC21A002A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("short rows mishandled (-want +got):\n%s", diff)
	}
}

func TestLibrariesOfInterestStopsAtNextSection(t *testing.T) {
	t.Parallel()
	lines := []string{
		"[Data]",
		"colnames",
		"",
		"A,BC21A001A,,,,,,,,cpo",
		"[Settings]",
		"A,BC21A002A,,,,,,,,cpo",
	}
	got := LineReader{}.LibrariesOfInterest(lines, miseqParams())
	want := []string{"BC21A001A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scan did not stop at next section (-want +got):\n%s", diff)
	}
}

func TestLibrariesOfInterestCloudData(t *testing.T) {
	t.Parallel()
	lines := []string{
		"[Cloud_Data]",
		"Sample_ID,ProjectName",
		"",
		"BC22A002A,cpo",
		"BC22A003A,other",
	}
	p := Params{Section: "[Cloud_Data]", ProjectID: "cpo", ProjectCol: 1, LibraryCol: 0}
	got := LineReader{}.LibrariesOfInterest(lines, p)
	want := []string{"BC22A002A"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cloud data section (-want +got):\n%s", diff)
	}
}

func TestLibrariesOfInterestMissingSection(t *testing.T) {
	t.Parallel()
	lines := []string{"[Header]", "x,y", "A,BC21A001A,,,,,,,,cpo"}
	if got := LineReader{}.LibrariesOfInterest(lines, miseqParams()); got != nil {
		t.Errorf("missing section returned %v, want nil", got)
	}
}

func TestReadLines(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "SampleSheet.csv")
	if err := os.WriteFile(path, []byte("[Data]\r\na,b\nc,d\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines() error: %v", err)
	}
	want := []string{"[Data]", "a,b", "c,d"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadLines() mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadLines(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("ReadLines() on a missing file should error")
	}
}
