// Package seq models sequencing runs and libraries: run-directory naming,
// instrument classification, library collection years, and read-file pairing.
package seq

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Instrument is the class of sequencer that produced a run.
type Instrument string

const (
	InstrumentMiseq   Instrument = "miseq"
	InstrumentNextseq Instrument = "nextseq"
	InstrumentUnknown Instrument = "unknown"
)

// Run directory basenames look like 220207_M00123_0123_000000000-A7TRG:
// date, instrument, run number, flowcell.
var runNamePattern = regexp.MustCompile(`^\d{6}_[A-Z]+\d+_\d+_[0-9A-Z-]+$`)

// Marker file an instrument (or its uploader) drops when a run is fully
// transferred.
const UploadCompleteMarker = "upload_complete.json"

// Marker file a pipeline invocation drops per library on successful
// completion.
const AnalysisCompleteMarker = "analysis_complete.json"

// Sample sheets sit at the run root, e.g. SampleSheet.csv or
// SampleSheet_v2-0.csv.
var sampleSheetPattern = regexp.MustCompile(`^SampleSheet[a-zA-Z0-9\-_]*\.csv$`)

// Library ids embed a two-digit collection year, e.g. BC21A001A.
var libraryYearPattern = regexp.MustCompile(`BC(\d{2})[A-Z]`)

// IsRunID reports whether the name matches the run-directory naming scheme.
func IsRunID(name string) bool {
	return runNamePattern.MatchString(name)
}

// Classify determines the instrument class from a run id by its instrument
// prefix: M → miseq, VH → nextseq.
func Classify(runID string) Instrument {
	parts := strings.Split(runID, "_")
	if len(parts) < 2 {
		return InstrumentUnknown
	}
	switch {
	case strings.HasPrefix(parts[1], "VH"):
		return InstrumentNextseq
	case strings.HasPrefix(parts[1], "M"):
		return InstrumentMiseq
	default:
		return InstrumentUnknown
	}
}

// LibraryYear extracts the two-digit collection year from a library id.
func LibraryYear(libID string) (string, bool) {
	m := libraryYearPattern.FindStringSubmatch(libID)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// YearPartition returns the tree partition for a library: its embedded year,
// or the current two-digit year when the id carries none.
func YearPartition(libID string, now time.Time) string {
	if year, ok := LibraryYear(libID); ok {
		return year
	}
	return now.Format("06")
}

// RemoveFromEnd strips every trailing occurrence of end from s. Idempotent: a
// second application returns its input unchanged.
func RemoveFromEnd(s, end string) string {
	if end == "" {
		return s
	}
	for strings.HasSuffix(s, end) {
		s = s[:len(s)-len(end)]
	}
	return s
}

// IsSampleSheetName reports whether a filename looks like a run's sample
// sheet.
func IsSampleSheetName(name string) bool {
	return sampleSheetPattern.MatchString(name)
}

// FindSampleSheet returns the first sample sheet among the given paths, in
// the order supplied.
func FindSampleSheet(paths []string) (string, bool) {
	for _, p := range paths {
		if IsSampleSheetName(filepath.Base(p)) {
			return p, true
		}
	}
	return "", false
}

// readFilePattern builds the matcher for a library's demultiplexed read
// files, capturing the read number.
func readFilePattern(libID string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(libID) + `_S\d+_L\d+_R([12])_\d+\.fastq\.gz$`)
}

// FindReadPair locates the R1 and R2 fastq files for a library among the
// given paths. Either return value is empty when the corresponding read file
// is absent.
func FindReadPair(paths []string, libID string) (r1, r2 string) {
	pattern := readFilePattern(libID)
	for _, p := range paths {
		m := pattern.FindStringSubmatch(filepath.Base(p))
		if m == nil {
			continue
		}
		switch m[1] {
		case "1":
			if r1 == "" {
				r1 = p
			}
		case "2":
			if r2 == "" {
				r2 = p
			}
		}
	}
	return r1, r2
}
