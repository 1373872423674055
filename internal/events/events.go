// Package events defines the tagged message union carried on the event bus.
//
// Every message variant carries the time it was produced and identifies the
// library it concerns through LibraryID; the dispatcher groups exclusively
// through that accessor so that no variant can smuggle the id under a
// different field name.
package events

import "time"

// Topic keys the publish/subscribe fan-out on the bus.
type Topic string

const (
	TopicSymlinking Topic = "symlinking"
	TopicAnalysis   Topic = "analysis"
	TopicLogging    Topic = "logging"
)

// Message kinds, used as the dispatch tag.
const (
	KindRunDirectoryFound      = "run-directory-found"
	KindSymlinksCreated        = "symlinks-created"
	KindAnalysisStarted        = "analysis-started"
	KindAnalysisCompleted      = "analysis-completed"
	KindAssemblyCompleted      = "assembly-completed"
	KindMlstCompleted          = "mlst-completed"
	KindPlasmidScreenCompleted = "plasmid-screen-completed"
	KindLogRecord              = "log"
)

// Message is one event payload on the bus.
type Message interface {
	// Kind returns the variant tag.
	Kind() string
	// LibraryID returns the library the message concerns, or "" when the
	// message is not about a single library.
	LibraryID() string
	// OccurredAt returns when the message was produced.
	OccurredAt() time.Time
}

// Envelope pairs a message with the topic it was published on.
type Envelope struct {
	Topic   Topic
	Message Message
}

// RunDirectoryFound announces an eligible run directory discovered by the
// scanner.
type RunDirectoryFound struct {
	RunDir    string
	Timestamp time.Time
}

func NewRunDirectoryFound(runDir string) RunDirectoryFound {
	return RunDirectoryFound{RunDir: runDir, Timestamp: time.Now()}
}

func (m RunDirectoryFound) Kind() string          { return KindRunDirectoryFound }
func (m RunDirectoryFound) LibraryID() string     { return "" }
func (m RunDirectoryFound) OccurredAt() time.Time { return m.Timestamp }

// SymlinkPaths holds the destination link paths for one library's read pair.
type SymlinkPaths struct {
	R1 string
	R2 string
}

// SymlinksCreated announces that both read links for a library exist.
type SymlinksCreated struct {
	ID        string
	Symlinks  SymlinkPaths
	Timestamp time.Time
}

func NewSymlinksCreated(id, r1, r2 string) SymlinksCreated {
	return SymlinksCreated{ID: id, Symlinks: SymlinkPaths{R1: r1, R2: r2}, Timestamp: time.Now()}
}

func (m SymlinksCreated) Kind() string          { return KindSymlinksCreated }
func (m SymlinksCreated) LibraryID() string     { return m.ID }
func (m SymlinksCreated) OccurredAt() time.Time { return m.Timestamp }

// AnalysisStarted marks the start of one external pipeline invocation for a
// library.
type AnalysisStarted struct {
	PipelineName string
	ID           string
	Timestamp    time.Time
}

func NewAnalysisStarted(pipeline, id string) AnalysisStarted {
	return AnalysisStarted{PipelineName: pipeline, ID: id, Timestamp: time.Now()}
}

func (m AnalysisStarted) Kind() string          { return KindAnalysisStarted }
func (m AnalysisStarted) LibraryID() string     { return m.ID }
func (m AnalysisStarted) OccurredAt() time.Time { return m.Timestamp }

// AnalysisCompleted marks the successful end of one external pipeline
// invocation for a library.
type AnalysisCompleted struct {
	PipelineName    string
	PipelineVersion string
	ID              string
	Outdir          string
	Timestamp       time.Time
}

func NewAnalysisCompleted(pipeline, version, id, outdir string) AnalysisCompleted {
	return AnalysisCompleted{
		PipelineName:    pipeline,
		PipelineVersion: version,
		ID:              id,
		Outdir:          outdir,
		Timestamp:       time.Now(),
	}
}

func (m AnalysisCompleted) Kind() string          { return KindAnalysisCompleted }
func (m AnalysisCompleted) LibraryID() string     { return m.ID }
func (m AnalysisCompleted) OccurredAt() time.Time { return m.Timestamp }

// AssemblyCompleted announces an assembled library and feeds the downstream
// typing stages.
type AssemblyCompleted struct {
	ID             string
	R1Path         string
	R2Path         string
	AssemblyPath   string
	AssemblyTool   string
	AnnotationTool string
	Timestamp      time.Time
}

func (m AssemblyCompleted) Kind() string          { return KindAssemblyCompleted }
func (m AssemblyCompleted) LibraryID() string     { return m.ID }
func (m AssemblyCompleted) OccurredAt() time.Time { return m.Timestamp }

// MlstCompleted announces a finished sequence-typing run for a library.
type MlstCompleted struct {
	ID                   string
	MlstSequenceTypePath string
	Timestamp            time.Time
}

func (m MlstCompleted) Kind() string          { return KindMlstCompleted }
func (m MlstCompleted) LibraryID() string     { return m.ID }
func (m MlstCompleted) OccurredAt() time.Time { return m.Timestamp }

// PlasmidScreenCompleted announces a finished plasmid screen for a library.
type PlasmidScreenCompleted struct {
	ID                       string
	ResistanceGeneReportPath string
	Timestamp                time.Time
}

func (m PlasmidScreenCompleted) Kind() string          { return KindPlasmidScreenCompleted }
func (m PlasmidScreenCompleted) LibraryID() string     { return m.ID }
func (m PlasmidScreenCompleted) OccurredAt() time.Time { return m.Timestamp }

// LogRecord carries an operational log line to the logging topic.
type LogRecord struct {
	Level     string
	Payload   string
	Timestamp time.Time
}

func NewLogRecord(level, payload string) LogRecord {
	return LogRecord{Level: level, Payload: payload, Timestamp: time.Now()}
}

func (m LogRecord) Kind() string          { return KindLogRecord }
func (m LogRecord) LibraryID() string     { return "" }
func (m LogRecord) OccurredAt() time.Time { return m.Timestamp }
