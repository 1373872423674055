// Package config loads the daemon configuration and holds the current
// snapshot. Snapshots are replaced whole on reload so readers never observe
// a torn value.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Cadence and timeout values are plain
// milliseconds in the file; use the duration accessors in code.
type Config struct {
	RunDirs             []string `yaml:"run-dirs"`
	RunExcludeFiles     []string `yaml:"run-exclude-files"`
	LibraryExcludeFiles []string `yaml:"library-exclude-files"`

	FastqSymlinksDir  string `yaml:"fastq-symlinks-dir"`
	AnalysisOutputDir string `yaml:"analysis-output-dir"`
	NextflowLogsDir   string `yaml:"nextflow-logs-dir"`

	SamplesheetProjectID string `yaml:"samplesheet-project-id"`

	TaxonAbundance  TaxonAbundanceConfig  `yaml:"taxon-abundance-config"`
	RoutineAssembly RoutineAssemblyConfig `yaml:"routine-assembly-config"`
	MlstNF          MlstNFConfig          `yaml:"mlst-nf-config"`
	PlasmidScreen   PlasmidScreenConfig   `yaml:"plasmid-screen-config"`

	SymlinkingScanningIntervalMS int `yaml:"symlinking-scanning-interval-ms"`
	// Recognized for config compatibility; the reactive batcher replaced
	// the polling analysis scanner this used to pace.
	AnalysisScanningIntervalMS int `yaml:"analysis-scanning-interval-ms"`
	ConfigReloadIntervalMS       int `yaml:"config-reload-interval-ms"`
	ExcludeFilesReloadIntervalMS int `yaml:"exclude-files-reload-interval-ms"`

	AnalysisBatchMaxSize   int `yaml:"analysis-batch-max-size"`
	AnalysisBatchTimeoutMS int `yaml:"analysis-batch-timeout-ms"`

	REPL bool `yaml:"repl"`
}

type TaxonAbundanceConfig struct {
	Version   string `yaml:"version"`
	KrakenDB  string `yaml:"kraken-db"`
	BrackenDB string `yaml:"bracken-db"`
}

type RoutineAssemblyConfig struct {
	Version        string `yaml:"version"`
	AssemblyTool   string `yaml:"assembly-tool"`
	AnnotationTool string `yaml:"annotation-tool"`
}

type MlstNFConfig struct {
	Version string `yaml:"version"`
}

type PlasmidScreenConfig struct {
	Version    string `yaml:"version"`
	MobSuiteDB string `yaml:"mob-suite-db"`
}

func DefaultConfig() *Config {
	return &Config{
		SymlinkingScanningIntervalMS: 2000,
		AnalysisScanningIntervalMS:   2000,
		ConfigReloadIntervalMS:       60000,
		ExcludeFilesReloadIntervalMS: 60000,
		AnalysisBatchMaxSize:         10,
		AnalysisBatchTimeoutMS:       10000,
	}
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the daemon cannot run without.
func (c *Config) Validate() error {
	if len(c.RunDirs) == 0 {
		return fmt.Errorf("config: run-dirs must list at least one directory")
	}
	if c.FastqSymlinksDir == "" {
		return fmt.Errorf("config: fastq-symlinks-dir is required")
	}
	if c.AnalysisOutputDir == "" {
		return fmt.Errorf("config: analysis-output-dir is required")
	}
	if c.SamplesheetProjectID == "" {
		return fmt.Errorf("config: samplesheet-project-id is required")
	}
	if c.AnalysisBatchMaxSize < 1 {
		return fmt.Errorf("config: analysis-batch-max-size must be at least 1")
	}
	if c.AnalysisBatchTimeoutMS < 1 {
		return fmt.Errorf("config: analysis-batch-timeout-ms must be at least 1")
	}
	return nil
}

func (c *Config) SymlinkingScanningInterval() time.Duration {
	return time.Duration(c.SymlinkingScanningIntervalMS) * time.Millisecond
}

func (c *Config) ConfigReloadInterval() time.Duration {
	return time.Duration(c.ConfigReloadIntervalMS) * time.Millisecond
}

func (c *Config) ExcludeFilesReloadInterval() time.Duration {
	return time.Duration(c.ExcludeFilesReloadIntervalMS) * time.Millisecond
}

func (c *Config) AnalysisBatchTimeout() time.Duration {
	return time.Duration(c.AnalysisBatchTimeoutMS) * time.Millisecond
}
