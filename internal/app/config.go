package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	InputPath string // .dcm file or directory
	JobPath   string // optional HCL job file

	OutputDir string // rewrite destination; empty means validate only
	Summary   string // YAML report path; empty disables the report
	Lenient   bool

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputPath == "" && cfg.JobPath == "" {
		return nil, errors.New("either an input path or a job file is required")
	}

	return &cfg, nil
}
