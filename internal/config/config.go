// Package config loads the optional HCL job file describing a batch
// conversion run: which inputs to read, where rewritten files go, and how
// strictly to parse.
package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/dcmkit/internal/ctxlog"
)

// Job is the decoded form of a job file, e.g.:
//
//	inputs     = ["calibration/", "extra/engine.dcm"]
//	output_dir = "out"
//	lenient    = true
//	summary    = "report.yaml"
type Job struct {
	Inputs    []string `hcl:"inputs"`
	OutputDir string   `hcl:"output_dir,optional"`
	Lenient   bool     `hcl:"lenient,optional"`
	Summary   string   `hcl:"summary,optional"`
}

// LoadJob parses and decodes a job file.
func LoadJob(ctx context.Context, path string) (*Job, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading job file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, diags)
	}

	var job Job
	if diags := gohcl.DecodeBody(file.Body, nil, &job); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode job file %s: %w", path, diags)
	}

	if len(job.Inputs) == 0 {
		return nil, fmt.Errorf("job file %s declares no inputs", path)
	}

	logger.Debug("Job file loaded.", "inputs", len(job.Inputs), "lenient", job.Lenient)
	return &job, nil
}
