// Package app wires the DCM codec into a runnable batch tool: it discovers
// input files, parses each one, optionally rewrites it in canonical form,
// and can emit a YAML summary of what it found.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vk/dcmkit/internal/config"
	"github.com/vk/dcmkit/internal/ctxlog"
	"github.com/vk/dcmkit/internal/fsutil"
	"github.com/vk/dcmkit/internal/model"
	"github.com/vk/dcmkit/internal/parser"
	"github.com/vk/dcmkit/internal/writer"
)

// App encapsulates the tool's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
}

// NewApp constructs the application with its own isolated logger.
func NewApp(outW io.Writer, cfg *Config) *App {
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config: cfg,
	}
}

// Summary is the YAML report for one run.
type Summary struct {
	Files []FileSummary `yaml:"files"`
}

// FileSummary describes the parse result of one input file.
type FileSummary struct {
	File      string         `yaml:"file"`
	Functions int            `yaml:"functions"`
	Records   map[string]int `yaml:"records,omitempty"`
	Errors    []string       `yaml:"errors,omitempty"`
}

// Run executes the configured job. It returns an error when any input file
// failed to parse or any output failed to write.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	inputs, outputDir, summaryPath, lenient, err := a.resolveJob(ctx)
	if err != nil {
		return err
	}

	var files []string
	for _, input := range inputs {
		found, err := fsutil.Discover(input, ".dcm")
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		a.logger.Warn("No .dcm files found.", "inputs", inputs)
		return nil
	}
	a.logger.Info("Discovered calibration files.", "count", len(files))

	summary := Summary{}
	failed := 0
	for _, file := range files {
		fileSummary, doc := a.processFile(ctx, file, lenient)
		summary.Files = append(summary.Files, fileSummary)
		if doc == nil {
			failed++
			continue
		}
		if outputDir != "" {
			if err := a.rewrite(doc, outputDir, file); err != nil {
				return err
			}
		}
	}

	if summaryPath != "" {
		if err := writeSummary(summaryPath, summary); err != nil {
			return err
		}
		a.logger.Info("Summary written.", "path", summaryPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to parse", failed, len(files))
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

// resolveJob merges the job file, when present, with the CLI configuration.
// CLI flags win over the job file for every overlapping field.
func (a *App) resolveJob(ctx context.Context) (inputs []string, outputDir, summaryPath string, lenient bool, err error) {
	outputDir = a.config.OutputDir
	summaryPath = a.config.Summary
	lenient = a.config.Lenient

	if a.config.JobPath != "" {
		job, jobErr := config.LoadJob(ctx, a.config.JobPath)
		if jobErr != nil {
			return nil, "", "", false, jobErr
		}
		inputs = job.Inputs
		if outputDir == "" {
			outputDir = job.OutputDir
		}
		if summaryPath == "" {
			summaryPath = job.Summary
		}
		lenient = lenient || job.Lenient
	}
	if a.config.InputPath != "" {
		inputs = append(inputs, a.config.InputPath)
	}
	return inputs, outputDir, summaryPath, lenient, nil
}

// processFile parses one file. A nil document means the file failed in
// strict mode and has nothing usable to rewrite.
func (a *App) processFile(ctx context.Context, path string, lenient bool) (FileSummary, *model.Document) {
	fileSummary := FileSummary{File: path}

	f, err := os.Open(path)
	if err != nil {
		a.logger.Error("Cannot open file.", "path", path, "error", err)
		fileSummary.Errors = append(fileSummary.Errors, err.Error())
		return fileSummary, nil
	}
	defer f.Close()

	var doc *model.Document
	if lenient {
		var errs []error
		doc, errs = parser.ParseLenient(ctx, f)
		for _, e := range errs {
			a.logger.Warn("Parse problem.", "path", path, "error", e)
			fileSummary.Errors = append(fileSummary.Errors, e.Error())
		}
	} else {
		doc, err = parser.Parse(ctx, f)
		if err != nil {
			a.logger.Error("Parse failed.", "path", path, "error", err)
			fileSummary.Errors = append(fileSummary.Errors, err.Error())
			return fileSummary, nil
		}
	}

	fileSummary.Functions = len(doc.Funcs)
	if len(doc.Records) > 0 {
		fileSummary.Records = make(map[string]int)
		for _, r := range doc.Records {
			fileSummary.Records[r.Kind.String()]++
		}
	}
	a.logger.Info("Parsed file.",
		"path", path, "functions", len(doc.Funcs), "records", len(doc.Records))
	return fileSummary, doc
}

// rewrite serializes the document under the output directory, keeping the
// input's base name.
func (a *App) rewrite(doc *model.Document, outputDir, inputPath string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	outPath := filepath.Join(outputDir, filepath.Base(inputPath))
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := writer.Write(f, doc); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	a.logger.Info("Rewrote file.", "path", outPath)
	return nil
}

func writeSummary(path string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
