package pipeline

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"adacta/internal/config"
	"adacta/internal/services"
	"adacta/internal/storage"
)

// Executor abstracts external command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, dir string, output io.Writer) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, dir string, output io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir
	cmd.Stdout = output
	cmd.Stderr = output
	return cmd.Run()
}

// CommandTransform runs an external converter inside the bundle directory.
// The tool's combined output is appended to the bundle's log fragment so
// every attempt, failed or not, leaves a trace.
type CommandTransform struct {
	name    string
	binary  string
	args    []string
	timeout time.Duration
	exec    Executor
}

// CommandOption configures a command transform.
type CommandOption func(*CommandTransform)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(executor Executor) CommandOption {
	return func(t *CommandTransform) {
		if executor != nil {
			t.exec = executor
		}
	}
}

// NewTextTransform extracts the document's text with pdftotext.
func NewTextTransform(cfg *config.Config, opts ...CommandOption) *CommandTransform {
	return newCommandTransform(cfg, "text", cfg.Tools.PdftotextBin,
		[]string{storage.FragmentDocument, storage.FragmentText}, opts...)
}

// NewThumbnailTransform renders the first page as a PNG with ImageMagick.
func NewThumbnailTransform(cfg *config.Config, opts ...CommandOption) *CommandTransform {
	return newCommandTransform(cfg, "thumbnail", cfg.Tools.ConvertBin,
		[]string{
			"-thumbnail", fmt.Sprintf("x%d", cfg.Tools.ThumbnailHeight),
			storage.FragmentDocument + "[0]",
			storage.FragmentThumbnail,
		}, opts...)
}

func newCommandTransform(cfg *config.Config, name, binary string, args []string, opts ...CommandOption) *CommandTransform {
	t := &CommandTransform{
		name:    name,
		binary:  binary,
		args:    args,
		timeout: time.Duration(cfg.Tools.CommandTimeout) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the stage name, which doubles as the queue directory name.
func (t *CommandTransform) Name() string {
	return t.name
}

// Process invokes the external tool with the bundle directory as working
// directory. A non-zero exit status or timeout is a stage failure.
func (t *CommandTransform) Process(ctx context.Context, bundle *storage.Bundle) error {
	if !bundle.HasFragment(storage.FragmentDocument) {
		return services.Wrap(services.ErrValidation, t.name, "locate source document",
			fmt.Sprintf("bundle has no %s fragment", storage.FragmentDocument), nil)
	}

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	log, err := bundle.LogWriter()
	if err != nil {
		return services.Wrap(services.ErrStorage, t.name, "open processing log", "", err)
	}
	defer log.Close()

	fmt.Fprintf(log, "[%s] %s: %s %v\n", time.Now().UTC().Format(time.RFC3339), t.name, t.binary, t.args)

	if err := t.exec.Run(runCtx, t.binary, t.args, bundle.Path(), log); err != nil {
		fmt.Fprintf(log, "[%s] %s: failed: %v\n", time.Now().UTC().Format(time.RFC3339), t.name, err)
		if runCtx.Err() == context.DeadlineExceeded {
			return services.Wrap(services.ErrTimeout, t.name, "run "+t.binary, "converter timed out", err)
		}
		return services.Wrap(services.ErrExternalTool, t.name, "run "+t.binary, "", err)
	}
	return nil
}
