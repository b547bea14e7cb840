// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a container runtime (docker or podman) and runs
// the tool images the workbench delegates to: the document-structure parser
// and the cheminformatics canonicalizer.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"

	// stderrTail bounds how much container stderr is quoted in errors.
	stderrTail = 512
)

// Mount is a bind mount from the host into the container.
type Mount struct {
	Host      string
	Container string
	ReadOnly  bool
}

func (m Mount) flag() string {
	s := m.Host + ":" + m.Container
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// RunOptions configures one container run.
type RunOptions struct {
	// Args are passed to the image entrypoint.
	Args []string
	// Mounts are added as -v flags.
	Mounts []Mount
	// Network enables networking; runs are isolated with --network none
	// otherwise.
	Network bool
}

// Runtime provides container operations: checking availability, verifying
// images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available(ctx context.Context) bool

	// ImageExists returns nil when the image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes a container, piping stdin and stdout. The container is
	// removed on exit.
	Run(ctx context.Context, image string, opts RunOptions, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdin, stdout, stderr
	return cmd.Run()
}

// imageCheck is the subcommand each runtime uses to test for a local image,
// in detection order.
var imageCheck = []struct {
	bin  string
	args []string
}{
	{binDocker, []string{"image", "inspect"}},
	{binPodman, []string{"image", "exists"}},
}

// runtime implements Runtime by shelling out to bin.
type runtime struct {
	bin        string
	imageCheck []string
	exec       executor
}

func newRuntime(bin string, x executor) *runtime {
	r := &runtime{bin: bin, exec: x}
	for _, c := range imageCheck {
		if c.bin == bin {
			r.imageCheck = c.args
		}
	}
	return r
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(ctx, r.bin, "info") == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), r.imageCheck...), image)
	if err := r.exec.RunSilent(ctx, r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

// Run executes image with opts. A failure quotes the tail of the
// container's stderr.
func (r *runtime) Run(ctx context.Context, image string, opts RunOptions, stdin io.Reader, stdout io.Writer) error {
	var stderr bytes.Buffer
	err := r.exec.RunPiped(ctx, r.bin, runArgs(image, opts), stdin, stdout, &stderr)
	if err == nil {
		return nil
	}
	if msg := tail(stderr.String()); msg != "" {
		return fmt.Errorf("%s run %s: %w: %s", r.bin, image, err, msg)
	}
	return fmt.Errorf("%s run %s: %w", r.bin, image, err)
}

// runArgs builds "run --rm -i [--network none] [-v host:ctr[:ro]]... image args...".
func runArgs(image string, opts RunOptions) []string {
	args := []string{"run", "--rm", "-i"}
	if !opts.Network {
		args = append(args, "--network", "none")
	}
	for _, m := range opts.Mounts {
		args = append(args, "-v", m.flag())
	}
	args = append(args, image)
	return append(args, opts.Args...)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		s = "..." + s[len(s)-stderrTail:]
	}
	return s
}

// DetectRuntime returns docker when it answers, else podman.
func DetectRuntime(ctx context.Context) (Runtime, error) {
	return detectRuntime(ctx, osExecutor{})
}

func detectRuntime(ctx context.Context, x executor) (Runtime, error) {
	for _, c := range imageCheck {
		if r := newRuntime(c.bin, x); r.Available(ctx) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: neither %s nor %s answers", binDocker, binPodman)
}
