// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShell answers command lines from a fixed set. Binaries listed in
// path resolve; command lines listed in ok exit zero.
type fakeShell struct {
	path  []string
	ok    []string
	piped func(args []string, stdin io.Reader, stdout, stderr io.Writer) error
	argv  []string
}

func has(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeShell) LookPath(file string) (string, error) {
	if has(f.path, file) {
		return "/usr/local/bin/" + file, nil
	}
	return "", errors.New(file + ": not on PATH")
}

func (f *fakeShell) RunSilent(_ context.Context, name string, args ...string) error {
	line := strings.Join(append([]string{name}, args...), " ")
	if has(f.ok, line) {
		return nil
	}
	return errors.New("exit status 1: " + line)
}

func (f *fakeShell) RunPiped(_ context.Context, _ string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f.argv = args
	if f.piped == nil {
		return nil
	}
	return f.piped(args, stdin, stdout, stderr)
}

func TestDetectRuntime(t *testing.T) {
	cases := map[string]struct {
		shell *fakeShell
		want  string
	}{
		"docker preferred": {
			shell: &fakeShell{path: []string{"docker", "podman"}, ok: []string{"docker info", "podman info"}},
			want:  "docker",
		},
		"podman when docker absent": {
			shell: &fakeShell{path: []string{"podman"}, ok: []string{"podman info"}},
			want:  "podman",
		},
		"podman when docker daemon is down": {
			shell: &fakeShell{path: []string{"docker", "podman"}, ok: []string{"podman info"}},
			want:  "podman",
		},
		"none": {shell: &fakeShell{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tc.shell)
			if tc.want == "" {
				assert.ErrorContains(t, err, "no container runtime available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, rt.Name())
		})
	}
}

func TestImageExists_UsesRuntimeSubcommand(t *testing.T) {
	ctx := context.Background()
	sh := &fakeShell{ok: []string{"docker image inspect mineru:2.1", "podman image exists rdkit:2024.03"}}

	assert.NoError(t, newRuntime(binDocker, sh).ImageExists(ctx, "mineru:2.1"))
	assert.NoError(t, newRuntime(binPodman, sh).ImageExists(ctx, "rdkit:2024.03"))

	err := newRuntime(binPodman, sh).ImageExists(ctx, "mineru:2.1")
	assert.ErrorContains(t, err, "image mineru:2.1 not found in podman")
}

func TestRun_IsolatedByDefault(t *testing.T) {
	sh := &fakeShell{piped: func(_ []string, stdin io.Reader, stdout, _ io.Writer) error {
		smiles, _ := io.ReadAll(stdin)
		_, err := io.WriteString(stdout, strings.ToLower(string(smiles)))
		return err
	}}

	var out bytes.Buffer
	opts := RunOptions{
		Args: []string{"canon", "--stdin"},
		Mounts: []Mount{
			{Host: "/srv/papers", Container: "/in", ReadOnly: true},
			{Host: "/srv/document_output", Container: "/out"},
		},
	}
	require.NoError(t, newRuntime(binDocker, sh).Run(context.Background(), "rdkit:2024.03", opts, strings.NewReader("C1=CC=CC=C1"), &out))

	assert.Equal(t, "c1=cc=cc=c1", out.String())
	assert.Equal(t, "run --rm -i --network none -v /srv/papers:/in:ro -v /srv/document_output:/out rdkit:2024.03 canon --stdin",
		strings.Join(sh.argv, " "))
}

func TestRun_NetworkAllowed(t *testing.T) {
	sh := &fakeShell{}
	require.NoError(t, newRuntime(binPodman, sh).Run(context.Background(), "mineru:2.1", RunOptions{Network: true}, nil, io.Discard))
	assert.NotContains(t, sh.argv, "--network")
	assert.Equal(t, "mineru:2.1", sh.argv[len(sh.argv)-1])
}

func TestRun_ErrorCarriesStderrTail(t *testing.T) {
	sh := &fakeShell{piped: func(_ []string, _ io.Reader, _, stderr io.Writer) error {
		io.WriteString(stderr, "\nCUDA device not found\n")
		return errors.New("exit status 137")
	}}
	err := newRuntime(binDocker, sh).Run(context.Background(), "mineru:2.1", RunOptions{}, nil, io.Discard)
	assert.ErrorContains(t, err, "docker run mineru:2.1: exit status 137: CUDA device not found")

	sh.piped = func(_ []string, _ io.Reader, _, _ io.Writer) error { return errors.New("exit status 1") }
	err = newRuntime(binDocker, sh).Run(context.Background(), "mineru:2.1", RunOptions{}, nil, io.Discard)
	assert.EqualError(t, err, "docker run mineru:2.1: exit status 1")
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short \n"))

	got := tail(strings.Repeat("a", 10) + strings.Repeat("b", stderrTail))
	assert.Equal(t, "..."+strings.Repeat("b", stderrTail), got)
}
