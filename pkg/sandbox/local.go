// Package sandbox executes build jobs in isolated, disposable workspaces.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/conveyor-ci/conveyor/pkg/protocol"
)

// Local runs build jobs as subprocesses inside a throwaway temp directory.
// Each job gets a fresh workspace that is removed when the job ends, so no
// state leaks between builds. The job's timeout bounds the wall clock of
// the whole command list.
type Local struct {
	logger *slog.Logger
}

func NewLocal(logger *slog.Logger) *Local {
	return &Local{
		logger: logger.With("module", "local_sandbox"),
	}
}

func (s *Local) Run(ctx context.Context, job protocol.BuildJob) (*protocol.BuildResult, error) {
	workdir, err := os.MkdirTemp("", "conveyor-build-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create build workspace: %w", err)
	}
	defer os.RemoveAll(workdir)

	if err := materialize(workdir, job.Source); err != nil {
		return nil, fmt.Errorf("failed to materialize source tree: %w", err)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	env := os.Environ()
	for k, v := range job.Env {
		env = append(env, k+"="+v)
	}

	var output strings.Builder

	for _, command := range job.Commands {
		s.logger.InfoContext(ctx, "Running build command", "command", command)

		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		cmd.Dir = workdir
		cmd.Env = env

		out, err := cmd.CombinedOutput()
		output.Write(out)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: build exceeded %s", protocol.ErrTimeout, job.Timeout)
		}

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return &protocol.BuildResult{
					ExitCode: exitErr.ExitCode(),
					Output:   output.String(),
				}, nil
			}

			return nil, fmt.Errorf("failed to run command '%s': %w", command, err)
		}
	}

	files, err := collect(workdir, job.BaseDir, job.Files)
	if err != nil {
		return nil, fmt.Errorf("failed to collect build outputs: %w", err)
	}

	return &protocol.BuildResult{
		ExitCode: 0,
		Files:    files,
		Output:   output.String(),
	}, nil
}

func materialize(workdir string, source map[string][]byte) error {
	for name, data := range source {
		target := filepath.Join(workdir, filepath.FromSlash(name))

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
	}

	return nil
}

// collect gathers files under baseDir that match the declared glob, keyed
// by path relative to baseDir.
func collect(workdir, baseDir, pattern string) (map[string][]byte, error) {
	root := filepath.Join(workdir, filepath.FromSlash(baseDir))

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return map[string][]byte{}, nil
	}

	files := make(map[string][]byte)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		if !matchPattern(pattern, rel) {
			return nil
		}

		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		files[rel] = data

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func matchPattern(pattern, rel string) bool {
	if pattern == "" || pattern == "**" || pattern == "**/*" {
		return true
	}

	if ok, _ := path.Match(pattern, rel); ok {
		return true
	}

	// "**/" prefixed patterns match by base name at any depth.
	if strings.HasPrefix(pattern, "**/") {
		ok, _ := path.Match(strings.TrimPrefix(pattern, "**/"), path.Base(rel))

		return ok
	}

	return false
}
