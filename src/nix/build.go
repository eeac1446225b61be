package nix

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ResultLink is the symlink nix leaves in the source directory after a
// successful build.
const ResultLink = "result"

// RepoEnv carries the hub repository id into the flake so self-publishing
// targets know where to upload.
const RepoEnv = "KERNEL_HUB_REPO"

// BuildSpec describes one nix build or run invocation.
type BuildSpec struct {
	Dir    string // working directory (kernel source)
	Target string // flake target, invoked as .#<Target>
	Run    bool   // nix run instead of nix build
	Repo   string // hub repository forwarded via RepoEnv; empty omits it
	Token  string // hub token forwarded via HF_TOKEN; empty omits it
}

// Runner wraps nix build / nix run invocations.
type Runner struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewRunner creates a Runner with default output writers.
func NewRunner(verbose bool) *Runner {
	return &Runner{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Build executes the flake target in the spec's directory. It does not
// interpret the outcome beyond the process exit status; result resolution
// is the caller's concern.
func (r *Runner) Build(ctx context.Context, spec BuildSpec) error {
	verb := "build"
	if spec.Run {
		verb = "run"
	}

	args := []string{verb, ".#" + spec.Target}
	if r.Verbose {
		args = append(args, "-L")
	}

	if r.Verbose {
		fmt.Fprintf(r.Stderr, "exec: nix %s (in %s)\n", strings.Join(args, " "), spec.Dir)
	}

	cmd := exec.CommandContext(ctx, "nix", args...)
	cmd.Dir = spec.Dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Env = os.Environ()
	if spec.Repo != "" {
		cmd.Env = append(cmd.Env, RepoEnv+"="+spec.Repo)
	}
	if spec.Token != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+spec.Token)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("nix %s .#%s failed: %w", verb, spec.Target, err)
	}
	return nil
}
