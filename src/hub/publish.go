// Package hub uploads kernel builds to the Hugging Face Hub via the hf CLI
// (installed into the environment by the build flake).
package hub

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/nix"
)

// Publisher wraps hf upload invocations.
type Publisher struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewPublisher creates a Publisher with default output writers.
func NewPublisher(verbose bool) *Publisher {
	return &Publisher{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Publish uploads dir's contents to the repo as a model entry. The token
// authenticates the upload; when empty, ambient hf credentials are used.
func (p *Publisher) Publish(ctx context.Context, dir, repo, token string) error {
	return p.upload(ctx, dir, repo, token)
}

// UploadBuild uploads the build output a copy-only target left under the
// source directory, without any local packaging step. Used when the
// requested target would have published to its hardcoded repository.
func (p *Publisher) UploadBuild(ctx context.Context, sourceDir, repo, token string) error {
	return p.upload(ctx, filepath.Join(sourceDir, nix.ResultLink), repo, token)
}

func (p *Publisher) upload(ctx context.Context, dir, repo, token string) error {
	args := []string{"upload", repo, dir, ".", "--repo-type", "model", "--commit-message", "Publish kernel build"}

	if p.Verbose {
		fmt.Fprintf(p.Stderr, "exec: hf %s\n", strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, "hf", args...)
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr
	cmd.Env = os.Environ()
	if token != "" {
		cmd.Env = append(cmd.Env, "HF_TOKEN="+token)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hf upload to %s failed: %w", repo, err)
	}
	return nil
}
