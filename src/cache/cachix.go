// Package cache configures the binary cache used to pull and push
// precomputed build outputs.
package cache

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Cachix wraps the cachix CLI.
type Cachix struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewCachix creates a Cachix runner with default output writers.
func NewCachix(verbose bool) *Cachix {
	return &Cachix{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Use authenticates (when a token is given) and registers the named cache
// as a substituter. The caller skips this entirely for an empty name.
func (c *Cachix) Use(ctx context.Context, name, token string) error {
	if token != "" {
		if c.Verbose {
			fmt.Fprintln(c.Stderr, "exec: cachix authtoken ********")
		}
		cmd := exec.CommandContext(ctx, "cachix", "authtoken", token)
		cmd.Stdout = c.Stdout
		cmd.Stderr = c.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("cachix authtoken failed: %w", err)
		}
	}

	if c.Verbose {
		fmt.Fprintf(c.Stderr, "exec: cachix use %s\n", name)
	}
	cmd := exec.CommandContext(ctx, "cachix", "use", name)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cachix use %s failed: %w", name, err)
	}
	return nil
}
