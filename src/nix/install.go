// Package nix wraps the external nix toolchain: the one-shot installer and
// the build/run invocations.
package nix

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Directories the installer places nix binaries in. They are handed back to
// the pipeline so it can extend the search path for later stages.
var profileBinDirs = []string{
	"/nix/var/nix/profiles/default/bin",
}

// Installer performs the privileged one-shot nix installation.
type Installer struct {
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewInstaller creates an Installer with default output writers.
func NewInstaller(verbose bool) *Installer {
	return &Installer{
		Verbose: verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Install runs the nix installer with the given nix.conf block. On success
// it returns the directories that must be appended to the executable search
// path for nix (and tools it installs) to be resolvable.
func (n *Installer) Install(ctx context.Context, conf string) ([]string, error) {
	args := []string{"install", "linux", "--no-confirm", "--init", "none", "--extra-conf", conf}

	if n.Verbose {
		fmt.Fprintf(n.Stderr, "exec: nix-installer %s\n", strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, "nix-installer", args...)
	cmd.Stdout = n.Stdout
	cmd.Stderr = n.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("nix-installer failed: %w", err)
	}

	dirs := append([]string{}, profileBinDirs...)
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home+"/.nix-profile/bin")
	}
	return dirs, nil
}

// ConfBlock assembles the nix.conf block handed to the installer. The
// free-form extra text goes last so it can override any generated line.
func ConfBlock(maxJobs, cores, sandbox, extra string) string {
	lines := []string{
		"max-jobs = " + maxJobs,
		"cores = " + cores,
	}
	lines = append(lines, sandboxDirectives(sandbox)...)
	lines = append(lines,
		"experimental-features = nix-command flakes",
		"trusted-users = root runner",
	)
	if extra != "" {
		lines = append(lines, strings.TrimRight(extra, "\n"))
	}
	return strings.Join(lines, "\n") + "\n"
}

// sandboxDirectives maps the sandbox input onto nix.conf directives.
// Unrecognized values get the conservative default: sandbox forced on with
// fallback disabled.
func sandboxDirectives(mode string) []string {
	switch mode {
	case "relaxed":
		return []string{"sandbox = relaxed"}
	case "true":
		return []string{"sandbox = true"}
	case "false":
		return []string{"sandbox = false"}
	default:
		return []string{"sandbox = true", "sandbox-fallback = false"}
	}
}
