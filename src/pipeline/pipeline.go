// Package pipeline sequences the build, package, and publish stages.
// Stages run strictly in order; the first failure aborts the rest.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/artifact"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/config"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/nix"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/output"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/pack"
)

// Pipeline drives one run. Construct with New, execute with Run.
type Pipeline struct {
	cfg    *config.Config
	collab Collaborators
	log    io.Writer

	target       string
	manualUpload bool

	// Mutable run state, threaded between stages.
	pathDirs   []string // accumulated search-path entries (append-only)
	resultPath string   // build result; empty until the build stage sets it
	stagedDir  string   // packaged output dir; empty until packaging
	halted     bool     // remaining stages are skipped, run still succeeds
}

// New resolves the effective target and prepares a run.
func New(cfg *config.Config, collab Collaborators, log io.Writer) *Pipeline {
	target, manual := config.SelectTarget(cfg)
	return &Pipeline{
		cfg:          cfg,
		collab:       collab,
		log:          log,
		target:       target,
		manualUpload: manual,
	}
}

// Target returns the effective build target after override rules.
func (p *Pipeline) Target() string { return p.target }

// ManualUpload reports whether the manual upload branch is taken.
func (p *Pipeline) ManualUpload() bool { return p.manualUpload }

// PathDirs returns the search-path entries accumulated so far.
func (p *Pipeline) PathDirs() []string { return p.pathDirs }

type stage struct {
	name string
	run  func(ctx context.Context) (detail string, err error)
}

func (p *Pipeline) stages() []stage {
	return []stage{
		{"environment", p.runEnvironment},
		{"build", p.runBuild},
		{"package", p.runPackage},
		{"distribute", p.runDistribute},
	}
}

// Run executes the stages in order, aborting on the first failure. The
// returned Outcome carries the per-stage record either way.
func (p *Pipeline) Run(ctx context.Context) Outcome {
	out := Outcome{ArtifactName: p.cfg.ArtifactName}

	for _, st := range p.stages() {
		res := StageResult{Name: st.name, Status: StatusSuccess}

		if p.halted {
			res.Status = StatusSkipped
			out.Stages = append(out.Stages, res)
			continue
		}

		output.GroupStart(p.log, st.name)
		start := time.Now()
		detail, err := st.run(ctx)
		res.Elapsed = time.Since(start)
		res.Detail = detail
		output.GroupEnd(p.log)

		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			out.Stages = append(out.Stages, res)
			out.Message = err.Error()
			if out.Message == "" {
				out.Message = "pipeline failed"
			}
			return out
		}
		out.Stages = append(out.Stages, res)
	}

	out.Success = true
	out.ArtifactPath = p.stagedDir
	return out
}

// runEnvironment installs the toolchain and configures the binary cache.
// Both failures are fatal; an empty cache name skips cache setup entirely.
func (p *Pipeline) runEnvironment(ctx context.Context) (string, error) {
	conf := nix.ConfBlock(p.cfg.MaxJobs, p.cfg.Cores, p.cfg.Sandbox, p.cfg.ExtraConfig)

	dirs, err := p.collab.Installer.Install(ctx, conf)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInstall, err)
	}
	for _, d := range dirs {
		p.pathDirs = append(p.pathDirs, d)
		if err := output.AddPath(d); err != nil {
			return "", fmt.Errorf("%w: extending PATH: %v", ErrInstall, err)
		}
	}

	if p.cfg.CacheName == "" {
		return "toolchain installed, no cache", nil
	}
	if err := p.collab.Cache.Use(ctx, p.cfg.CacheName, p.cfg.CacheToken); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCache, err)
	}
	return "toolchain installed, cache " + p.cfg.CacheName, nil
}

// runBuild invokes the build tool and resolves the produced result. In run
// mode a missing result is a valid outcome: the target handled its own
// output, and the remaining stages are skipped.
func (p *Pipeline) runBuild(ctx context.Context) (string, error) {
	spec := nix.BuildSpec{
		Dir:    p.cfg.Source,
		Target: p.target,
		Run:    p.cfg.Mode == config.ModeRun,
		Repo:   p.cfg.HFRepo,
		Token:  p.cfg.HFToken,
	}
	if err := p.collab.Builder.Build(ctx, spec); err != nil {
		return "", err
	}

	result := filepath.Join(p.cfg.Source, nix.ResultLink)
	if _, err := os.Stat(result); err != nil {
		if p.cfg.Mode == config.ModeBuild {
			return "", fmt.Errorf("%w: expected %s", ErrBuildResultMissing, result)
		}
		p.halted = true
		return "target handled its own output", nil
	}

	p.resultPath = result
	return fmt.Sprintf("%s .#%s", p.cfg.Mode, p.target), nil
}

// runPackage copies the result to the name-derived output directory. The
// manual upload branch bypasses packaging altogether.
func (p *Pipeline) runPackage(_ context.Context) (string, error) {
	if p.manualUpload {
		return "bypassed for manual upload", nil
	}

	dest, err := pack.Stage(p.resultPath, p.cfg.ArtifactName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCopy, err)
	}
	p.stagedDir = dest
	return "staged at " + dest, nil
}

// runDistribute uploads and/or publishes the packaged output, or runs the
// dedicated manual upload when the target was rewritten.
func (p *Pipeline) runDistribute(ctx context.Context) (string, error) {
	if p.manualUpload {
		tree, err := filepath.EvalSymlinks(p.resultPath)
		if err != nil {
			return "", fmt.Errorf("%w: resolving %s: %v", ErrUpload, p.resultPath, err)
		}
		if err := p.checkSecrets(ctx, tree); err != nil {
			return "", err
		}
		if err := p.collab.Direct.UploadBuild(ctx, p.cfg.Source, p.cfg.HFRepo, p.cfg.HFToken); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpload, err)
		}
		return "manual upload to " + p.cfg.HFRepo, nil
	}

	var parts []string

	if p.cfg.Upload {
		files, err := artifact.ListFiles(p.stagedDir)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpload, err)
		}
		if err := p.collab.Artifacts.Upload(ctx, p.cfg.ArtifactName, p.stagedDir, files); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUpload, err)
		}
		parts = append(parts, fmt.Sprintf("%d file(s) uploaded", len(files)))
	}

	if p.cfg.Publish {
		switch {
		case p.cfg.HFToken == "" || p.cfg.HFRepo == "":
			// Best-effort: requested without complete credentials.
			output.Warningf(p.log, "publish requested but hf_token or hf_repo is missing; skipping hub publish")
			parts = append(parts, "publish skipped")
		default:
			if err := p.checkSecrets(ctx, p.stagedDir); err != nil {
				return "", err
			}
			if err := p.collab.Hub.Publish(ctx, p.stagedDir, p.cfg.HFRepo, p.cfg.HFToken); err != nil {
				return "", fmt.Errorf("%w: %v", ErrPublish, err)
			}
			parts = append(parts, "published to "+p.cfg.HFRepo)
		}
	}

	if len(parts) == 0 {
		return "nothing to distribute", nil
	}
	return strings.Join(parts, ", "), nil
}

// checkSecrets blocks publishing when the tree carries detectable secrets.
func (p *Pipeline) checkSecrets(ctx context.Context, dir string) error {
	if !p.cfg.Scan || p.collab.Scanner == nil {
		return nil
	}
	findings, err := p.collab.Scanner.ScanDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("secret scan: %w", err)
	}
	if len(findings) == 0 {
		return nil
	}
	for _, f := range findings {
		output.Errorf(p.log, "%s", f)
	}
	return fmt.Errorf("%w: %d finding(s)", ErrSecretLeak, len(findings))
}
