package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/artifact"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/cache"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/config"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/gitmeta"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/hub"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/manifest"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/nix"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/output"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/pipeline"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/scan"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the build/package/publish pipeline",
	Long: `Run the full pipeline: install the nix toolchain, configure the binary
cache, build the requested flake target, stage the result into
<artifact_name>-output, and distribute it per the upload/publish inputs.`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	w := os.Stdout
	color := output.UseColor()
	start := time.Now()

	inputs := config.FromEnv()
	src := inputs["source"]
	if src == "" {
		src = config.DefaultSource
	}

	cfg, err := config.Load(src, inputs)
	if err != nil {
		output.Errorf(w, "%v", err)
		return err
	}

	// Register secrets with the runner before anything can echo them.
	output.Mask(w, cfg.CacheToken)
	output.Mask(w, cfg.HFToken)

	p := pipeline.New(cfg, buildCollaborators(cfg, w), w)

	printContext(w, cfg, p)

	outcome := p.Run(cmd.Context())

	sum := output.NewSection(w, "Summary", 0, color)
	for _, st := range outcome.Stages {
		sum.SummaryRow(st.Name, st.Status, st.Detail)
	}
	sum.Separator()
	status := pipeline.StatusSuccess
	if !outcome.Success {
		status = pipeline.StatusFailed
	}
	sum.SummaryTotal(time.Since(start), status)
	sum.Close()

	if !outcome.Success {
		output.Errorf(w, "%s", outcome.Message)
		return errors.New(outcome.Message)
	}

	if err := output.SetOutput(w, "kernel-path", outcome.ArtifactPath); err != nil {
		return err
	}
	if err := output.SetOutput(w, "artifact-name", outcome.ArtifactName); err != nil {
		return err
	}
	return nil
}

// buildCollaborators wires the production adapters for a run.
func buildCollaborators(cfg *config.Config, w *os.File) pipeline.Collaborators {
	v := cfg.Verbose || verbose
	collab := pipeline.Collaborators{
		Installer: nix.NewInstaller(v),
		Cache:     cache.NewCachix(v),
		Builder:   nix.NewRunner(v),
		Artifacts: lazyArtifacts{},
		Hub:       hub.NewPublisher(v),
		Direct:    hub.NewPublisher(v),
	}
	if cfg.Scan {
		s, err := scan.New()
		if err != nil {
			output.Warningf(w, "secret scanner unavailable: %v", err)
		} else {
			collab.Scanner = s
		}
	}
	return collab
}

// printContext renders the run context block before the first stage.
func printContext(w *os.File, cfg *config.Config, p *pipeline.Pipeline) {
	target := p.Target()
	if p.ManualUpload() {
		target += " (rewritten from " + cfg.BuildTarget + ")"
	}

	kv := []output.KV{
		{Key: "Target", Value: target},
		{Key: "Mode", Value: cfg.Mode},
		{Key: "Artifact", Value: cfg.ArtifactName},
	}
	if cfg.CacheName != "" {
		kv = append(kv, output.KV{Key: "Cache", Value: cfg.CacheName})
	}
	if cfg.HFRepo != "" {
		kv = append(kv, output.KV{Key: "Repo", Value: cfg.HFRepo})
	}

	meta := gitmeta.Resolve(cfg.Source)
	if meta.SHA != "" {
		kv = append(kv, output.KV{Key: "Commit", Value: meta.SHA})
	}
	if meta.Branch != "" {
		kv = append(kv, output.KV{Key: "Branch", Value: meta.Branch})
	}

	if man, err := manifest.Load(cfg.Source); err != nil {
		output.Warningf(w, "reading kernel manifest: %v", err)
	} else if man != nil {
		if man.General.Name != "" {
			kv = append(kv, output.KV{Key: "Kernel", Value: man.General.Name})
			if man.General.Name != cfg.ArtifactName && cfg.ArtifactName != config.DefaultArtifactName {
				output.Warningf(w, "artifact_name %q differs from manifest kernel name %q", cfg.ArtifactName, man.General.Name)
			}
		}
		if ver, err := man.NormalizedVersion(); err != nil {
			output.Warningf(w, "%v", err)
		} else if ver != "" {
			kv = append(kv, output.KV{Key: "Version", Value: ver})
		}
	}

	output.ContextBlock(w, kv)
}

// lazyArtifacts defers client construction to first use so runs that never
// upload do not require the Actions runtime environment.
type lazyArtifacts struct{}

func (lazyArtifacts) Upload(ctx context.Context, name, root string, files []string) error {
	client, err := artifact.NewClientFromEnv()
	if err != nil {
		return err
	}
	return client.Upload(ctx, name, root, files)
}
