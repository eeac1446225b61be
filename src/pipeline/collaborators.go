package pipeline

import (
	"context"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/nix"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/scan"
)

// External tools the pipeline sequences. Each has exactly one production
// adapter; tests substitute doubles to assert on call order and arguments.

// Installer performs the one-shot toolchain installation and reports the
// search-path entries its binaries live under.
type Installer interface {
	Install(ctx context.Context, conf string) ([]string, error)
}

// CacheClient registers a binary cache as a pull/push source.
type CacheClient interface {
	Use(ctx context.Context, name, token string) error
}

// Builder executes one build or run invocation.
type Builder interface {
	Build(ctx context.Context, spec nix.BuildSpec) error
}

// ArtifactUploader sends an enumerated file set to the CI artifact store as
// one named bundle.
type ArtifactUploader interface {
	Upload(ctx context.Context, name, root string, files []string) error
}

// HubPublisher uploads a local directory to a hub repository.
type HubPublisher interface {
	Publish(ctx context.Context, dir, repo, token string) error
}

// DirectUploader pushes the source tree's build output to a repository
// without a local packaging step.
type DirectUploader interface {
	UploadBuild(ctx context.Context, sourceDir, repo, token string) error
}

// SecretScanner inspects a tree for leaked credentials before publishing.
type SecretScanner interface {
	ScanDir(ctx context.Context, root string) ([]scan.Finding, error)
}

// Collaborators bundles the pipeline's external tools.
type Collaborators struct {
	Installer Installer
	Cache     CacheClient
	Builder   Builder
	Artifacts ArtifactUploader
	Hub       HubPublisher
	Direct    DirectUploader
	Scanner   SecretScanner
}
