package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huggingface/publish-to-the-kernel-hub-action/src/config"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/nix"
	"github.com/huggingface/publish-to-the-kernel-hub-action/src/scan"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

// Test doubles recording every collaborator interaction.

type fakeInstaller struct {
	calls int
	conf  string
	dirs  []string
	err   error
}

func (f *fakeInstaller) Install(_ context.Context, conf string) ([]string, error) {
	f.calls++
	f.conf = conf
	return f.dirs, f.err
}

type fakeCache struct {
	calls int
	name  string
	token string
	err   error
}

func (f *fakeCache) Use(_ context.Context, name, token string) error {
	f.calls++
	f.name = name
	f.token = token
	return f.err
}

type fakeBuilder struct {
	calls      int
	spec       nix.BuildSpec
	makeResult map[string]string // files written under <dir>/result
	err        error
}

func (f *fakeBuilder) Build(_ context.Context, spec nix.BuildSpec) error {
	f.calls++
	f.spec = spec
	if f.err != nil {
		return f.err
	}
	for rel, content := range f.makeResult {
		path := filepath.Join(spec.Dir, nix.ResultLink, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type fakeUploader struct {
	calls int
	name  string
	root  string
	files []string
	err   error
}

func (f *fakeUploader) Upload(_ context.Context, name, root string, files []string) error {
	f.calls++
	f.name = name
	f.root = root
	f.files = files
	return f.err
}

type fakePublisher struct {
	calls int
	dir   string
	repo  string
	token string
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, dir, repo, token string) error {
	f.calls++
	f.dir = dir
	f.repo = repo
	f.token = token
	return f.err
}

type fakeDirect struct {
	calls     int
	sourceDir string
	repo      string
	token     string
	err       error
}

func (f *fakeDirect) UploadBuild(_ context.Context, sourceDir, repo, token string) error {
	f.calls++
	f.sourceDir = sourceDir
	f.repo = repo
	f.token = token
	return f.err
}

type fakeScanner struct {
	calls    int
	root     string
	findings []scan.Finding
	err      error
}

func (f *fakeScanner) ScanDir(_ context.Context, root string) ([]scan.Finding, error) {
	f.calls++
	f.root = root
	return f.findings, f.err
}

// harness wires a full set of doubles around a resolved config.
type harness struct {
	installer *fakeInstaller
	cache     *fakeCache
	builder   *fakeBuilder
	uploader  *fakeUploader
	hub       *fakePublisher
	direct    *fakeDirect
	scanner   *fakeScanner
	log       bytes.Buffer
}

func newHarness() *harness {
	return &harness{
		installer: &fakeInstaller{dirs: []string{"/nix/var/nix/profiles/default/bin"}},
		cache:     &fakeCache{},
		builder:   &fakeBuilder{},
		uploader:  &fakeUploader{},
		hub:       &fakePublisher{},
		direct:    &fakeDirect{},
		scanner:   &fakeScanner{},
	}
}

func (h *harness) pipeline(t *testing.T, in config.Inputs) *Pipeline {
	t.Helper()
	t.Setenv("PATH", os.Getenv("PATH")) // AddPath mutates PATH; restore after
	t.Setenv("GITHUB_PATH", "")         // keep AddPath away from any real runner file

	cfg, err := config.Resolve(in)
	require.NoError(t, err)

	return New(cfg, Collaborators{
		Installer: h.installer,
		Cache:     h.cache,
		Builder:   h.builder,
		Artifacts: h.uploader,
		Hub:       h.hub,
		Direct:    h.direct,
		Scanner:   h.scanner,
	}, &h.log)
}

func TestRunBuildScenario(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin", "lib/ops.py": "py"}

	p := h.pipeline(t, config.Inputs{
		"source":       src,
		"build_target": "ci",
		"mode":         "build",
		"cache_name":   "kernel-builder",
		"cache_token":  "cxtok",
	})

	out := p.Run(context.Background())
	require.True(t, out.Success, "run failed: %s", out.Message)

	assert.Equal(t, "kernel-output", out.ArtifactPath)
	assert.Equal(t, "kernel", out.ArtifactName)

	// Environment: install then cache, conf block generated from config.
	assert.Equal(t, 1, h.installer.calls)
	assert.Contains(t, h.installer.conf, "max-jobs = 8")
	assert.Equal(t, 1, h.cache.calls)
	assert.Equal(t, "kernel-builder", h.cache.name)
	assert.Equal(t, "cxtok", h.cache.token)
	assert.Equal(t, []string{"/nix/var/nix/profiles/default/bin"}, p.PathDirs())

	// Build ran against the requested target in the source dir.
	assert.Equal(t, "ci", h.builder.spec.Target)
	assert.Equal(t, src, h.builder.spec.Dir)
	assert.False(t, h.builder.spec.Run)

	// Upload got the staged tree, enumerated.
	assert.Equal(t, 1, h.uploader.calls)
	assert.Equal(t, "kernel", h.uploader.name)
	assert.Equal(t, "kernel-output", h.uploader.root)
	assert.Equal(t, []string{"kernel.so", filepath.Join("lib", "ops.py")}, h.uploader.files)

	// Publish is opt-in and was not requested.
	assert.Zero(t, h.hub.calls)
	assert.Zero(t, h.direct.calls)

	for _, st := range out.Stages {
		assert.Equal(t, StatusSuccess, st.Status, st.Name)
	}
}

func TestEmptyCacheNameSkipsCacheSetup(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin"}

	p := h.pipeline(t, config.Inputs{"source": src, "upload": "false", "cache_name": config.CacheNameOff})
	out := p.Run(context.Background())

	require.True(t, out.Success, out.Message)
	assert.Zero(t, h.cache.calls, "no cache call for an empty cache name")
}

func TestDefaultCacheIsConfigured(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin"}

	p := h.pipeline(t, config.Inputs{"source": src, "upload": "false"})
	out := p.Run(context.Background())

	require.True(t, out.Success, out.Message)
	assert.Equal(t, 1, h.cache.calls)
	assert.Equal(t, config.DefaultCacheName, h.cache.name)
}

func TestInstallFailureAbortsRun(t *testing.T) {
	h := newHarness()
	h.installer.err = errors.New("curl: connection refused")

	p := h.pipeline(t, config.Inputs{"source": t.TempDir()})
	out := p.Run(context.Background())

	require.False(t, out.Success)
	assert.Zero(t, h.builder.calls, "build must not run after install failure")
	require.NotEmpty(t, out.Stages)
	assert.True(t, errors.Is(out.Stages[0].Err, ErrInstall))
}

func TestCacheFailureAbortsRun(t *testing.T) {
	h := newHarness()
	h.cache.err = errors.New("401 unauthorized")

	p := h.pipeline(t, config.Inputs{"source": t.TempDir(), "cache_name": "kernel-builder"})
	out := p.Run(context.Background())

	require.False(t, out.Success)
	assert.Zero(t, h.builder.calls)
	assert.True(t, errors.Is(out.Stages[0].Err, ErrCache))
}

func TestBuildModeMissingResultIsFatal(t *testing.T) {
	h := newHarness() // builder succeeds but writes no result

	p := h.pipeline(t, config.Inputs{"source": t.TempDir(), "mode": "build"})
	out := p.Run(context.Background())

	require.False(t, out.Success)
	assert.Equal(t, 1, h.builder.calls)
	assert.Zero(t, h.uploader.calls)

	last := out.Stages[len(out.Stages)-1]
	assert.Equal(t, "build", last.Name)
	assert.True(t, errors.Is(last.Err, ErrBuildResultMissing))
}

func TestRunModeMissingResultShortCircuits(t *testing.T) {
	h := newHarness() // no result written: the target handled its own output

	p := h.pipeline(t, config.Inputs{"source": t.TempDir(), "mode": "run"})
	out := p.Run(context.Background())

	require.True(t, out.Success, out.Message)
	assert.Empty(t, out.ArtifactPath)
	assert.Equal(t, "kernel", out.ArtifactName)
	assert.Zero(t, h.uploader.calls)
	assert.Zero(t, h.hub.calls)

	byName := map[string]StageResult{}
	for _, st := range out.Stages {
		byName[st.Name] = st
	}
	assert.Equal(t, StatusSuccess, byName["build"].Status)
	assert.Equal(t, StatusSkipped, byName["package"].Status)
	assert.Equal(t, StatusSkipped, byName["distribute"].Status)
}

func TestRunModeForwardsRepoToBuilder(t *testing.T) {
	src := t.TempDir()
	h := newHarness()

	p := h.pipeline(t, config.Inputs{
		"source":   src,
		"mode":     "run",
		"hf_repo":  "org/model",
		"hf_token": "hftok",
	})
	out := p.Run(context.Background())

	require.True(t, out.Success, out.Message)
	assert.True(t, h.builder.spec.Run)
	assert.Equal(t, "org/model", h.builder.spec.Repo)
	assert.Equal(t, "hftok", h.builder.spec.Token)
}

func TestManualUploadBranch(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin"}

	p := h.pipeline(t, config.Inputs{
		"source":       src,
		"build_target": config.TargetBuildAndUpload,
		"hf_repo":      "org/model",
		"hf_token":     "hftok",
	})

	require.True(t, p.ManualUpload())
	assert.Equal(t, config.TargetBuildAndCopy, p.Target())

	out := p.Run(context.Background())
	require.True(t, out.Success, out.Message)

	// The rewritten target was what actually got built.
	assert.Equal(t, config.TargetBuildAndCopy, h.builder.spec.Target)

	// Packaging and the generic upload are bypassed; the dedicated
	// uploader runs against the source dir and the user's repo.
	assert.Zero(t, h.uploader.calls)
	assert.Equal(t, 1, h.direct.calls)
	assert.Equal(t, src, h.direct.sourceDir)
	assert.Equal(t, "org/model", h.direct.repo)
	assert.Equal(t, "hftok", h.direct.token, "configured token authenticates the direct upload")

	// No local copy was made, so the path output is empty.
	assert.Empty(t, out.ArtifactPath)
	assert.Equal(t, "kernel", out.ArtifactName)
}

func TestPublishWithoutCredentialsIsDowngraded(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin"}

	p := h.pipeline(t, config.Inputs{
		"source":  src,
		"upload":  "false",
		"publish": "true",
		"hf_repo": "org/model", // token missing
	})
	out := p.Run(context.Background())

	require.True(t, out.Success, "missing credentials must not fail the run")
	assert.Zero(t, h.hub.calls)
	assert.Contains(t, h.log.String(), "skipping hub publish")
}

func TestPublishUploadsStagedTree(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin"}

	p := h.pipeline(t, config.Inputs{
		"source":   src,
		"upload":   "false",
		"publish":  "true",
		"hf_repo":  "org/model",
		"hf_token": "hftok",
	})
	out := p.Run(context.Background())

	require.True(t, out.Success, out.Message)
	assert.Equal(t, 1, h.hub.calls)
	assert.Equal(t, "kernel-output", h.hub.dir)
	assert.Equal(t, "org/model", h.hub.repo)
	assert.Equal(t, "hftok", h.hub.token)

	// The scanner saw the tree before the publisher did.
	assert.Equal(t, 1, h.scanner.calls)
	assert.Equal(t, "kernel-output", h.scanner.root)
}

func TestSecretFindingsBlockPublish(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"config.py": "token = hf_abc"}
	h.scanner.findings = []scan.Finding{{File: "config.py", Line: 1, RuleID: "huggingface-token", Message: "Hugging Face token"}}

	p := h.pipeline(t, config.Inputs{
		"source":   src,
		"upload":   "false",
		"publish":  "true",
		"hf_repo":  "org/model",
		"hf_token": "hftok",
	})
	out := p.Run(context.Background())

	require.False(t, out.Success)
	assert.Zero(t, h.hub.calls, "publish must not run after a leak finding")
	last := out.Stages[len(out.Stages)-1]
	assert.True(t, errors.Is(last.Err, ErrSecretLeak))
}

func TestUploadFailureIsFatal(t *testing.T) {
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	h.builder.makeResult = map[string]string{"kernel.so": "bin"}
	h.uploader.err = errors.New("503 service unavailable")

	p := h.pipeline(t, config.Inputs{"source": src})
	out := p.Run(context.Background())

	require.False(t, out.Success)
	last := out.Stages[len(out.Stages)-1]
	assert.True(t, errors.Is(last.Err, ErrUpload))
}

func TestPackagingFailureIsFatal(t *testing.T) {
	// The result tree holds a dangling symlink, so dereferencing fails.
	src := t.TempDir()
	chdir(t, t.TempDir())

	h := newHarness()
	resultDir := filepath.Join(src, "result")
	require.NoError(t, os.MkdirAll(resultDir, 0o755))
	require.NoError(t, os.Symlink(filepath.Join(src, "gone"), filepath.Join(resultDir, "dangling")))

	p := h.pipeline(t, config.Inputs{"source": src})
	out := p.Run(context.Background())

	require.False(t, out.Success)
	byName := map[string]StageResult{}
	for _, st := range out.Stages {
		byName[st.Name] = st
	}
	assert.True(t, errors.Is(byName["package"].Err, ErrCopy))
}
