// Package config resolves the action's raw string inputs into a typed,
// defaulted, validated configuration record.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultConfigFile provides repo-local defaults for action inputs.
// Explicit inputs always win over file values.
const defaultConfigFile = ".kernel-publish.yml"

// Execution modes accepted by the "mode" input.
const (
	ModeBuild = "build"
	ModeRun   = "run"
)

// Input defaults. Boolean-like inputs have no literal default: upload,
// verbose, and scan are opt-out (true unless exactly "false"), publish is
// opt-in (true only if exactly "true").
const (
	DefaultSource       = "."
	DefaultBuildTarget  = "ci"
	DefaultMode         = ModeBuild
	DefaultArtifactName = "kernel"
	DefaultCacheName    = "kernel-builder"
	DefaultMaxJobs      = "8"
	DefaultCores        = "0"
	DefaultSandbox      = "fallback"
)

// CacheNameOff disables cache setup when given as cache_name. The runner
// delivers unset and empty inputs identically, so opting out of the default
// cache needs an explicit literal.
const CacheNameOff = "none"

// Inputs is the raw key/value mapping of action inputs. Absent keys are
// treated as empty strings.
type Inputs map[string]string

// FromEnv collects action inputs from INPUT_* environment variables, the
// form the Actions runner delivers them in.
func FromEnv() Inputs {
	in := Inputs{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, "INPUT_") {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, "INPUT_"))
		in[name] = v
	}
	return in
}

// Config is the immutable per-run configuration record.
type Config struct {
	Source       string // kernel source directory
	BuildTarget  string // requested flake target
	Mode         string // "build" or "run"
	Verbose      bool
	ArtifactName string
	Upload       bool   // upload packaged output to the CI artifact store
	CacheName    string // binary cache to configure; empty skips the cache
	CacheToken   string // secret; empty means unauthenticated
	MaxJobs      string
	Cores        string
	Sandbox      string // "relaxed", "true", "false", "fallback", or free-form
	ExtraConfig  string // verbatim nix.conf overrides, appended last
	HFToken      string // secret; empty disables hub publishing
	HFRepo       string // hub repository id, e.g. "org/model"
	Publish      bool   // opt-in hub publish
	Scan         bool   // pre-publish secret scan (opt-out)
}

// Load reads repo-local defaults from <dir>/.kernel-publish.yml when
// present, layers the given inputs on top, and resolves the result.
func Load(dir string, in Inputs) (*Config, error) {
	fileVals, err := loadFile(filepath.Join(dir, defaultConfigFile))
	if err != nil {
		return nil, err
	}

	merged := Inputs{}
	for k, v := range fileVals {
		merged[k] = v
	}
	for k, v := range in {
		if v != "" {
			merged[k] = v
		}
	}
	return Resolve(merged)
}

// Resolve produces a Config from raw inputs, applying defaults and the
// boolean conventions, and validating enum-like fields. Pure: no external
// process is involved.
func Resolve(in Inputs) (*Config, error) {
	get := func(key, def string) string {
		if v := in[key]; v != "" {
			return v
		}
		return def
	}
	optOut := func(key string) bool { return in[key] != "false" }
	optIn := func(key string) bool { return in[key] == "true" }

	cacheName := get("cache_name", DefaultCacheName)
	if cacheName == CacheNameOff {
		cacheName = "" // empty resolved name skips cache setup
	}

	cfg := &Config{
		Source:       get("source", DefaultSource),
		BuildTarget:  get("build_target", DefaultBuildTarget),
		Mode:         get("mode", DefaultMode),
		Verbose:      optOut("verbose"),
		ArtifactName: get("artifact_name", DefaultArtifactName),
		Upload:       optOut("upload"),
		CacheName:    cacheName,
		CacheToken:   in["cache_token"],
		MaxJobs:      get("max_jobs", DefaultMaxJobs),
		Cores:        get("cores", DefaultCores),
		Sandbox:      get("sandbox", DefaultSandbox),
		ExtraConfig:  in["extra_config"],
		HFToken:      in["hf_token"],
		HFRepo:       in["hf_repo"],
		Publish:      optIn("publish"),
		Scan:         optOut("scan"),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads a yaml defaults file into raw string inputs. A missing
// file yields an empty set, not an error.
func loadFile(path string) (Inputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Inputs{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	in := Inputs{}
	for k, v := range raw {
		in[k] = fmt.Sprint(v)
	}
	return in, nil
}
