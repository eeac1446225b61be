package config

// Reserved flake targets with special handling.
const (
	// TargetBuildAndUpload builds the kernel and uploads it from inside the
	// flake. Its destination repository is hardcoded in the flake, so it
	// cannot honor a user-specified hf_repo.
	TargetBuildAndUpload = "build-and-upload"

	// TargetBuildAndCopy builds the kernel and stages the output locally
	// without uploading anywhere.
	TargetBuildAndCopy = "build-and-copy"
)

// SelectTarget decides the effective build target and whether the manual
// upload path must run.
//
// When an hf_repo is set and the requested target is build-and-upload, the
// target is rewritten to build-and-copy: letting the flake upload would
// publish to its hardcoded repository instead of the requested one. The
// manual upload step then pushes the locally staged output to the right
// place, and the generic packaging/upload path is skipped.
func SelectTarget(cfg *Config) (target string, manualUpload bool) {
	if cfg.HFRepo != "" && cfg.BuildTarget == TargetBuildAndUpload {
		return TargetBuildAndCopy, true
	}
	return cfg.BuildTarget, false
}
