package pipeline

import "errors"

// Stage failure sentinels. Every stage failure is fatal to the run; the
// first one encountered becomes the run's failure message.
var (
	ErrInstall            = errors.New("toolchain install failed")
	ErrCache              = errors.New("cache configuration failed")
	ErrBuildResultMissing = errors.New("build produced no result")
	ErrCopy               = errors.New("packaging copy failed")
	ErrUpload             = errors.New("artifact upload failed")
	ErrPublish            = errors.New("hub publish failed")
	ErrSecretLeak         = errors.New("secret detected in publish tree")
)
