package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupCommandsOnlyInsideActions(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv("GITHUB_ACTIONS", "")
	GroupStart(&buf, "build")
	GroupEnd(&buf)
	assert.Empty(t, buf.String())

	t.Setenv("GITHUB_ACTIONS", "true")
	GroupStart(&buf, "build")
	GroupEnd(&buf)
	assert.Equal(t, "::group::build\n::endgroup::\n", buf.String())
}

func TestErrorfEscapesAnnotationData(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")

	var buf bytes.Buffer
	Errorf(&buf, "bad value: %s", "50%\nsecond line")
	assert.Equal(t, "::error::bad value: 50%25%0Asecond line\n", buf.String())
}

func TestErrorfPlainOutsideActions(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "")

	var buf bytes.Buffer
	Errorf(&buf, "build %s", "failed")
	Warningf(&buf, "token %s", "missing")
	assert.Equal(t, "error: build failed\nwarning: token missing\n", buf.String())
}

func TestMaskSkipsEmptySecrets(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")

	var buf bytes.Buffer
	Mask(&buf, "")
	assert.Empty(t, buf.String())

	Mask(&buf, "hf_abc123")
	assert.Equal(t, "::add-mask::hf_abc123\n", buf.String())
}

func TestSetOutputAppendsToOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", path)

	var buf bytes.Buffer
	require.NoError(t, SetOutput(&buf, "kernel-path", "/work/result"))
	require.NoError(t, SetOutput(&buf, "artifact-name", "kernel"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kernel-path=/work/result\nartifact-name=kernel\n", string(data))
	assert.Empty(t, buf.String(), "nothing echoed locally when GITHUB_OUTPUT is set")
}

func TestSetOutputMultilineUsesHeredoc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output")
	t.Setenv("GITHUB_OUTPUT", path)

	var buf bytes.Buffer
	require.NoError(t, SetOutput(&buf, "report", "line one\nline two"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "report<<ghadelimiter_report\nline one\nline two\nghadelimiter_report\n", string(data))
}

func TestSetOutputEchoesLocally(t *testing.T) {
	t.Setenv("GITHUB_OUTPUT", "")

	var buf bytes.Buffer
	require.NoError(t, SetOutput(&buf, "kernel-path", "/work/result"))
	assert.Equal(t, "    output kernel-path=/work/result\n", buf.String())
}

func TestAddPathPrependsAndRegisters(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	pathFile := filepath.Join(t.TempDir(), "path")
	t.Setenv("GITHUB_PATH", pathFile)

	require.NoError(t, AddPath("/nix/profile/bin"))

	assert.Equal(t, "/nix/profile/bin"+string(os.PathListSeparator)+"/usr/bin", os.Getenv("PATH"))

	data, err := os.ReadFile(pathFile)
	require.NoError(t, err)
	assert.Equal(t, "/nix/profile/bin\n", string(data))
}

func TestAddPathWithoutRunnerFile(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	t.Setenv("GITHUB_PATH", "")

	require.NoError(t, AddPath("/opt/bin"))
	assert.Equal(t, "/opt/bin"+string(os.PathListSeparator)+"/usr/bin", os.Getenv("PATH"))
}
