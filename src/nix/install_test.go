package nix

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfBlock(t *testing.T) {
	conf := ConfBlock("8", "0", "relaxed", "")
	lines := strings.Split(strings.TrimRight(conf, "\n"), "\n")

	require.Equal(t, []string{
		"max-jobs = 8",
		"cores = 0",
		"sandbox = relaxed",
		"experimental-features = nix-command flakes",
		"trusted-users = root runner",
	}, lines)
}

func TestConfBlockExtraGoesLast(t *testing.T) {
	conf := ConfBlock("4", "2", "true", "max-jobs = 16\nsubstituters = https://cache.example.org\n")
	lines := strings.Split(strings.TrimRight(conf, "\n"), "\n")

	// The free-form block is verbatim and last, so its max-jobs wins in nix.
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "max-jobs = 16", lines[len(lines)-2])
	assert.Equal(t, "substituters = https://cache.example.org", lines[len(lines)-1])
}

func TestSandboxDirectives(t *testing.T) {
	tests := []struct {
		mode string
		want []string
	}{
		{"relaxed", []string{"sandbox = relaxed"}},
		{"true", []string{"sandbox = true"}},
		{"false", []string{"sandbox = false"}},
		{"fallback", []string{"sandbox = true", "sandbox-fallback = false"}},
		{"", []string{"sandbox = true", "sandbox-fallback = false"}},
		{"bogus", []string{"sandbox = true", "sandbox-fallback = false"}},
	}

	for _, tt := range tests {
		t.Run("mode_"+tt.mode, func(t *testing.T) {
			assert.Equal(t, tt.want, sandboxDirectives(tt.mode))
		})
	}
}
