package output

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// GitHub Actions environment detection and workflow commands.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// GroupStart opens a collapsible log group in the Actions log viewer.
func GroupStart(w io.Writer, name string) {
	if !IsGitHubActions() {
		return
	}
	fmt.Fprintf(w, "::group::%s\n", name)
}

// GroupEnd closes the current log group.
func GroupEnd(w io.Writer) {
	if !IsGitHubActions() {
		return
	}
	fmt.Fprintln(w, "::endgroup::")
}

// Errorf emits an error annotation (plain "error:" line outside Actions).
func Errorf(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if IsGitHubActions() {
		fmt.Fprintf(w, "::error::%s\n", escapeData(msg))
		return
	}
	fmt.Fprintf(w, "error: %s\n", msg)
}

// Warningf emits a warning annotation (plain "warning:" line outside Actions).
func Warningf(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if IsGitHubActions() {
		fmt.Fprintf(w, "::warning::%s\n", escapeData(msg))
		return
	}
	fmt.Fprintf(w, "warning: %s\n", msg)
}

// Mask registers a secret with the runner so it is redacted from the log.
// Empty secrets are ignored.
func Mask(w io.Writer, secret string) {
	if secret == "" || !IsGitHubActions() {
		return
	}
	fmt.Fprintf(w, "::add-mask::%s\n", secret)
}

// SetOutput appends a named output to the file referenced by GITHUB_OUTPUT.
// Outside Actions (no GITHUB_OUTPUT) the output is echoed to w instead, so
// local runs remain inspectable.
func SetOutput(w io.Writer, name, value string) error {
	path := os.Getenv("GITHUB_OUTPUT")
	if path == "" {
		fmt.Fprintf(w, "    output %s=%s\n", name, value)
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()

	if strings.Contains(value, "\n") {
		// Multiline values need the heredoc form.
		delim := "ghadelimiter_" + name
		_, err = fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delim, value, delim)
	} else {
		_, err = fmt.Fprintf(f, "%s=%s\n", name, value)
	}
	if err != nil {
		return fmt.Errorf("writing output %s: %w", name, err)
	}
	return nil
}

// AddPath prepends dir to the current process PATH and registers it with the
// runner via GITHUB_PATH so later job steps see it too.
func AddPath(dir string) error {
	cur := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+cur); err != nil {
		return err
	}

	path := os.Getenv("GITHUB_PATH")
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening GITHUB_PATH: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, dir); err != nil {
		return fmt.Errorf("writing GITHUB_PATH: %w", err)
	}
	return nil
}

// escapeData escapes values embedded in workflow command data.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

// UseColor returns true if colored output should be used.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
