package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainHelp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "no args", args: []string{"corpusctl"}},
		{name: "long flag", args: []string{"corpusctl", "--help"}},
		{name: "short flag", args: []string{"corpusctl", "-h"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer

			exitCode := Run(nil, &stdout, &stderr, tc.args, map[string]string{"HOME": t.TempDir()}, nil)

			require.Equal(t, 0, exitCode)
			require.Empty(t, stderr.String())

			out := stdout.String()
			require.Contains(t, out, "corpusctl - coverage-guided fuzzer corpus engine")
			require.Contains(t, out, "--cwd")
			require.Contains(t, out, "stats")
			require.Contains(t, out, "print-config")
		})
	}
}

func TestUnknownCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := Run(nil, &stdout, &stderr, []string{"corpusctl", "bogus"}, map[string]string{"HOME": t.TempDir()}, nil)

	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "unknown command: bogus")
}

func TestPrintConfigDispatches(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var stdout, stderr bytes.Buffer

	exitCode := Run(nil, &stdout, &stderr, []string{"corpusctl", "-C", dir, "print-config"}, map[string]string{"HOME": t.TempDir()}, nil)

	require.Equal(t, 0, exitCode)
	require.Empty(t, stderr.String())
	require.True(t, strings.HasPrefix(stdout.String(), "effective_cwd="))
}
