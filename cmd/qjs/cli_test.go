package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLIHelp(t *testing.T) {
	output, err := executeCommand(rootCmd, "--help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expectedPhrases := []string{
		"qjs",
		"JavaScript",
		"run",
		"repl",
		"--memory",
		"--kv",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("help output missing %q", phrase)
		}
	}
}

func TestParseMemoryBytes(t *testing.T) {
	cases := map[string]uint64{
		"1mb":     1 << 20,
		"16MB":    16 << 20,
		"256mb":   256 << 20,
		"1gb":     1 << 30,
		"":        0,
		"bananas": 0,
	}
	for in, want := range cases {
		if got := parseMemoryBytes(in); got != want {
			t.Errorf("parseMemoryBytes(%q) = %d, want %d", in, got, want)
		}
	}
}
