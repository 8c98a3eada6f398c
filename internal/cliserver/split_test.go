package cliserver

import (
	"bufio"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func splitAll(t *testing.T, input string) []string {
	t.Helper()
	// One byte per read exercises records spanning reads.
	sc := bufio.NewScanner(iotest.OneByteReader(strings.NewReader(input)))
	sc.Split(splitNUL)
	var out []string
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	require.NoError(t, sc.Err())
	return out
}

func TestSplitNUL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"two records", "{\"a\":1}\x00{\"a\":2}\x00", []string{`{"a":1}`, `{"a":2}`}},
		{"trailing record without NUL", "{\"a\":1}\x00{\"a\":2}", []string{`{"a":1}`, `{"a":2}`}},
		{"empty records skipped", "\x00\x00{\"a\":1}\x00\x00", []string{`{"a":1}`}},
		{"empty input", "", nil},
		{"only separators", "\x00\x00", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, splitAll(t, tt.input))
		})
	}
}
