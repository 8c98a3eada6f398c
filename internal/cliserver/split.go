package cliserver

import "bytes"

// splitNUL is a bufio.SplitFunc for NUL-separated records. Empty records are
// skipped and a final record without a trailing NUL is still returned.
func splitNUL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) && data[start] == nul {
		start++
	}
	if i := bytes.IndexByte(data[start:], nul); i >= 0 {
		return start + i + 1, data[start : start+i], nil
	}
	if atEOF && start < len(data) {
		return len(data), data[start:], nil
	}
	// Request more data, dropping any leading separators.
	return start, nil, nil
}
