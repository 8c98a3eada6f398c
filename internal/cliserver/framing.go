package cliserver

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// nul terminates every request and response frame.
const nul byte = 0

// loggingFlags are added to every cli-server command.
var loggingFlags = []string{"-v", "--log-to-stderr"}

// encodeRequest frames argv for the worker's stdin.
func encodeRequest(argv []string) ([]byte, error) {
	if argv == nil {
		argv = []string{}
	}
	payload, err := json.Marshal(argv)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	return append(payload, nul), nil
}

// isFrameEnd reports whether chunk completes a response. Only the last byte of
// the newest chunk is checked: the worker writes NUL only to end a frame and
// never sends a second frame before reading the next request.
func isFrameEnd(chunk []byte) bool {
	return len(chunk) > 0 && chunk[len(chunk)-1] == nul
}

// decodeResponse joins chunks and strips the trailing NUL.
func decodeResponse(chunks [][]byte) string {
	joined := bytes.Join(chunks, nil)
	joined = bytes.TrimSuffix(joined, []byte{nul})
	return string(joined)
}
