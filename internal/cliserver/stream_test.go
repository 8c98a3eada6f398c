package cliserver

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Test string `json:"test"`
	Pass bool   `json:"pass"`
}

func newTestRunner(mode string) *StreamRunner {
	return NewStreamRunner(staticPath("codeql"), fakeFactory(envFakeStream+"="+mode), nil)
}

func collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

func TestStreamRunner_YieldsRecordsInOrder(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	logger := func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	}

	seq := newTestRunner("ok").Run(context.Background(), []string{"test", "run"}, []string{"/tests"}, "Run tests", logger)
	events, err := collect(DecodeEvents[testEvent](seq, "Run tests"))
	require.NoError(t, err)
	require.Equal(t, []testEvent{{Test: "a.ql", Pass: true}, {Test: "b.ql", Pass: false}}, events)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"line one", "line two"}, lines)
}

func TestStreamRunner_InsertsJsonzFormatBeforeArgs(t *testing.T) {
	seq := newTestRunner("args").Run(context.Background(), []string{"test", "run"}, []string{"--threads", "2", "/tests"}, "Run tests", nil)
	events, err := collect(DecodeEvents[testEvent](seq, "Run tests"))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "test run --format jsonz --threads 2 /tests", events[0].Test)
}

func TestStreamRunner_YieldsTrailingRecordWithoutNUL(t *testing.T) {
	seq := newTestRunner("trailing").Run(context.Background(), []string{"test", "run"}, nil, "Run tests", nil)
	events, err := collect(DecodeEvents[testEvent](seq, "Run tests"))
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "b.ql", events[1].Test)
}

func TestStreamRunner_NonZeroExitKeepsEarlierEvents(t *testing.T) {
	seq := newTestRunner("fail").Run(context.Background(), []string{"test", "run"}, nil, "Run tests", func(string) {})
	events, err := collect(DecodeEvents[testEvent](seq, "Run tests"))
	require.Len(t, events, 1)
	require.Error(t, err)

	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Run tests", cerr.Description)
	assert.Contains(t, cerr.Stderr, "compilation failed")
}

func TestStreamRunner_MalformedRecord(t *testing.T) {
	seq := newTestRunner("bad").Run(context.Background(), []string{"test", "run"}, nil, "Run tests", nil)
	_, err := collect(DecodeEvents[testEvent](seq, "Run tests"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing output of Run tests failed")
}

func TestStreamRunner_CancelStopsEventsAndKillsProcess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seq := newTestRunner("hang").Run(ctx, []string{"test", "run"}, nil, "Run tests", nil)

	done := make(chan struct{})
	var events int
	var finalErr error
	go func() {
		defer close(done)
		for _, err := range seq {
			if err != nil {
				finalErr = err
				continue
			}
			events++
			cancel()
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("streaming command was not killed after cancellation")
	}
	require.Equal(t, 1, events)
	require.ErrorIs(t, finalErr, context.Canceled)
}

func TestStreamRunner_BreakKillsProcess(t *testing.T) {
	seq := newTestRunner("many").Run(context.Background(), []string{"test", "run"}, nil, "Run tests", nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for _, err := range seq {
			assert.NoError(t, err)
			n++
			if n == 3 {
				break
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("breaking out of the sequence did not stop the process")
	}
}

func TestStreamRunner_RunsConcurrently(t *testing.T) {
	r := newTestRunner("ok")
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := collect(r.Run(context.Background(), []string{"test", "run"}, nil, "Run tests", func(string) {}))
			assert.NoError(t, err)
			assert.Len(t, events, 2)
		}()
	}
	wg.Wait()
}

func TestStreamRunner_LongStderrLineIsCutAndDrained(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	logger := func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	}

	type result struct {
		events []testEvent
		err    error
	}
	done := make(chan result, 1)
	go func() {
		seq := newTestRunner("long-stderr").Run(context.Background(), []string{"test", "run"}, nil, "Run tests", logger)
		events, err := collect(DecodeEvents[testEvent](seq, "Run tests"))
		done <- result{events, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not finish")
	}
	require.NoError(t, res.err)
	require.Equal(t, []testEvent{{Test: "a.ql", Pass: true}}, res.events)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 2)
	require.Len(t, lines[0], maxStderrLine)
	require.Equal(t, "after", lines[1])
}

func TestReadLines(t *testing.T) {
	input := "short\r\n" + strings.Repeat("y", 10) + "\n\nlast"
	var got []string
	readLines(strings.NewReader(input), 4, func(line string) { got = append(got, line) })
	require.Equal(t, []string{"shor", "yyyy", "", "last"}, got)
}
