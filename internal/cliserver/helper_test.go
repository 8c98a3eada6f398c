package cliserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/mock"

	"github.com/zjrosen/qlcli/internal/distribution"
	"github.com/zjrosen/qlcli/internal/mocks"
)

const (
	envFakeCodeQL = "QLCLI_FAKE_CODEQL"
	envFakeStream = "QLCLI_FAKE_STREAM"
)

// TestMain lets the test binary stand in for codeql. Tests start it through
// fakeFactory, which sets envFakeCodeQL.
func TestMain(m *testing.M) {
	if os.Getenv(envFakeCodeQL) == "1" {
		os.Exit(fakeCodeQL(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func fakeCodeQL(args []string) int {
	if len(args) >= 2 && args[0] == "execute" && args[1] == "cli-server" {
		return fakeCliServer()
	}
	return fakeStream(args)
}

// fakeCliServer answers NUL-framed requests until stdin closes.
func fakeCliServer() int {
	in := bufio.NewReader(os.Stdin)
	out := os.Stdout
	for {
		frame, err := in.ReadBytes(0)
		if err != nil {
			return 0
		}
		var argv []string
		if err := json.Unmarshal(frame[:len(frame)-1], &argv); err != nil {
			fmt.Fprintf(os.Stderr, "bad request: %v\n", err)
			return 2
		}
		cmd := stripLogging(argv)
		reply := func(s string) {
			_, _ = out.Write(append([]byte(s), 0))
		}

		switch {
		case len(cmd) == 0:
			reply("[]")
		case cmd[0] == "shutdown":
			return 0
		case cmd[0] == "crash":
			fmt.Fprintln(os.Stderr, "boom")
			return 3
		case cmd[0] == "pid":
			reply(fmt.Sprint(os.Getpid()))
		case cmd[0] == "chunks":
			_, _ = out.Write([]byte(`["a",`))
			time.Sleep(20 * time.Millisecond)
			_, _ = out.Write([]byte(`"b"]`))
			time.Sleep(20 * time.Millisecond)
			reply("")
		case cmd[0] == "prompt":
			fmt.Fprintln(os.Stderr, "asking for token")
			_, _ = out.Write([]byte(AuthPrompt + ": "))
			line, err := in.ReadString('\n')
			if err != nil {
				return 4
			}
			reply(fmt.Sprintf(`{"token":%q}`, strings.TrimSuffix(line, "\n")))
		case slices.Equal(cmd[:min(2, len(cmd))], []string{"resolve", "queries"}):
			reply(`["q1.ql","q2.ql"]`)
		case slices.Equal(cmd[:min(2, len(cmd))], []string{"resolve", "languages"}):
			reply(`{"cpp":["/dist/cpp"],"xml":["/dist/xml"],"go":["/dist/go"],"properties":["/dist/p"]}`)
		case cmd[0] == "bad-json":
			reply("not json")
		case cmd[0] == "pack" && slices.Contains(cmd, "--github-auth-stdin"):
			_, _ = out.Write([]byte(AuthPrompt + ": "))
			line, err := in.ReadString('\n')
			if err != nil {
				return 4
			}
			reply(fmt.Sprintf(`{"token":%q}`, strings.TrimSuffix(line, "\n")))
		default:
			b, _ := json.Marshal(argv)
			reply(string(b))
		}
	}
}

func stripLogging(argv []string) []string {
	out := make([]string, 0, len(argv))
	for _, a := range argv {
		if a == "-v" || a == "--log-to-stderr" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// fakeStream writes NUL-separated records according to envFakeStream.
func fakeStream(args []string) int {
	if !slices.Contains(args, "jsonz") {
		fmt.Fprintln(os.Stderr, "missing --format jsonz")
		return 5
	}
	out := os.Stdout
	switch os.Getenv(envFakeStream) {
	case "trailing":
		_, _ = io.WriteString(out, "{\"test\":\"a.ql\",\"pass\":true}\x00{\"test\":\"b.ql\",\"pass\":true}")
	case "fail":
		_, _ = io.WriteString(out, "{\"test\":\"a.ql\",\"pass\":true}\x00")
		fmt.Fprintln(os.Stderr, "compilation failed")
		return 2
	case "bad":
		_, _ = io.WriteString(out, "not json\x00")
	case "hang":
		_, _ = io.WriteString(out, "{\"test\":\"a.ql\",\"pass\":true}\x00")
		time.Sleep(time.Minute)
	case "many":
		for i := range 100 {
			fmt.Fprintf(out, "{\"test\":\"t%d.ql\",\"pass\":true}\x00", i)
		}
		time.Sleep(time.Minute)
	case "long-stderr":
		_, _ = os.Stderr.Write(bytes.Repeat([]byte("x"), 2_000_000))
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "after")
		_, _ = io.WriteString(out, "{\"test\":\"a.ql\",\"pass\":true}\x00")
	case "args":
		b, _ := json.Marshal(map[string]any{"test": strings.Join(args, " "), "pass": true})
		_, _ = out.Write(append(b, 0))
	default:
		fmt.Fprint(os.Stderr, "line one\r\nline two\n")
		_, _ = io.WriteString(out, "{\"test\":\"a.ql\",\"pass\":true}\x00{\"test\":\"b.ql\",\"pass\":false}\x00")
	}
	return 0
}

// fakeFactory starts the test binary as codeql.
func fakeFactory(env ...string) CommandFactoryFunc {
	return func(_ context.Context, _ string, args ...string) *exec.Cmd {
		cmd := exec.Command(os.Args[0], args...)
		cmd.Env = append(os.Environ(), envFakeCodeQL+"=1")
		cmd.Env = append(cmd.Env, env...)
		return cmd
	}
}

// staticPath resolves every lookup to "codeql".
type staticPath string

func (p staticPath) CodeQLPathWithoutVersionCheck(context.Context) (string, error) {
	return string(p), nil
}

// newDistribution returns a provider mock reporting version v.
func newDistribution(t *testing.T, v string) *mocks.MockDistributionProvider {
	t.Helper()
	dist := mocks.NewMockDistributionProvider(t)
	dist.On("CodeQLPathWithoutVersionCheck", mock.Anything).Return("codeql", nil).Maybe()
	dist.On("OnDidChangeDistribution", mock.Anything).Return(func() {}).Maybe()
	if v != "" {
		dist.On("Distribution", mock.Anything).Return(distribution.Distribution{
			Kind:    distribution.KindCompatible,
			Path:    "codeql",
			Version: mustVersion(v),
		}, nil).Maybe()
	}
	return dist
}

// newTestServer builds a Server backed by the fake codeql.
func newTestServer(t *testing.T, opts Options, env ...string) *Server {
	t.Helper()
	if opts.Distribution == nil {
		opts.Distribution = newDistribution(t, "2.15.1")
	}
	if opts.CommandFactory == nil {
		opts.CommandFactory = fakeFactory(env...)
	}
	if opts.Config.NumberThreads == 0 {
		opts.Config.NumberThreads = 1
		opts.Config.NumberTestThreads = 1
		opts.Config.MaxPaths = 4
	}
	s := New(opts)
	t.Cleanup(s.Close)
	return s
}

func mustVersion(v string) *semver.Version {
	return semver.MustParse(v)
}
