// Package cliserver drives the codeql command line.
//
// Most commands run on one long-lived "codeql execute cli-server" worker.
// Requests are JSON argument vectors followed by a NUL byte on the worker's
// stdin; the response is everything written to stdout up to a trailing NUL.
// The worker handles one request at a time, so every request goes through a
// Queue, which runs commands in submission order and lets Restart jump ahead
// of anything not yet started.
//
// Long-running commands that report progress (for example "test run") do
// not use the worker. StreamRunner starts a separate process per call with
// "--format jsonz" and yields each NUL-separated JSON record as it arrives.
//
// # Usage
//
//	srv := cliserver.New(cliserver.Options{
//	    Distribution: distribution.New(cfg.CLI.ExecutablePath),
//	    Credentials:  auth.FromEnv(nil),
//	    Context:      flags.New(cfg.Flags),
//	    Config:       cfg.CLI,
//	})
//	defer srv.Close()
//
//	queries, err := srv.ResolveQueries(ctx, "./queries", false)
//
// Server methods map one-to-one to codeql subcommands. RunJSON and
// RunStreaming are the generic building blocks for commands not covered.
package cliserver
