package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/qlcli/internal/presentation"
)

var errNoRuntime = errors.New("qlcli runtime not initialized")

// commandContext is cancelled on interrupt so streaming commands kill their
// process tree.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func formatter(cmd *cobra.Command) *presentation.Formatter {
	return presentation.NewFormatter(cmd.OutOrStdout())
}

// printJSON runs fn against the server and prints its result.
func printJSON[T any](cmd *cobra.Command, fn func(ctx context.Context) (T, error)) error {
	if rt == nil {
		return errNoRuntime
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	out, err := fn(ctx)
	if err != nil {
		return err
	}
	return formatter(cmd).FormatJSON(out)
}
