package cliserver

import (
	"context"

	"github.com/zjrosen/qlcli/internal/distribution"
)

// DistributionProvider locates the codeql executable and reports its version.
// *distribution.Provider implements it.
type DistributionProvider interface {
	PathResolver
	Distribution(ctx context.Context) (distribution.Distribution, error)
	// OnDidChangeDistribution registers fn to be called when the executable
	// changes and returns a func that removes it.
	OnDidChangeDistribution(fn func()) (unsubscribe func())
}

// ContextSetter publishes capability flags to the host environment.
// *flags.Registry implements it.
type ContextSetter interface {
	SetContext(key string, value bool) error
}
