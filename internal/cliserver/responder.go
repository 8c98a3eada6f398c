package cliserver

import (
	"context"
	"strings"

	"github.com/zjrosen/qlcli/internal/auth"
	"github.com/zjrosen/qlcli/internal/log"
)

// AuthPrompt is the prefix of the line the worker prints when it wants a
// token on stdin.
const AuthPrompt = "Enter value for --github-auth-stdin"

// AuthResponder answers the worker's token prompt with a fresh access token.
// If no token can be obtained, it answers with fallback, the token that was
// known when the command started. Other lines get no reply.
func AuthResponder(creds auth.Credentials, fallback string) LineHandler {
	return func(ctx context.Context, line string) string {
		if !strings.HasPrefix(line, AuthPrompt) {
			return ""
		}
		token, err := creds.AccessToken(ctx)
		if err != nil {
			log.Warn(log.CatAuth, "Failed to get access token, using existing token", "error", err)
			return fallback
		}
		log.Debug(log.CatAuth, "Answered token prompt")
		return token
	}
}
