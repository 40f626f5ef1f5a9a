package host

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/jmylchreest/gh-please/internal/process"
)

// NewTokenSource returns a static source when token is set. Otherwise the
// token is requested from `gh auth token` the first time a request needs it
// and reused afterwards, so building a client never runs gh.
func NewTokenSource(token string, runner process.Runner, ghPath string) oauth2.TokenSource {
	if token != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	}
	return oauth2.ReuseTokenSource(nil, &ghTokenSource{runner: runner, ghPath: ghPath})
}

type ghTokenSource struct {
	runner process.Runner
	ghPath string
}

func (s *ghTokenSource) Token() (*oauth2.Token, error) {
	token, err := TokenFromGH(context.Background(), s.runner, s.ghPath)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}
