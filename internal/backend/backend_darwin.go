//go:build darwin

package backend

import (
	"fmt"

	"github.com/genricoloni/nowplaying/internal/backend/mediaremote"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/executor"
)

var platforms = []string{mediaremote.Platform}

func newPlatform(deps Deps) (domain.Backend, error) {
	if !executor.CommandExists(mediaremote.Shell) {
		return nil, domain.BackendError(mediaremote.Platform, fmt.Sprintf("%s not found in PATH", mediaremote.Shell))
	}
	return mediaremote.New(deps.Logger, deps.Runner, deps.Fetcher), nil
}
