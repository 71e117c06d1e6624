//go:build windows

package backend

import (
	"fmt"

	"github.com/genricoloni/nowplaying/internal/backend/smtc"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/executor"
)

var platforms = []string{smtc.Platform}

func newPlatform(deps Deps) (domain.Backend, error) {
	if !executor.CommandExists(smtc.Shell) {
		return nil, domain.BackendError(smtc.Platform, fmt.Sprintf("%s not found in PATH", smtc.Shell))
	}
	return smtc.New(deps.Logger, deps.Runner), nil
}
