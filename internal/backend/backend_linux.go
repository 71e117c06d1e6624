//go:build linux

package backend

import (
	"github.com/genricoloni/nowplaying/internal/backend/mpris"
	"github.com/genricoloni/nowplaying/internal/domain"
)

var platforms = []string{mpris.Platform}

func newPlatform(deps Deps) (domain.Backend, error) {
	a, err := mpris.New(deps.Logger, deps.Fetcher)
	if err != nil {
		return nil, err
	}
	return a, nil
}
