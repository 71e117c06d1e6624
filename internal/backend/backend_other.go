//go:build !linux && !windows && !darwin

package backend

import (
	"runtime"

	"github.com/genricoloni/nowplaying/internal/domain"
)

var platforms []string

func newPlatform(deps Deps) (domain.Backend, error) {
	return nil, domain.NotSupported(runtime.GOOS)
}
