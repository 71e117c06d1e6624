// Package backend selects the platform adapter for the host at construction time.
package backend

import (
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// Deps carries what the platform adapters may need
type Deps struct {
	Logger  *zap.Logger
	Runner  domain.Runner
	Fetcher domain.Fetcher
}

// New returns the adapter compiled in for the host platform.
// Hosts without an adapter get a NotSupported error.
func New(deps Deps) (domain.Backend, error) {
	b, err := newPlatform(deps)
	if err != nil {
		deps.Logger.Error("Failed to initialize media backend", zap.Error(err))
		return nil, err
	}
	deps.Logger.Info("Media backend ready", zap.String("platform", b.Platform()))
	return b, nil
}

// AvailablePlatforms lists the platform names this build can serve
func AvailablePlatforms() []string {
	return append([]string(nil), platforms...)
}
