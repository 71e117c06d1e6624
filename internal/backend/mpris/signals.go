package mpris

import (
	"context"
	"strings"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// monitorSignals listens for D-Bus signals and turns the relevant ones into nudges
func (a *Adapter) monitorSignals(ctx context.Context, signals <-chan *dbus.Signal) {
	defer a.wg.Done() // Signal completion when goroutine exits

	a.logger.Debug("Signal monitoring goroutine started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Signal monitoring goroutine stopped")
			return
		case sig, ok := <-signals:
			if !ok {
				// godbus closes registered channels when the connection goes away
				a.logger.Debug("Signal channel closed")
				return
			}
			if sig == nil {
				continue
			}
			// Handle different signal types
			if sig.Name == "org.freedesktop.DBus.NameOwnerChanged" {
				a.handleNameOwnerChanged(sig)
			} else {
				a.handleSignal(sig)
			}
		}
	}
}

// handleNameOwnerChanged processes NameOwnerChanged signals to track player lifecycle
func (a *Adapter) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, servicePrefix) {
		return // Not an MPRIS player
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	a.mu.Lock()
	switch {
	case newOwner != "" && oldOwner == "":
		a.playerNames[newOwner] = name
		a.logger.Info("New MPRIS player detected",
			zap.String("player", name),
			zap.String("unique", newOwner))
	case newOwner == "" && oldOwner != "":
		delete(a.playerNames, oldOwner)
		if a.current == name {
			a.current = ""
		}
		a.logger.Info("MPRIS player removed",
			zap.String("player", name),
			zap.String("unique", oldOwner))
	case newOwner != "" && oldOwner != "":
		// Ownership transfer (rare), update the mapping
		delete(a.playerNames, oldOwner)
		a.playerNames[newOwner] = name
		a.logger.Debug("MPRIS player ownership changed",
			zap.String("player", name),
			zap.String("oldUnique", oldOwner),
			zap.String("newUnique", newOwner))
	}
	a.mu.Unlock()

	a.nudge()
}

// handleSignal processes a PropertiesChanged signal from a player.
// The payload is not trusted for state: the detector re-samples on the nudge.
func (a *Adapter) handleSignal(sig *dbus.Signal) {
	// PropertiesChanged signal has 3 arguments:
	// 1. Interface name (string)
	// 2. Changed properties (map[string]Variant)
	// 3. Invalidated properties ([]string)
	if sig.Name != "org.freedesktop.DBus.Properties.PropertiesChanged" {
		return
	}
	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != playerInterface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok || len(changedProps) == 0 {
		return
	}

	player := a.getPlayerName(sig.Sender)
	_, statusChanged := changedProps["PlaybackStatus"]
	if !statusChanged && !a.tracks(player) {
		a.logger.Debug("Ignoring PropertiesChanged from background player",
			zap.String("player", player),
			zap.Int("properties", len(changedProps)))
		return
	}

	a.logger.Debug("Received PropertiesChanged signal",
		zap.String("sender", sig.Sender),
		zap.String("player", player),
		zap.Int("properties", len(changedProps)))

	a.nudge()
}

// getPlayerName returns the well-known player name for a unique bus name
// Falls back to the unique name if no mapping exists
func (a *Adapter) getPlayerName(uniqueName string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if wellKnown, ok := a.playerNames[uniqueName]; ok {
		return wellKnown
	}
	return uniqueName
}

// tracks reports whether a change from player can affect the next sample.
// Only PlaybackStatus changes of other known players matter, since they may move the selection.
func (a *Adapter) tracks(player string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.current == "" || player == a.current {
		return true
	}
	// Unresolved senders (owner lookup failed at startup) are not assumed to be background players
	return !strings.HasPrefix(player, servicePrefix)
}

// Subscribe implements domain.ChangeNotifier.
// Each subscriber gets its own single-slot channel; bursts of signals coalesce into one pending nudge.
func (a *Adapter) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	a.subsMu.Lock()
	if a.closed {
		a.subsMu.Unlock()
		return nil, domain.BackendError(Platform, "adapter closed")
	}
	a.subs[ch] = struct{}{}
	a.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		a.unsubscribe(ch)
	}()

	return ch, nil
}

func (a *Adapter) unsubscribe(ch chan struct{}) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	// Close may already have released it
	if _, ok := a.subs[ch]; ok {
		delete(a.subs, ch)
		close(ch)
	}
}

// nudge wakes every subscriber without blocking
func (a *Adapter) nudge() {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	for ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
