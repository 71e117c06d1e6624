package mpris

import (
	"context"
	"strings"

	"github.com/godbus/dbus/v5"
)

// DBusClient defines the interface for D-Bus operations.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/nowplaying/internal/backend/mpris DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive D-Bus signals
	Signal(ch chan<- *dbus.Signal)

	// ListNames returns all names on the bus
	ListNames(ctx context.Context) ([]string, error)

	// GetNameOwner returns the unique name that owns the given well-known name
	GetNameOwner(ctx context.Context, name string) (string, error)

	// GetProperty retrieves a property from a D-Bus object
	// player: The bus name (e.g., "org.mpris.MediaPlayer2.spotify")
	// path: The object path (e.g., "/org/mpris/MediaPlayer2")
	// prop: The property name (e.g., "org.mpris.MediaPlayer2.Player.Metadata")
	GetProperty(ctx context.Context, player, path, prop string) (dbus.Variant, error)

	// GetAllProperties fetches every property of iface in a single round trip
	GetAllProperties(ctx context.Context, player, path, iface string) (map[string]dbus.Variant, error)

	// Call invokes a method (e.g., "org.mpris.MediaPlayer2.Player.Play") and discards the reply
	Call(ctx context.Context, player, path, method string, args ...interface{}) error

	// SetProperty writes a property, wrapping value in a variant
	SetProperty(ctx context.Context, player, path, prop string, value interface{}) error
}

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient creates a real D-Bus client connected to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, err
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// AddMatchSignal adds a signal match rule
func (c *StdDBusClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

// Signal registers a channel to receive D-Bus signals
func (c *StdDBusClient) Signal(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

// ListNames returns all names on the bus
func (c *StdDBusClient) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// GetNameOwner returns the unique name that owns the given well-known name
func (c *StdDBusClient) GetNameOwner(ctx context.Context, name string) (string, error) {
	var owner string
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner)
	return owner, err
}

// GetProperty calls org.freedesktop.DBus.Properties.Get for the fully qualified prop
func (c *StdDBusClient) GetProperty(ctx context.Context, player, path, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	iface, name := splitProperty(prop)
	obj := c.conn.Object(player, dbus.ObjectPath(path))
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, iface, name).Store(&v)
	return v, err
}

// GetAllProperties calls org.freedesktop.DBus.Properties.GetAll
func (c *StdDBusClient) GetAllProperties(ctx context.Context, player, path, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	obj := c.conn.Object(player, dbus.ObjectPath(path))
	err := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, iface).Store(&props)
	return props, err
}

// Call invokes method on the object and waits for the reply
func (c *StdDBusClient) Call(ctx context.Context, player, path, method string, args ...interface{}) error {
	obj := c.conn.Object(player, dbus.ObjectPath(path))
	return obj.CallWithContext(ctx, method, 0, args...).Err
}

// SetProperty calls org.freedesktop.DBus.Properties.Set.
// prop is the fully qualified name, e.g. "org.mpris.MediaPlayer2.Player.Volume".
func (c *StdDBusClient) SetProperty(ctx context.Context, player, path, prop string, value interface{}) error {
	iface, name := splitProperty(prop)
	obj := c.conn.Object(player, dbus.ObjectPath(path))
	return obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.Set", 0, iface, name, dbus.MakeVariant(value)).Err
}

func splitProperty(prop string) (iface, name string) {
	idx := strings.LastIndex(prop, ".")
	if idx == -1 {
		return "", prop
	}
	return prop[:idx], prop[idx+1:]
}
