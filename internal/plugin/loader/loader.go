// Package loader activates discovered plugins. Activation starts the plugin
// entrypoint as a go-plugin subprocess, so it only happens when a command
// explicitly asks to run plugin code.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"github.com/jmylchreest/gh-please/internal/plugin/registry"
	"github.com/jmylchreest/gh-please/internal/security"
	pluginapi "github.com/jmylchreest/gh-please/pkg/plugin"
)

// DefaultStartTimeout bounds how long a plugin may take to complete the handshake.
const DefaultStartTimeout = 10 * time.Second

var (
	ErrNoEntrypoint      = errors.New("plugin does not declare an entrypoint")
	ErrEntrypointMissing = errors.New("plugin entrypoint not found")
)

// commandGroup is the host-side view of a running plugin.
type commandGroup interface {
	Info() (pluginapi.Info, error)
	Commands() ([]pluginapi.Command, error)
	Run(ctx context.Context, req pluginapi.RunRequest) (pluginapi.RunResponse, error)
}

// Loader starts plugin processes.
type Loader struct {
	logger       hclog.Logger
	startTimeout time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger handed to go-plugin.
func WithLogger(logger hclog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// WithStartTimeout sets the handshake timeout.
func WithStartTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.startTimeout = d
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{startTimeout: DefaultStartTimeout}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = hclog.NewNullLogger()
	}
	return l
}

// EntrypointPath resolves the plugin entrypoint inside dir.
func EntrypointPath(p registry.Plugin, dir string) (string, error) {
	if p.Entrypoint == "" {
		return "", fmt.Errorf("%s: %w", p.Name, ErrNoEntrypoint)
	}
	path := filepath.Join(dir, p.Entrypoint)
	if err := security.ValidatePluginPath(path, dir); err != nil {
		return "", fmt.Errorf("invalid entrypoint for %s: %w", p.Name, err)
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%s: %w: %s", p.Name, ErrEntrypointMissing, path)
	}
	return path, nil
}

// Activate launches the plugin installed in dir and completes the handshake.
// The caller must Close the returned plugin.
func (l *Loader) Activate(ctx context.Context, p registry.Plugin, dir string) (*ActivatedPlugin, error) {
	path, err := EntrypointPath(p, dir)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := l.logger.Named(p.Name)
	logger.Debug("activating plugin", "path", path)

	cmd := exec.Command(path)
	cmd.Dir = dir

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  pluginapi.Handshake,
		Plugins:          pluginapi.PluginMap(nil),
		Cmd:              cmd,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		StartTimeout:     l.startTimeout,
		Logger:           logger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start plugin %s: %w", p.Name, err)
	}

	raw, err := rpcClient.Dispense(pluginapi.DispenseName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin %s: %w", p.Name, err)
	}

	group, ok := raw.(*pluginapi.CommandGroupRPCClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s returned unexpected type %T", p.Name, raw)
	}

	activated, err := newActivated(p, dir, group, client.Kill)
	if err != nil {
		client.Kill()
		return nil, err
	}
	return activated, nil
}

// ActivatedPlugin is a running plugin.
type ActivatedPlugin struct {
	Plugin registry.Plugin
	Dir    string

	info  pluginapi.Info
	group commandGroup
	kill  func()
}

func newActivated(p registry.Plugin, dir string, group commandGroup, kill func()) (*ActivatedPlugin, error) {
	info, err := group.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to read info from plugin %s: %w", p.Name, err)
	}
	if err := checkProtocol(info.ProtocolVersion); err != nil {
		return nil, fmt.Errorf("plugin %s: %w", p.Name, err)
	}
	return &ActivatedPlugin{Plugin: p, Dir: dir, info: info, group: group, kill: kill}, nil
}

// Info returns the metadata the plugin reported at activation.
func (a *ActivatedPlugin) Info() pluginapi.Info {
	return a.info
}

// Commands lists the commands the plugin provides.
func (a *ActivatedPlugin) Commands() ([]pluginapi.Command, error) {
	return a.group.Commands()
}

// Run executes one plugin command.
func (a *ActivatedPlugin) Run(ctx context.Context, command string, args []string) (pluginapi.RunResponse, error) {
	if err := ctx.Err(); err != nil {
		return pluginapi.RunResponse{}, err
	}
	return a.group.Run(ctx, pluginapi.RunRequest{Command: command, Args: args})
}

// Close stops the plugin process. It is safe to call more than once.
func (a *ActivatedPlugin) Close() {
	if a.kill != nil {
		a.kill()
		a.kill = nil
	}
}
