// Package plugin provides the public API for gh-please plugins.
package plugin

import (
	"context"
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// CommandGroupRPC implements the go-plugin Plugin interface for command groups.
type CommandGroupRPC struct {
	plugin.Plugin
	Impl CommandGroup
}

// Server returns an RPC server for this plugin.
func (p *CommandGroupRPC) Server(*plugin.MuxBroker) (any, error) {
	return &CommandGroupRPCServer{Impl: p.Impl}, nil
}

// Client returns an RPC client for this plugin.
func (p *CommandGroupRPC) Client(_ *plugin.MuxBroker, c *rpc.Client) (any, error) {
	return &CommandGroupRPCClient{client: c}, nil
}

// CommandGroupRPCServer is the RPC server implementation for command groups.
type CommandGroupRPCServer struct {
	Impl CommandGroup
}

// Info implements the RPC method for fetching plugin metadata.
func (s *CommandGroupRPCServer) Info(_ any, resp *Info) error {
	*resp = s.Impl.Info()
	return nil
}

// Commands implements the RPC method for listing commands.
func (s *CommandGroupRPCServer) Commands(_ any, resp *[]Command) error {
	*resp = s.Impl.Commands()
	return nil
}

// Run implements the RPC method for running a command.
func (s *CommandGroupRPCServer) Run(req RunRequest, resp *RunResponse) error {
	result, err := s.Impl.Run(context.Background(), req)
	if err != nil {
		return err
	}
	*resp = result
	return nil
}

// CommandGroupRPCClient is the RPC client implementation for command groups.
type CommandGroupRPCClient struct {
	client *rpc.Client
}

// Info calls the remote Info method.
func (c *CommandGroupRPCClient) Info() (Info, error) {
	var info Info
	err := c.client.Call("Plugin.Info", new(any), &info)
	return info, err
}

// Commands calls the remote Commands method.
func (c *CommandGroupRPCClient) Commands() ([]Command, error) {
	var commands []Command
	err := c.client.Call("Plugin.Commands", new(any), &commands)
	return commands, err
}

// Run calls the remote Run method.
func (c *CommandGroupRPCClient) Run(_ context.Context, req RunRequest) (RunResponse, error) {
	var resp RunResponse
	if err := c.client.Call("Plugin.Run", req, &resp); err != nil {
		return RunResponse{}, &RPCError{Message: err.Error()}
	}
	return resp, nil
}

// RPCError represents an error returned from an RPC call.
type RPCError struct {
	Message string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return e.Message
}
