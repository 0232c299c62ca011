package main

import (
	"context"
	"fmt"

	"github.com/muurk/wifiprov/internal/config"
	"github.com/muurk/wifiprov/internal/configstore"
	"github.com/muurk/wifiprov/internal/coordinator"
	"github.com/muurk/wifiprov/internal/netsim"
	"github.com/muurk/wifiprov/internal/nmdriver"
	"github.com/muurk/wifiprov/internal/portal"
)

// network is what both the coordinator and the portal need from a link
type network interface {
	coordinator.NetworkDriver
	portal.Connector
}

// openNetwork returns NetworkManager on iface, or an in-process simulated
// network when mock is set
func openNetwork(ctx context.Context, mock bool, iface string) (network, func(), error) {
	if mock {
		return netsim.New(), func() {}, nil
	}
	d, err := nmdriver.Open(ctx, iface)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NetworkManager: %w (use --mock to run without it)", err)
	}
	return d, func() { _ = d.Close() }, nil
}

// openStore builds the parameter store described by cfg
func openStore(cfg *config.Config, eraser configstore.CredentialEraser) (*configstore.Store, error) {
	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	opts := []configstore.Option{configstore.WithFileName(cfg.Storage.File)}
	if eraser != nil {
		opts = append(opts, configstore.WithCredentialEraser(eraser))
	}
	return configstore.New(configstore.NewDirStorage(dir), opts...), nil
}
