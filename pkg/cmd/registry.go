// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/registry"
)

// NewRegistry registers every built-in executor and seals the registry.
func NewRegistry(logger *slog.Logger, credentials persistence.CredentialRepository, httpTimeout time.Duration) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	err := reg.RegisterDefaultExecutors(registry.Dependencies{
		Credentials: credentials,
		HTTPClient:  &http.Client{Timeout: httpTimeout},
	})
	if err != nil {
		return nil, err
	}

	reg.Seal()

	return reg, nil
}
