// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/loomhq/loom/pkg/executors/httpexec"
	"github.com/loomhq/loom/pkg/executors/local"
	"github.com/loomhq/loom/pkg/registry"
)

func registerNativeExecutors(reg *registry.Registry) {
	reg.RegisterExecutor(local.NewFactory())
	reg.RegisterExecutor(httpexec.NewFactory())
}

func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeExecutors(reg)

	return reg
}
