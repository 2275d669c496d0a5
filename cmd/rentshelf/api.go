package main

import (
	"github.com/jackzampolin/rentshelf/internal/api"
	"github.com/jackzampolin/rentshelf/internal/server/endpoints"
)

func init() {
	// Route handlers are never invoked from the CLI, so no dependencies.
	registry := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		registry.Register(ep)
	}
	rootCmd.AddCommand(registry.BuildCommands(getServerURL))
}
