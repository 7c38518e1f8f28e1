package cmd

import (
	"github.com/firefly-engineering/edgerelay/internal/app"
	"github.com/firefly-engineering/edgerelay/internal/config"
)

// newApp builds the application from settings on disk and in the
// environment. Settings are not validated, so inspection commands work
// without backend credentials.
func newApp() (*app.App, error) {
	settings, err := config.Read(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(settings)
}
