package main

import (
	"os"

	"github.com/firefly-engineering/edgerelay/cmd"
	"github.com/firefly-engineering/edgerelay/internal/errors"
	"github.com/firefly-engineering/edgerelay/internal/logging"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		logging.UserError("%v", err)
	}
	os.Exit(errors.GetExitCode(err))
}
