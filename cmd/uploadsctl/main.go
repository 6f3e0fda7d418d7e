// Command uploadsctl inspects and reconciles candidate uploads directly
// against the configured store, bypassing the HTTP layer.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/tbourn/go-recruit-uploads/internal/bootstrap"
	"github.com/tbourn/go-recruit-uploads/internal/config"
)

func main() {
	_ = godotenv.Load()

	open := func() (*bootstrap.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return bootstrap.Build(cfg)
	}

	os.Exit(execute(newRootCmd(open)))
}
