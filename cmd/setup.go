package main

import (
	"context"
	"os"

	"github.com/desertthunder/spotexport/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err == nil {
		r.logger.Info("config file already exists", "path", r.configPath)
		return r.writePlain("Config file already exists at %s\n", r.configPath)
	}

	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Config file created at %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Create an app at https://developer.spotify.com/dashboard\n")
	r.writePlain("2. Set client_id, client_secret and redirect_uri in %s (or CLIENT_ID, CLIENT_SECRET and REDIRECT_URI in .env)\n", r.configPath)
	r.writePlain("3. Run 'spotexport auth login'\n")

	return nil
}
