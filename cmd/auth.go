package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// profiler is implemented by sessions that can report the authorized user.
type profiler interface {
	UserProfile(ctx context.Context) (*services.SpotifyUser, error)
}

// AuthLogin performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.login(ctx, "authorization"); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	r.writePlain("You can now use: spotexport export albums\n")

	return nil
}

// AuthStatus prints the profile of the authorized user and when the stored token expires.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	return r.withCatalog(ctx, func(catalog services.Catalog) error {
		p, ok := catalog.(profiler)
		if !ok {
			return fmt.Errorf("%w: session cannot report the current user", shared.ErrNotImplemented)
		}

		user, err := p.UserProfile(ctx)
		if err != nil {
			return err
		}

		if cmd.Bool("json") {
			return r.writeJSON(user, true)
		}

		name := user.DisplayName
		if name == "" {
			name = user.ID
		}
		r.writePlain("✓ Authenticated as %s (%s)\n", name, user.ID)
		if user.Product != "" {
			r.writePlain("  Plan: %s\n", user.Product)
		}
		if expiry := r.config.Credentials.Spotify.Expiry; !expiry.IsZero() {
			r.writePlain("  Token expires %s\n", humanize.Time(expiry))
		}
		return nil
	})
}

// AuthLogout clears the stored token.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if !r.config.Credentials.Spotify.HasToken() {
		return r.writePlain("Not logged in\n")
	}

	r.config.Credentials.Spotify.Invalidate()
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	return r.writePlain("✓ Removed Spotify token from %s\n", r.configPath)
}
