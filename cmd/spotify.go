package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotexport/internal/server"
	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
	"golang.org/x/oauth2"
)

// openSpotify creates a Spotify session from the stored token.
//
// Tokens refreshed during the session are written back to the config file.
func (r *Runner) openSpotify(ctx context.Context, config *shared.Config) (Session, error) {
	creds := config.Credentials.Spotify
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("%w: no Spotify token in %s, run 'spotexport auth login' first", shared.ErrNotAuthenticated, r.configPath)
	}

	svc, err := services.NewSpotifyService(creds.Map(), r.spotifyOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveToken(token); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
			return
		}
		r.logger.Debug("saved refreshed token", "expiry", token.Expiry)
	})

	if err := svc.Authenticate(ctx, creds.Map()); err != nil {
		return nil, err
	}
	return svc, nil
}

// login runs the authorization code flow and saves the issued token.
func (r *Runner) login(ctx context.Context, prefix string) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s or .env", shared.ErrMissingCredentials, r.configPath)
	}

	svc, err := services.NewSpotifyService(creds.Map(), r.spotifyOpts...)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, svc, prefix)
	if err != nil {
		return err
	}

	return r.saveToken(token)
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthConfig := oauthSrv.GetOAuthConfig()
	oauthHandler := server.NewOAuthHandler(oauthConfig, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	addr := server.CallbackAddr(oauthConfig.RedirectURL, r.config.Server.Host, r.config.Server.Port)
	callbackServer := server.NewCallbackServer(addr, router, r.logger)
	serverErrors, err := callbackServer.Start()
	if err != nil {
		return nil, err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := callbackServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()
	r.logger.Infof("started OAuth server for %s at %v", prefix, callbackServer.Addr())

	authURL := oauthSrv.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", r.loginTimeout)

	timeout := time.NewTimer(r.loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("%w: callback server stopped: %v", shared.ErrServiceUnavailable, err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, r.loginTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}

	return result.Token, nil
}

// handleAuthError reauthorizes when err is an expired token and the session is interactive.
//
// The first return value reports whether reauthorization was attempted.
func (r *Runner) handleAuthError(ctx context.Context, err error) (bool, error) {
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return false, err
	}
	if !r.interactive {
		return false, fmt.Errorf("%w (run 'spotexport auth login' to authorize again)", err)
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...")
	if err := r.login(ctx, "reauthorization"); err != nil {
		return true, fmt.Errorf("reauthorization failed: %w", err)
	}

	r.writePlainln("✓ Reauthorization successful")
	r.writePlain("✓ New tokens saved to %s\n", r.configPath)
	return true, nil
}
