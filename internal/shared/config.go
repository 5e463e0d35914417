package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Server      ServerConfig      `toml:"server"`
	Export      ExportConfig      `toml:"export"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last issued token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ExportConfig contains pagination and output defaults for exports.
type ExportConfig struct {
	PageSize       int    `toml:"page_size"`
	PagePauseMS    int    `toml:"page_pause_ms"`
	RetryBackoffMS int    `toml:"retry_backoff_ms"`
	MaxRetries     int    `toml:"max_retries"`
	AlbumsFile     string `toml:"albums_file"`
	PlaylistsFile  string `toml:"playlists_file"`
	TracksDir      string `toml:"tracks_dir"`
}

// Map returns the credentials in the form accepted by the Spotify service constructor and Authenticate.
func (s SpotifyConfig) Map() map[string]string {
	m := map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
	if s.AccessToken != "" {
		m["access_token"] = s.AccessToken
		m["refresh_token"] = s.RefreshToken
		m["token_type"] = s.TokenType
		if !s.Expiry.IsZero() {
			m["expiry"] = s.Expiry.Format(time.RFC3339)
		}
	}
	return m
}

// HasToken reports whether a previously issued token is stored.
func (s SpotifyConfig) HasToken() bool {
	return s.AccessToken != "" || s.RefreshToken != ""
}

// Token returns the stored token, or nil if none was saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if !s.HasToken() {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Update stores a freshly issued token. Spotify omits the refresh token on refresh responses,
// so an empty one keeps the current value.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenType = token.TokenType
	s.Expiry = token.Expiry
	return nil
}

// Invalidate clears the stored token.
func (s *SpotifyConfig) Invalidate() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.TokenType = ""
	s.Expiry = time.Time{}
}

// PagePause returns the pause between successful page fetches.
func (e ExportConfig) PagePause() time.Duration {
	return time.Duration(e.PagePauseMS) * time.Millisecond
}

// RetryBackoff returns the wait before a failed page is requested again.
func (e ExportConfig) RetryBackoff() time.Duration {
	return time.Duration(e.RetryBackoffMS) * time.Millisecond
}

// Validate checks the export settings for values the exporter cannot work with.
func (e ExportConfig) Validate() error {
	switch {
	case e.PageSize <= 0:
		return fmt.Errorf("%w: export.page_size must be positive, got %d", ErrInvalidConfig, e.PageSize)
	case e.PagePauseMS < 0:
		return fmt.Errorf("%w: export.page_pause_ms must not be negative", ErrInvalidConfig)
	case e.RetryBackoffMS < 0:
		return fmt.Errorf("%w: export.retry_backoff_ms must not be negative", ErrInvalidConfig)
	case e.MaxRetries < 0:
		return fmt.Errorf("%w: export.max_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overlays credentials from an environment map using the CLIENT_ID, CLIENT_SECRET and REDIRECT_URI keys.
//
// Empty values are ignored so a partial .env never erases configured credentials.
func (c *Config) ApplyEnv(env map[string]string) {
	if v := env["CLIENT_ID"]; v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := env["CLIENT_SECRET"]; v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := env["REDIRECT_URI"]; v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := env["PAGE_SIZE"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Export.PageSize = n
		}
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	if err := config.Export.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes config to path. The file holds tokens, so it is created owner-readable only.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return WriteFileAtomic(path, 0600, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
