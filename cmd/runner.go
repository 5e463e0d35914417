package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotexport/internal/services"
	"github.com/desertthunder/spotexport/internal/shared"
	"github.com/desertthunder/spotexport/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultLoginTimeout = 2 * time.Minute

// Session is an authenticated catalog that must be closed after use.
type Session interface {
	services.Catalog
	Close() error
}

// CatalogFactory opens a [Session] using the credentials in config.
type CatalogFactory func(ctx context.Context, config *shared.Config) (Session, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config       *shared.Config
	configPath   string
	logger       *log.Logger
	output       io.Writer
	interactive  bool
	openCatalog  CatalogFactory
	openBrowser  func(url string) error
	loginTimeout time.Duration
	spotifyOpts  []services.SpotifyOpt
	exporterOpts []tasks.ExporterOpt
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A nil Config is loaded from the --config flag before any command runs.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	Logger       *log.Logger
	Output       io.Writer
	Interactive  bool // Draw progress bars and offer reauthorization when the token expires
	Catalog      CatalogFactory
	OpenBrowser  func(url string) error
	LoginTimeout time.Duration
	SpotifyOpts  []services.SpotifyOpt
	ExporterOpts []tasks.ExporterOpt
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = shared.OpenBrowser
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = defaultLoginTimeout
	}

	r := &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		logger:       opts.Logger,
		output:       opts.Output,
		interactive:  opts.Interactive,
		openCatalog:  opts.Catalog,
		openBrowser:  opts.OpenBrowser,
		loginTimeout: opts.LoginTimeout,
		spotifyOpts:  opts.SpotifyOpts,
		exporterOpts: append([]tasks.ExporterOpt{tasks.WithLogger(opts.Logger)}, opts.ExporterOpts...),
	}
	if r.openCatalog == nil {
		r.openCatalog = r.openSpotify
	}
	return r
}

// app builds the root command.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "spotexport",
		Usage:   "Export Spotify albums, playlists and playlist tracks to CSV",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars("SPOTEXPORT_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Optional .env file providing CLIENT_ID, CLIENT_SECRET, REDIRECT_URI and PAGE_SIZE",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, exportCommand,
		fetchAlbumsCommand, fetchPlaylistsCommand, fetchPlaylistTracksCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before sets the log level and loads the configuration unless one was injected.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	switch {
	case cmd.Bool("debug"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.ErrorLevel)
	}

	if r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.config != nil {
		return ctx, nil
	}

	config, err := r.loadConfig(r.configPath)
	if err != nil {
		return ctx, err
	}

	env, err := loadEnv(cmd.String("env-file"))
	if err != nil {
		return ctx, err
	}
	config.ApplyEnv(env)

	r.config = config
	return ctx, nil
}

func (r *Runner) loadConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return shared.DefaultConfig(), nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("loaded config", "path", path)
	return config, nil
}

// saveToken stores a newly issued token in the config file.
func (r *Runner) saveToken(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: no configuration loaded", shared.ErrMissingConfig)
	}
	if r.configPath == "" {
		return fmt.Errorf("%w: config path is empty", shared.ErrMissingConfig)
	}
	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
