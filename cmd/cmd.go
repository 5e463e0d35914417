// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// exportFlags are shared by every export command. Unset flags fall back to the [export] config section.
func exportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output CSV path",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Items requested per page",
		},
		&cli.DurationFlag{
			Name:  "pause",
			Usage: "Pause between successful page fetches",
		},
		&cli.DurationFlag{
			Name:  "backoff",
			Usage: "Wait before a failed page is requested again",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Retries per page before giving up (0 retries forever)",
		},
	}
}

func tracksFlags() []cli.Flag {
	return append(exportFlags(),
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Export the tracks of every playlist to its own file",
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "Output directory for --all (default: spotify_export_{timestamp})",
		},
	)
}

func playlistArg() []cli.Argument {
	return []cli.Argument{
		&cli.StringArg{Name: "playlist-id"},
	}
}

// exportCommand groups the CSV exports.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "export",
		Aliases: []string{"x"},
		Usage:   "Export library data to CSV",
		Commands: []*cli.Command{
			{
				Name:   "albums",
				Usage:  "Export saved albums (Album Name, Artists, Release Date, Popularity, Image URL)",
				Flags:  exportFlags(),
				Action: r.ExportAlbums,
			},
			{
				Name:   "playlists",
				Usage:  "Export playlists (Playlist Name, Playlist ID)",
				Flags:  exportFlags(),
				Action: r.ExportPlaylists,
			},
			{
				Name:      "tracks",
				Usage:     "Export the tracks of a playlist (Track ID, Name, Popularity, Duration, Album Name, Artists)",
				ArgsUsage: "<playlist-id>",
				Arguments: playlistArg(),
				Flags:     tracksFlags(),
				Action:    r.ExportTracks,
			},
		},
	}
}

func fetchAlbumsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "fetch-albums",
		Usage:  "Same as export albums",
		Flags:  exportFlags(),
		Action: r.ExportAlbums,
	}
}

func fetchPlaylistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "fetch-playlists",
		Usage:  "Same as export playlists",
		Flags:  exportFlags(),
		Action: r.ExportPlaylists,
	}
}

func fetchPlaylistTracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "fetch-playlist-tracks",
		Usage:     "Same as export tracks",
		ArgsUsage: "<playlist-id>",
		Arguments: playlistArg(),
		Flags:     tracksFlags(),
		Action:    r.ExportTracks,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify in the browser and save the token to the config file",
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show the authorized Spotify account",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the profile as JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Remove the saved token from the config file",
				Action: r.AuthLogout,
			},
		},
	}
}

// setupCommand writes a starter config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create a config file with default settings",
		Action: r.Setup,
	}
}
