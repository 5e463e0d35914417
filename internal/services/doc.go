// Package services implements the Spotify Web API client that exports read from.
//
// # Catalog
//
// [Catalog] is the narrow, read-only surface used by the export pipeline: one page of saved
// albums, user playlists or playlist tracks per call, plus playlist metadata for counting.
// Each listing returns a [Page]; callers stop on an empty page and never consult Total or Next.
//
// # Spotify Implementation
//
// [SpotifyService] uses OAuth2 for authentication with automatic token refresh.
//
// The [oauth2.Client] refreshes expired tokens using the refresh token, and
// [SpotifyService.SetTokenRefreshCallback] receives each new token so the CLI can persist it.
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends Service for OAuth providers.
// [SpotifyService] implements this for the authorization code flow used by `auth login`.
//
// # Error Handling
//
// Non-2xx responses are returned as [*APIError], which matches [shared.ErrAPIRequest] plus:
//   - [shared.ErrTokenExpired] : 401, reauthorization needed
//   - [shared.ErrAuthFailed] : 403, missing scope or forbidden resource
//   - [shared.ErrPlaylistNotFound] : 404
//   - [shared.ErrInvalidArgument] : 400
//   - [shared.ErrServiceUnavailable] : 5xx
//
// Network failures wrap [shared.ErrAPIRequest]; a failed token refresh wraps [shared.ErrTokenExpired];
// calling a listing method before Authenticate returns [shared.ErrNotAuthenticated].
package services
