// Package server runs the local HTTP endpoint that completes the Spotify OAuth login.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the authorization code callback. It validates the state parameter
// (CSRF protection), exchanges the code for a token and sends the result through a channel.
// Only the first callback is processed.
//
// The handler serves the path of the configured redirect URI, and [CallbackAddr] derives the
// listen address from the same URI, so the URI registered with Spotify is the single source of truth.
//
// # Router Infrastructure
//
// [BasicRouter] implements [Router] over [http.ServeMux] method patterns.
// [Middleware] is applied so that the first one added is the outermost;
// [RequestLogger] logs each request at debug level.
//
// # Callback Server
//
// [CallbackServer] binds its listener before returning from Start, opens no other routes,
// and is shut down by the caller once a result arrives or the login times out.
package server
