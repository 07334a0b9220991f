// Package services defines the collaborator interfaces consumed by the aggregation core and implements them for Apple Music and music news.
//
// # Music Source
//
// [AppleMusicService] implements [MusicSource] over the Apple Music API. Every request carries a developer token as a
// bearer token from an [oauth2.TokenSource]: either a static token from config or an ES256 JWT signed from a MusicKit key
// (see [NewDeveloperTokenSource]). Personalized /me endpoints also send the user's Music-User-Token.
//
// # News Sources
//
// [NewsAPIService] searches newsapi.org, spaced one request per second by a [rate.Limiter]. [NMEScraper] scrapes
// headlines from NME as a best-effort fallback and filters them client side.
//
// # Raw API
//
// [APIService] issues raw requests against the Apple Music API with the same authentication and returns the undecoded body.
//
// # Error Handling
//
// Responses are mapped onto the shared error taxonomy:
//   - 401/403 : [shared.ErrUnauthorized]
//   - 429 : [shared.RateLimitError], carrying the Retry-After hint
//   - other non-2xx : [shared.APIError] with status and message
//   - transport failure : [shared.ErrNetwork]
//   - undecodable body : [shared.ErrInvalidResponse]
package services
