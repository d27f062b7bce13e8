// Package services defines the [Catalog] interface for library lending systems and implements it per catalog family.
//
// # Catalog Interface
//
// A catalog performs a single search for a book and returns raw [models.CatalogCandidate] values.
// It never retries and never judges whether a candidate is the right book; that is the matcher's job.
//
// # Families
//
//   - [LibbyCatalog] : OverDrive thunder API used by Libby, keyed by library key
//   - [OpenLibraryCatalog] : Open Library search.json; ebook_access drives availability
//   - [ProxyCatalog] : generic JSON proxy with optional OAuth2 client credentials
//
// [NewCatalog] picks the implementation from [models.LibraryTarget].Family.
//
// # Error Handling
//
// Every failure wraps one sentinel from the shared package:
//   - [shared.ErrNetwork] : transport failure or unexpected HTTP status
//   - [shared.ErrRateLimited] : 429, or 503 with Retry-After ([RateLimitError] carries the hint)
//   - [shared.ErrParse] : body is not JSON or lacks its required top-level field
package services
