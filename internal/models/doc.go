// Package models defines domain entities and persistence interfaces for libbyreads.
//
// The package contains two categories of types:
//
// 1. Engine values: immutable data passed between the engine stages
//   - [Book] : Shelf entry with its derived normalized key
//   - [LibraryTarget] : One lending system, its rate limit and timeout
//   - [CatalogCandidate] : A single catalog search hit
//   - [AvailabilityResult] : Outcome for one (book, library) pair
//   - [ShelfReport] / [ShelfReportEntry] : Aggregated output of a run
//
// 2. Persistent Entities: Database-backed models for the shelf cache
//   - [PersistedShelf] : An imported reading list
//   - [PersistedBook] : A cached book with its position on the shelf
//
// Availability results are never persisted.
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
