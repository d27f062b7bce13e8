// Package repositories implements SQLite persistence for the shelf cache.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [ShelfRepository] : imported reading lists, looked up by id or name
//   - [BookRepository] : the books of a shelf in import order
//   - [ShelfCache] : imports a whole shelf in one transaction and reads it back as [models.Book] values
//
// Only shelves are cached. Availability results are computed fresh on every check and never stored.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
