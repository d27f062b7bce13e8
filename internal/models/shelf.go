package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/libbyreads/internal/shared"
)

// Shelf sources
const (
	SourceGoodreads    = "goodreads"
	SourceGoodreadsCSV = "goodreads_csv"
	SourceManual       = "manual"
)

// PersistedShelf is a cached import of a reading list.
type PersistedShelf struct {
	id        string
	sequence  int
	name      string
	source    string
	sourceRef string
	bookCount int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedShelf creates a shelf record. sourceRef identifies the origin (a Goodreads user id or a file path).
func NewPersistedShelf(sequence int, name, source, sourceRef string) *PersistedShelf {
	now := time.Now()
	return &PersistedShelf{
		sequence:  sequence,
		name:      name,
		source:    source,
		sourceRef: sourceRef,
		createdAt: now,
		updatedAt: now,
	}
}

func (s *PersistedShelf) ID() string            { return s.id }
func (s *PersistedShelf) Sequence() int         { return s.sequence }
func (s *PersistedShelf) Name() string          { return s.name }
func (s *PersistedShelf) Source() string        { return s.source }
func (s *PersistedShelf) SourceRef() string     { return s.sourceRef }
func (s *PersistedShelf) BookCount() int        { return s.bookCount }
func (s *PersistedShelf) CreatedAt() time.Time  { return s.createdAt }
func (s *PersistedShelf) UpdatedAt() time.Time  { return s.updatedAt }
func (s *PersistedShelf) DeletedAt() *time.Time { return s.deletedAt }

func (s *PersistedShelf) SetID(id string)              { s.id = id }
func (s *PersistedShelf) SetSequence(n int)            { s.sequence = n }
func (s *PersistedShelf) SetName(name string)          { s.name = name }
func (s *PersistedShelf) SetBookCount(n int)           { s.bookCount = n }
func (s *PersistedShelf) SetCreatedAt(t time.Time)     { s.createdAt = t }
func (s *PersistedShelf) SetUpdatedAt(t time.Time)     { s.updatedAt = t }
func (s *PersistedShelf) SetDeletedAt(t *time.Time)    { s.deletedAt = t }
func (s *PersistedShelf) SetSource(source, ref string) { s.source, s.sourceRef = source, ref }

// Validate checks required fields.
func (s *PersistedShelf) Validate() error {
	switch {
	case s.id == "":
		return fmt.Errorf("%w: shelf id is required", shared.ErrInvalidInput)
	case s.name == "":
		return fmt.Errorf("%w: shelf name is required", shared.ErrInvalidInput)
	case s.source == "":
		return fmt.Errorf("%w: shelf source is required", shared.ErrInvalidInput)
	}
	return nil
}

// PersistedBook is a cached [Book] belonging to a shelf. Position preserves import order.
type PersistedBook struct {
	id        string
	sequence  int
	shelfID   string
	position  int
	book      Book
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewPersistedBook wraps book for storage on the given shelf.
func NewPersistedBook(sequence int, shelfID string, position int, book Book) *PersistedBook {
	now := time.Now()
	return &PersistedBook{
		sequence:  sequence,
		shelfID:   shelfID,
		position:  position,
		book:      book,
		createdAt: now,
		updatedAt: now,
	}
}

func (b *PersistedBook) ID() string            { return b.id }
func (b *PersistedBook) Sequence() int         { return b.sequence }
func (b *PersistedBook) ShelfID() string       { return b.shelfID }
func (b *PersistedBook) Position() int         { return b.position }
func (b *PersistedBook) CreatedAt() time.Time  { return b.createdAt }
func (b *PersistedBook) UpdatedAt() time.Time  { return b.updatedAt }
func (b *PersistedBook) DeletedAt() *time.Time { return b.deletedAt }

// Book returns the domain book with its ID set to the persisted id.
func (b *PersistedBook) Book() Book {
	book := b.book
	book.ID = b.id
	return book
}

func (b *PersistedBook) SetID(id string)           { b.id = id }
func (b *PersistedBook) SetSequence(n int)         { b.sequence = n }
func (b *PersistedBook) SetPosition(n int)         { b.position = n }
func (b *PersistedBook) SetBook(book Book)         { b.book = book }
func (b *PersistedBook) SetCreatedAt(t time.Time)  { b.createdAt = t }
func (b *PersistedBook) SetUpdatedAt(t time.Time)  { b.updatedAt = t }
func (b *PersistedBook) SetDeletedAt(t *time.Time) { b.deletedAt = t }

// Validate checks required fields.
func (b *PersistedBook) Validate() error {
	switch {
	case b.id == "":
		return fmt.Errorf("%w: book id is required", shared.ErrInvalidInput)
	case b.shelfID == "":
		return fmt.Errorf("%w: book shelf id is required", shared.ErrInvalidInput)
	case b.book.Title == "":
		return fmt.Errorf("%w: book title is required", shared.ErrInvalidInput)
	case b.book.NormalizedKey == "":
		return fmt.Errorf("%w: book %q has an empty normalized key", shared.ErrInvalidInput, b.book.Title)
	}
	return nil
}
