package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// ShelfCache stores imported shelves so later checks do not have to scrape Goodreads again.
type ShelfCache struct {
	db      *sql.DB
	shelves *ShelfRepository
	books   *BookRepository
}

// NewShelfCache creates a new ShelfCache with the given database connection
func NewShelfCache(db *sql.DB) *ShelfCache {
	return &ShelfCache{db: db, shelves: NewShelfRepository(db), books: NewBookRepository(db)}
}

// Shelves exposes the shelf repository.
func (c *ShelfCache) Shelves() *ShelfRepository { return c.shelves }

// Store saves books under name in one transaction. An existing shelf with that name keeps
// its id but has its books replaced.
func (c *ShelfCache) Store(name, source, sourceRef string, books []models.Book) (*models.PersistedShelf, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: shelf name", shared.ErrMissingArgument)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	shelf, err := scanShelf(tx.QueryRow(`SELECT `+shelfColumns+` FROM shelves WHERE name = ? AND deleted_at IS NULL`, name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		shelf, err = c.createShelf(tx, name, source, sourceRef, len(books))
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		shelf.SetSource(source, sourceRef)
		shelf.SetBookCount(len(books))
		shelf.SetUpdatedAt(now)
		_, err = tx.Exec(`UPDATE shelves SET source = ?, source_ref = ?, book_count = ?, updated_at = ? WHERE id = ?`,
			source, sourceRef, len(books), now, shelf.ID())
		if err != nil {
			return nil, fmt.Errorf("failed to update shelf: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM books WHERE shelf_id = ?`, shelf.ID()); err != nil {
			return nil, fmt.Errorf("failed to clear shelf books: %w", err)
		}
	}

	for i, b := range books {
		if err := insertBook(tx, models.NewPersistedBook(0, shelf.ID(), i, b)); err != nil {
			return nil, fmt.Errorf("book %d (%s): %w", i+1, b.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit shelf: %w", err)
	}
	return shelf, nil
}

func (c *ShelfCache) createShelf(tx *sql.Tx, name, source, sourceRef string, count int) (*models.PersistedShelf, error) {
	sequence, err := nextSequenceTx(tx, "shelves")
	if err != nil {
		return nil, fmt.Errorf("failed to generate sequence: %w", err)
	}

	shelf := models.NewPersistedShelf(sequence, name, source, sourceRef)
	shelf.SetID(shared.GenerateID())
	shelf.SetBookCount(count)
	if err := shelf.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO shelves (id, sequence, name, source, source_ref, book_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		shelf.ID(), shelf.Sequence(), shelf.Name(), shelf.Source(), shelf.SourceRef(), shelf.BookCount(), shelf.CreatedAt(), shelf.UpdatedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert shelf: %w", err)
	}
	return shelf, nil
}

// Load returns a shelf and its books in import order. Book ids are the persisted ids.
func (c *ShelfCache) Load(name string) (*models.PersistedShelf, []models.Book, error) {
	shelf, err := c.shelves.GetByName(name)
	if err != nil {
		return nil, nil, err
	}

	persisted, err := c.books.ListByShelf(shelf.ID())
	if err != nil {
		return nil, nil, err
	}

	books := make([]models.Book, len(persisted))
	for i, p := range persisted {
		books[i] = p.Book()
	}
	return shelf, books, nil
}

// List returns every live shelf in creation order.
func (c *ShelfCache) List() ([]*models.PersistedShelf, error) {
	return c.shelves.List(nil)
}

// Remove soft-deletes a shelf and its books.
func (c *ShelfCache) Remove(name string) error {
	shelf, err := c.shelves.GetByName(name)
	if err != nil {
		return err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`UPDATE books SET deleted_at = ? WHERE shelf_id = ? AND deleted_at IS NULL`, now, shelf.ID()); err != nil {
		return fmt.Errorf("failed to delete shelf books: %w", err)
	}
	if _, err := tx.Exec(`UPDATE shelves SET deleted_at = ? WHERE id = ?`, now, shelf.ID()); err != nil {
		return fmt.Errorf("failed to delete shelf: %w", err)
	}
	return tx.Commit()
}
