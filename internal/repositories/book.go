package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

const bookColumns = `id, sequence, shelf_id, position, title, author, isbn, normalized_key, cover_url, date_added, created_at, updated_at, deleted_at`

// BookRepository implements models.Repository[*models.PersistedBook] for the books of cached shelves.
type BookRepository struct {
	db *sql.DB
}

// NewBookRepository creates a new BookRepository with the given database connection
func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create inserts a new book with generated ID and sequence
func (r *BookRepository) Create(book *models.PersistedBook) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertBook(tx, book); err != nil {
		return err
	}
	return tx.Commit()
}

// insertBook assigns an id and sequence to book and inserts it inside tx.
func insertBook(tx *sql.Tx, book *models.PersistedBook) error {
	sequence, err := nextSequenceTx(tx, "books")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	book.SetID(shared.GenerateID())
	book.SetSequence(sequence)

	if err := book.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	b := book.Book()
	query := `
		INSERT INTO books (id, sequence, shelf_id, position, title, author, isbn, normalized_key, cover_url, date_added, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		book.ID(),
		book.Sequence(),
		book.ShelfID(),
		book.Position(),
		b.Title,
		b.Author,
		b.ISBN,
		b.NormalizedKey,
		b.CoverURL,
		nullTime(b.DateAdded),
		book.CreatedAt(),
		book.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}

	return nil
}

// Get retrieves a book by ID, excluding soft-deleted books
func (r *BookRepository) Get(id string) (*models.PersistedBook, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = ? AND deleted_at IS NULL`

	book, err := scanBook(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrBookNotFound, id)
	}
	return book, err
}

// Update modifies a book's bibliographic fields and position. The normalized key is
// re-derived by [models.NewBook] before the book reaches here, never by the database.
func (r *BookRepository) Update(book *models.PersistedBook) error {
	if err := book.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	book.SetUpdatedAt(now)
	b := book.Book()

	query := `
		UPDATE books
		SET position = ?, title = ?, author = ?, isbn = ?, normalized_key = ?, cover_url = ?, date_added = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		book.Position(),
		b.Title,
		b.Author,
		b.ISBN,
		b.NormalizedKey,
		b.CoverURL,
		nullTime(b.DateAdded),
		now,
		book.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}

	return expectRow(result, shared.ErrBookNotFound, book.ID())
}

// Delete soft-deletes a book by ID
func (r *BookRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE books SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}

	return expectRow(result, shared.ErrBookNotFound, id)
}

// List retrieves books matching the given criteria in shelf order, excluding soft-deleted books.
// Supported criteria: "shelf_id", "isbn".
func (r *BookRepository) List(criteria map[string]any) ([]*models.PersistedBook, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE deleted_at IS NULL`
	args := []any{}

	if shelfID, ok := criteria["shelf_id"].(string); ok && shelfID != "" {
		query += " AND shelf_id = ?"
		args = append(args, shelfID)
	}

	if isbn, ok := criteria["isbn"].(string); ok && isbn != "" {
		query += " AND isbn = ?"
		args = append(args, isbn)
	}

	query += " ORDER BY shelf_id, position ASC, sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer rows.Close()

	var books []*models.PersistedBook
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return books, nil
}

// ListByShelf returns the books of a shelf in import order.
func (r *BookRepository) ListByShelf(shelfID string) ([]*models.PersistedBook, error) {
	return r.List(map[string]any{"shelf_id": shelfID})
}

// scanBook scans a row into a [models.PersistedBook]
func scanBook(s scanner) (*models.PersistedBook, error) {
	var (
		id            string
		sequence      int
		shelfID       string
		position      int
		title         string
		author        string
		isbn          string
		normalizedKey string
		coverURL      string
		dateAdded     sql.NullTime
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := s.Scan(&id, &sequence, &shelfID, &position, &title, &author, &isbn, &normalizedKey, &coverURL, &dateAdded, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}

	b := models.Book{
		ID:            id,
		Title:         title,
		Author:        author,
		ISBN:          isbn,
		NormalizedKey: normalizedKey,
		CoverURL:      coverURL,
	}
	if dateAdded.Valid {
		b.DateAdded = dateAdded.Time
	}

	book := models.NewPersistedBook(sequence, shelfID, position, b)
	book.SetID(id)
	book.SetCreatedAt(createdAt)
	book.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		book.SetDeletedAt(&deletedAt.Time)
	}

	return book, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
