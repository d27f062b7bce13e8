package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

const shelfColumns = `id, sequence, name, source, source_ref, book_count, created_at, updated_at, deleted_at`

// ShelfRepository implements models.Repository[*models.PersistedShelf] for the shelf cache.
//
// Handles shelf CRUD operations with soft delete support and name lookups.
type ShelfRepository struct {
	db *sql.DB
}

// NewShelfRepository creates a new ShelfRepository with the given database connection
func NewShelfRepository(db *sql.DB) *ShelfRepository {
	return &ShelfRepository{db: db}
}

// Create inserts a new shelf into the database with generated ID and sequence
func (r *ShelfRepository) Create(shelf *models.PersistedShelf) error {
	sequence, err := NextSequence(r.db, "shelves")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	shelf.SetID(shared.GenerateID())
	shelf.SetSequence(sequence)

	if err := shelf.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO shelves (id, sequence, name, source, source_ref, book_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		shelf.ID(),
		shelf.Sequence(),
		shelf.Name(),
		shelf.Source(),
		shelf.SourceRef(),
		shelf.BookCount(),
		shelf.CreatedAt(),
		shelf.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert shelf: %w", err)
	}

	return nil
}

// Get retrieves a shelf by ID, excluding soft-deleted shelves
func (r *ShelfRepository) Get(id string) (*models.PersistedShelf, error) {
	query := `SELECT ` + shelfColumns + ` FROM shelves WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id), id)
}

// GetByName retrieves a live shelf by its name
func (r *ShelfRepository) GetByName(name string) (*models.PersistedShelf, error) {
	query := `SELECT ` + shelfColumns + ` FROM shelves WHERE name = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, name), name)
}

// Update modifies an existing shelf in the database
func (r *ShelfRepository) Update(shelf *models.PersistedShelf) error {
	if err := shelf.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	shelf.SetUpdatedAt(now)

	query := `
		UPDATE shelves
		SET name = ?, source = ?, source_ref = ?, book_count = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		shelf.Name(),
		shelf.Source(),
		shelf.SourceRef(),
		shelf.BookCount(),
		now,
		shelf.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update shelf: %w", err)
	}

	return expectRow(result, shared.ErrShelfNotFound, shelf.ID())
}

// Delete soft-deletes a shelf by ID
func (r *ShelfRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE shelves SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete shelf: %w", err)
	}

	return expectRow(result, shared.ErrShelfNotFound, id)
}

// List retrieves all shelves matching the given criteria, excluding soft-deleted shelves.
// Supported criteria: "source".
func (r *ShelfRepository) List(criteria map[string]any) ([]*models.PersistedShelf, error) {
	query := `SELECT ` + shelfColumns + ` FROM shelves WHERE deleted_at IS NULL`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shelves: %w", err)
	}
	defer rows.Close()

	var shelves []*models.PersistedShelf
	for rows.Next() {
		shelf, err := scanShelf(rows)
		if err != nil {
			return nil, err
		}
		shelves = append(shelves, shelf)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return shelves, nil
}

func (r *ShelfRepository) scan(row *sql.Row, key string) (*models.PersistedShelf, error) {
	shelf, err := scanShelf(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrShelfNotFound, key)
	}
	return shelf, err
}

// scanShelf scans a row into a [models.PersistedShelf]
func scanShelf(s scanner) (*models.PersistedShelf, error) {
	var (
		id        string
		sequence  int
		name      string
		source    string
		sourceRef string
		bookCount int
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := s.Scan(&id, &sequence, &name, &source, &sourceRef, &bookCount, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shelf: %w", err)
	}

	shelf := models.NewPersistedShelf(sequence, name, source, sourceRef)
	shelf.SetID(id)
	shelf.SetBookCount(bookCount)
	shelf.SetCreatedAt(createdAt)
	shelf.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		shelf.SetDeletedAt(&deletedAt.Time)
	}

	return shelf, nil
}

// expectRow turns "no rows affected" into notFound.
func expectRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted", notFound, id)
	}
	return nil
}
