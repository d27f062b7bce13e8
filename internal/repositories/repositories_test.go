package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testBooks() []models.Book {
	dune := models.NewBook("", "Dune", "Frank Herbert", "9780441013593")
	dune.DateAdded = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	dune.CoverURL = "https://images.example.com/dune.jpg"
	return []models.Book{
		dune,
		models.NewBook("", "A Wizard of Earthsea", "Ursula K. Le Guin", ""),
		models.NewBook("", "Piranesi", "Susanna Clarke", "163557563X"),
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "shelves")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "nope"); err == nil {
		t.Error("expected error for missing sequence table")
	}
}

func TestShelfRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewShelfRepository(db)
		shelf := models.NewPersistedShelf(0, "to-read", models.SourceGoodreads, "12345")

		if err := repo.Create(shelf); err != nil {
			t.Fatalf("failed to create shelf: %v", err)
		}
		if shelf.ID() == "" || shelf.Sequence() != 1 {
			t.Errorf("expected id and sequence to be assigned, got %q/%d", shelf.ID(), shelf.Sequence())
		}

		got, err := repo.Get(shelf.ID())
		if err != nil {
			t.Fatalf("failed to get shelf: %v", err)
		}
		if got.Name() != "to-read" || got.Source() != models.SourceGoodreads || got.SourceRef() != "12345" {
			t.Errorf("unexpected shelf %+v", got)
		}

		byName, err := repo.GetByName("to-read")
		if err != nil || byName.ID() != shelf.ID() {
			t.Errorf("GetByName mismatch: %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewShelfRepository(db).Create(models.NewPersistedShelf(0, "", models.SourceManual, ""))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Duplicate Name", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewShelfRepository(db)
		if err := repo.Create(models.NewPersistedShelf(0, "to-read", models.SourceManual, "")); err != nil {
			t.Fatalf("failed to create shelf: %v", err)
		}
		if err := repo.Create(models.NewPersistedShelf(0, "to-read", models.SourceManual, "")); err == nil {
			t.Error("expected unique constraint error for a second live shelf with the same name")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewShelfRepository(db)
		shelf := models.NewPersistedShelf(0, "to-read", models.SourceManual, "")
		if err := repo.Create(shelf); err != nil {
			t.Fatalf("failed to create shelf: %v", err)
		}

		shelf.SetName("holds")
		shelf.SetBookCount(7)
		if err := repo.Update(shelf); err != nil {
			t.Fatalf("failed to update shelf: %v", err)
		}

		got, err := repo.Get(shelf.ID())
		if err != nil {
			t.Fatalf("failed to get shelf: %v", err)
		}
		if got.Name() != "holds" || got.BookCount() != 7 {
			t.Errorf("update not persisted: %s/%d", got.Name(), got.BookCount())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewShelfRepository(db)
		shelf := models.NewPersistedShelf(0, "to-read", models.SourceManual, "")
		if err := repo.Create(shelf); err != nil {
			t.Fatalf("failed to create shelf: %v", err)
		}

		if err := repo.Delete(shelf.ID()); err != nil {
			t.Fatalf("failed to delete shelf: %v", err)
		}
		if _, err := repo.Get(shelf.ID()); !errors.Is(err, shared.ErrShelfNotFound) {
			t.Errorf("expected ErrShelfNotFound after delete, got %v", err)
		}
		if err := repo.Delete(shelf.ID()); !errors.Is(err, shared.ErrShelfNotFound) {
			t.Errorf("expected ErrShelfNotFound on second delete, got %v", err)
		}

		if err := repo.Create(models.NewPersistedShelf(0, "to-read", models.SourceManual, "")); err != nil {
			t.Errorf("name of a deleted shelf should be reusable: %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewShelfRepository(db)
		for _, s := range []*models.PersistedShelf{
			models.NewPersistedShelf(0, "a", models.SourceGoodreads, "1"),
			models.NewPersistedShelf(0, "b", models.SourceGoodreadsCSV, "export.csv"),
			models.NewPersistedShelf(0, "c", models.SourceGoodreads, "2"),
		} {
			if err := repo.Create(s); err != nil {
				t.Fatalf("failed to create shelf: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list shelves: %v", err)
		}
		if len(all) != 3 || all[0].Name() != "a" || all[2].Name() != "c" {
			t.Errorf("expected shelves in sequence order, got %d", len(all))
		}

		scraped, err := repo.List(map[string]any{"source": models.SourceGoodreads})
		if err != nil {
			t.Fatalf("failed to list shelves: %v", err)
		}
		if len(scraped) != 2 {
			t.Errorf("expected 2 goodreads shelves, got %d", len(scraped))
		}
	})
}

func TestBookRepository(t *testing.T) {
	t.Run("CRUD", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		shelf := models.NewPersistedShelf(0, "to-read", models.SourceManual, "")
		if err := NewShelfRepository(db).Create(shelf); err != nil {
			t.Fatalf("failed to create shelf: %v", err)
		}

		repo := NewBookRepository(db)
		book := models.NewPersistedBook(0, shelf.ID(), 0, testBooks()[0])
		if err := repo.Create(book); err != nil {
			t.Fatalf("failed to create book: %v", err)
		}

		got, err := repo.Get(book.ID())
		if err != nil {
			t.Fatalf("failed to get book: %v", err)
		}
		b := got.Book()
		if b.ID != book.ID() || b.Title != "Dune" || b.ISBN != "9780441013593" || b.NormalizedKey != "dune|frank herbert" {
			t.Errorf("unexpected book %+v", b)
		}
		if !b.DateAdded.Equal(time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("date added not round-tripped: %v", b.DateAdded)
		}

		book.SetPosition(4)
		if err := repo.Update(book); err != nil {
			t.Fatalf("failed to update book: %v", err)
		}
		got, _ = repo.Get(book.ID())
		if got.Position() != 4 {
			t.Errorf("expected position 4, got %d", got.Position())
		}

		if err := repo.Delete(book.ID()); err != nil {
			t.Fatalf("failed to delete book: %v", err)
		}
		if _, err := repo.Get(book.ID()); !errors.Is(err, shared.ErrBookNotFound) {
			t.Errorf("expected ErrBookNotFound, got %v", err)
		}
	})

	t.Run("Foreign Key", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewBookRepository(db).Create(models.NewPersistedBook(0, "missing-shelf", 0, testBooks()[0]))
		if err == nil {
			t.Error("expected foreign key error for unknown shelf")
		}
	})

	t.Run("Empty Key", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewBookRepository(db).Create(models.NewPersistedBook(0, "s", 0, models.NewBook("", "???", "", "")))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestShelfCache(t *testing.T) {
	t.Run("Store and Load", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		cache := NewShelfCache(db)
		shelf, err := cache.Store("to-read", models.SourceGoodreads, "12345", testBooks())
		if err != nil {
			t.Fatalf("failed to store shelf: %v", err)
		}
		if shelf.BookCount() != 3 {
			t.Errorf("expected book count 3, got %d", shelf.BookCount())
		}

		loaded, books, err := cache.Load("to-read")
		if err != nil {
			t.Fatalf("failed to load shelf: %v", err)
		}
		if loaded.ID() != shelf.ID() {
			t.Errorf("loaded a different shelf")
		}
		if len(books) != 3 {
			t.Fatalf("expected 3 books, got %d", len(books))
		}
		for i, want := range []string{"Dune", "A Wizard of Earthsea", "Piranesi"} {
			if books[i].Title != want {
				t.Errorf("book %d: expected %q, got %q", i, want, books[i].Title)
			}
			if books[i].ID == "" {
				t.Errorf("book %d has no id", i)
			}
		}
	})

	t.Run("Store Replaces Books", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		cache := NewShelfCache(db)
		first, err := cache.Store("to-read", models.SourceGoodreads, "12345", testBooks())
		if err != nil {
			t.Fatalf("failed to store shelf: %v", err)
		}

		second, err := cache.Store("to-read", models.SourceGoodreadsCSV, "export.csv", testBooks()[:1])
		if err != nil {
			t.Fatalf("failed to restore shelf: %v", err)
		}
		if second.ID() != first.ID() {
			t.Error("re-import should keep the shelf id")
		}

		shelf, books, err := cache.Load("to-read")
		if err != nil {
			t.Fatalf("failed to load shelf: %v", err)
		}
		if len(books) != 1 || shelf.BookCount() != 1 || shelf.Source() != models.SourceGoodreadsCSV {
			t.Errorf("expected replaced shelf, got %d books from %s", len(books), shelf.Source())
		}
	})

	t.Run("Store Rejects Bad Book", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		cache := NewShelfCache(db)
		books := append(testBooks(), models.NewBook("", "!!!", "", ""))
		if _, err := cache.Store("to-read", models.SourceManual, "", books); !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}

		if _, _, err := cache.Load("to-read"); !errors.Is(err, shared.ErrShelfNotFound) {
			t.Errorf("failed store should leave nothing behind, got %v", err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		cache := NewShelfCache(db)
		if _, err := cache.Store("to-read", models.SourceManual, "", testBooks()); err != nil {
			t.Fatalf("failed to store shelf: %v", err)
		}
		if err := cache.Remove("to-read"); err != nil {
			t.Fatalf("failed to remove shelf: %v", err)
		}

		shelves, err := cache.List()
		if err != nil {
			t.Fatalf("failed to list shelves: %v", err)
		}
		if len(shelves) != 0 {
			t.Errorf("expected no shelves, got %d", len(shelves))
		}
		if err := cache.Remove("to-read"); !errors.Is(err, shared.ErrShelfNotFound) {
			t.Errorf("expected ErrShelfNotFound, got %v", err)
		}
	})

	t.Run("Missing Name", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewShelfCache(db).Store("", models.SourceManual, "", nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
