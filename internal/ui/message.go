package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgShelvesLoaded MsgKind = iota
	MsgBooksLoaded
	MsgProgressUpdate
	MsgCheckComplete
)

type shelvesLoaded struct {
	shelves []*models.PersistedShelf
	err     error
}

type booksLoaded struct {
	name  string
	books []models.Book
	err   error
}

type checkComplete struct {
	report *models.ShelfReport
	err    error
}

// shelvesLoadedMsg is the constructor for [MsgShelvesLoaded]
func shelvesLoadedMsg(shelves []*models.PersistedShelf, err error) Msg {
	return Msg{kind: MsgShelvesLoaded, data: shelvesLoaded{shelves, err}}
}

// booksLoadedMsg is the constructor for [MsgBooksLoaded]
func booksLoadedMsg(name string, books []models.Book, err error) Msg {
	return Msg{kind: MsgBooksLoaded, data: booksLoaded{name, books, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// checkCompleteMsg is the constructor for [MsgCheckComplete]
func checkCompleteMsg(report *models.ShelfReport, err error) Msg {
	return Msg{kind: MsgCheckComplete, data: checkComplete{report, err}}
}
