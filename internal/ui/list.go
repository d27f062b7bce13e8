package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/libbyreads/internal/formatter"
	"github.com/desertthunder/libbyreads/internal/models"
)

var (
	_ list.Item = shelfItem{}
	_ list.Item = bookItem{}
)

// shelfItem wraps [models.PersistedShelf] to implement [list.Item].
type shelfItem struct {
	shelf *models.PersistedShelf
}

func (i shelfItem) FilterValue() string { return i.shelf.Name() }
func (i shelfItem) Title() string       { return i.shelf.Name() }
func (i shelfItem) Description() string {
	desc := fmt.Sprintf("%d books • %s", i.shelf.BookCount(), i.shelf.Source())
	if ref := i.shelf.SourceRef(); ref != "" {
		desc = fmt.Sprintf("%s (%s)", desc, ref)
	}
	return desc
}

// bookItem wraps [models.ShelfReportEntry] to implement [list.Item].
//
// The filter value includes the overall label so typing "available" narrows the list.
type bookItem struct {
	entry models.ShelfReportEntry
}

func (i bookItem) FilterValue() string {
	return strings.Join([]string{i.entry.Book.Title, i.entry.Book.Author, formatter.OverallLabel(i.entry)}, " ")
}
func (i bookItem) Title() string { return i.entry.Book.Title }
func (i bookItem) Description() string {
	label := styles.Status(i.entry.OverallStatus, false).Render(formatter.OverallLabel(i.entry))
	if i.entry.Book.Author == "" {
		return label
	}
	return fmt.Sprintf("%s • %s", i.entry.Book.Author, label)
}
