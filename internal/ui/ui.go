package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/libbyreads/internal/formatter"
	"github.com/desertthunder/libbyreads/internal/models"
	"github.com/desertthunder/libbyreads/internal/shared"
	"github.com/desertthunder/libbyreads/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ShelfListView ViewState = iota
	CheckView
	ResultView
	DetailView
)

// ShelfStore lists and loads cached shelves. [repositories.ShelfCache] is the production implementation.
type ShelfStore interface {
	List() ([]*models.PersistedShelf, error)
	Load(name string) (*models.PersistedShelf, []models.Book, error)
}

// Checker resolves books against library targets.
type Checker interface {
	ResolveShelf(
		ctx context.Context,
		books []models.Book,
		targets []models.LibraryTarget,
		opts tasks.RunOpts,
		progress chan<- tasks.ProgressUpdate,
	) (*models.ShelfReport, error)
}

// Deps are the collaborators of a [Model].
type Deps struct {
	Store   ShelfStore
	Checker Checker
	Targets []models.LibraryTarget
	Run     tasks.RunOpts
	// Shelf, when set, is checked immediately instead of showing the shelf list.
	Shelf string
}

const progressBuffer = 64

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	deps   Deps
	view   ViewState
	width  int
	height int

	shelfList  list.Model
	resultList list.Model

	shelfName    string
	books        []models.Book
	progressChan chan tasks.ProgressUpdate
	doneChan     chan checkComplete
	progress     tasks.ProgressUpdate
	bar          progress.Model
	spinner      spinner.Model

	report   *models.ShelfReport
	selected *models.ShelfReportEntry
	err      error
	help     help.Model
	keys     keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, deps Deps) *Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		ctx:        ctx,
		deps:       deps,
		view:       ShelfListView,
		shelfList:  newList("Cached Shelves", nil),
		resultList: newList("", nil),
		bar:        progress.New(progress.WithDefaultGradient()),
		spinner:    sp,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	return l
}

// State returns the active view.
func (m *Model) State() ViewState { return m.view }

// Report returns the last completed report, or nil.
func (m *Model) Report() *models.ShelfReport { return m.report }

// Err returns the error currently shown, if any.
func (m *Model) Err() error { return m.err }

// Init loads the shelf list, or the configured shelf directly.
func (m *Model) Init() tea.Cmd {
	if m.deps.Shelf != "" {
		m.view = CheckView
		return tea.Batch(m.spinner.Tick, m.loadBooks(m.deps.Shelf))
	}
	return m.loadShelves()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.shelfList.SetSize(msg.Width-4, msg.Height-6)
		m.resultList.SetSize(msg.Width-4, msg.Height-6)
		m.bar.Width = min(max(msg.Width-8, 10), 80)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ShelfListView:
			return m.handleShelfListKeys(msg)
		case CheckView:
			return m.handleCheckKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != CheckView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgShelvesLoaded:
		data := msg.data.(shelvesLoaded)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.shelves))
		for i, s := range data.shelves {
			items[i] = shelfItem{shelf: s}
		}
		m.shelfList.SetItems(items)
		return m, nil

	case MsgBooksLoaded:
		data := msg.data.(booksLoaded)
		if data.err != nil {
			m.err = data.err
			m.view = ShelfListView
			return m, nil
		}
		m.shelfName = data.name
		m.books = data.books
		return m, m.startCheck()

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgCheckComplete:
		data := msg.data.(checkComplete)
		m.progressChan, m.doneChan = nil, nil
		if data.err != nil {
			m.err = data.err
			m.view = ShelfListView
			return m, nil
		}
		m.report = data.report
		m.showResults()
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case ShelfListView:
		body = m.renderShelfList()
	case CheckView:
		body = m.renderCheck()
	case ResultView:
		body = m.renderResults()
	case DetailView:
		body = m.renderDetail()
	}

	if m.err != nil {
		body = styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + body
	}
	return body
}

func (m *Model) handleShelfListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.shelfList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.shelfList.SelectedItem().(shelfItem); ok {
			m.err = nil
			m.view = CheckView
			return m, tea.Batch(m.spinner.Tick, m.loadBooks(item.shelf.Name()))
		}
		return m, nil
	}
	return m.updateLists(msg)
}

func (m *Model) handleCheckKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.resultList.FilterState() == list.Filtering {
		return m.updateLists(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.resultList.SelectedItem().(bookItem); ok {
			entry := item.entry
			m.selected = &entry
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.recheck):
		m.view = CheckView
		m.report = nil
		return m, tea.Batch(m.spinner.Tick, m.startCheck())
	case key.Matches(msg, m.keys.back) && m.resultList.FilterState() == list.Unfiltered:
		m.view = ShelfListView
		return m, m.loadShelves()
	}
	return m.updateLists(msg)
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.selected = nil
		m.view = ResultView
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case ShelfListView:
		m.shelfList, cmd = m.shelfList.Update(msg)
	case ResultView:
		m.resultList, cmd = m.resultList.Update(msg)
	}
	return m, cmd
}

func (m *Model) showResults() {
	items := make([]list.Item, len(m.report.Entries))
	for i, e := range m.report.Entries {
		items[i] = bookItem{entry: e}
	}
	m.resultList = newList(fmt.Sprintf("Availability for '%s'", m.shelfName), items)
	if m.width > 0 {
		m.resultList.SetSize(m.width-4, m.height-6)
	}
	m.view = ResultView
}

func (m *Model) loadShelves() tea.Cmd {
	return func() tea.Msg {
		shelves, err := m.deps.Store.List()
		return shelvesLoadedMsg(shelves, err)
	}
}

func (m *Model) loadBooks(name string) tea.Cmd {
	return func() tea.Msg {
		_, books, err := m.deps.Store.Load(name)
		if err == nil && len(books) == 0 {
			err = fmt.Errorf("%w: %s", shared.ErrEmptyShelf, name)
		}
		return booksLoadedMsg(name, books, err)
	}
}

// startCheck runs the engine in the background. The report arrives on doneChan once
// progressChan is closed.
func (m *Model) startCheck() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, progressBuffer)
	doneChan := make(chan checkComplete, 1)
	m.progressChan, m.doneChan = progressChan, doneChan
	m.progress = tasks.ProgressUpdate{}

	books, targets, opts := m.books, m.deps.Targets, m.deps.Run
	go func() {
		report, err := m.deps.Checker.ResolveShelf(m.ctx, books, targets, opts, progressChan)
		doneChan <- checkComplete{report, err}
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}
		update, ok := <-progressChan
		if !ok {
			done := <-doneChan
			return checkCompleteMsg(done.report, done.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderShelfList() string {
	if len(m.shelfList.Items()) == 0 {
		return fmt.Sprintf("%s\n\n%s\n\n%s",
			styles.title.Render("Cached Shelves"),
			styles.help.Render("No shelves yet. Import one with `libbyreads shelf import goodreads`."),
			m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.shelfList.View(), helpView)
}

func (m *Model) renderCheck() string {
	title := styles.title.Render(fmt.Sprintf("Checking '%s'", m.shelfName))

	percent := 0.0
	if m.progress.Total > 0 {
		percent = float64(m.progress.Step) / float64(m.progress.Total)
	}

	msg := m.progress.Message
	if msg == "" {
		msg = "Loading shelf..."
	}
	return fmt.Sprintf("%s\n\n%s %s\n\n%s", title, m.spinner.View(), msg, m.bar.ViewAs(percent))
}

func (m *Model) renderResults() string {
	summary := m.report.Summary()
	line := styles.help.Render(fmt.Sprintf("%d available • %d holdable • %d not available • %d unknown",
		summary[models.StatusAvailable], summary[models.StatusHoldable], summary[models.StatusUnavailable], summary[models.StatusUnknown]))

	filterKey := key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter"))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, filterKey, m.keys.recheck, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.resultList.View(), line, helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	e := m.selected

	var b strings.Builder
	b.WriteString(styles.title.Render(e.Book.Title))
	b.WriteString("\n")
	if e.Book.Author != "" {
		b.WriteString(fmt.Sprintf("Author: %s\n", e.Book.Author))
	}
	if e.Book.ISBN != "" {
		b.WriteString(fmt.Sprintf("ISBN: %s\n", e.Book.ISBN))
	}
	b.WriteString(fmt.Sprintf("Overall: %s\n\n", styles.Status(e.OverallStatus, false).Render(formatter.OverallLabel(*e))))

	for _, r := range e.PerLibraryResults {
		name := r.LibraryID
		if m.report != nil {
			name = m.report.TargetName(r.LibraryID)
		}
		b.WriteString(fmt.Sprintf("  %s: %s\n", name, styles.Status(r.Status, r.Failed()).Render(formatter.Label(r))))

		var details []string
		if r.MatchReason != models.ReasonNone {
			details = append(details, "match "+string(r.MatchReason))
		}
		if r.Score > 0 {
			details = append(details, fmt.Sprintf("score %.2f", r.Score))
		}
		if len(r.MatchedFormats) > 0 {
			for _, f := range models.DefaultFormatPriority {
				if s, ok := r.MatchedFormats[f]; ok {
					details = append(details, fmt.Sprintf("%s %s", f, s))
				}
			}
		}
		if r.Attempts > 1 {
			details = append(details, fmt.Sprintf("%d attempts", r.Attempts))
		}
		if len(details) > 0 {
			b.WriteString(styles.help.Render("    "+strings.Join(details, " • ")) + "\n")
		}
		if r.Err != nil {
			b.WriteString(styles.help.Render("    "+r.Err.Error()) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit}))
	return b.String()
}
