// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI checks a cached shelf against every configured library:
//  1. [ShelfListView] : Pick one of the shelves imported with `shelf import`
//  2. [CheckView] : Watch lookups finish with a progress bar
//  3. [ResultView] : Browse books by overall availability; "/" filters by title, author or status
//  4. [DetailView] : One line per library for the selected book
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the engine, which never blocks on a slow UI.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
