// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow over the prediction table:
//  1. [PredictionListView] : Browse the top scored stocks
//  2. [DetailView] : Inspect one prediction (score, levels, regime)
//  3. [PipelineView] : Monitor a pipeline run in real time
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via typed tea.Msg values.
// Progress updates flow through a channel from the PipelineEngine, providing non-blocking status reporting during runs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
