package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/omrelabs/omre/internal/models"
	"github.com/omrelabs/omre/internal/repositories"
	"github.com/omrelabs/omre/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PredictionListView ViewState = iota
	DetailView
	PipelineView
)

// Model represents the TUI application state.
type Model struct {
	ctx            context.Context
	view           ViewState
	predictions    *repositories.PredictionRepository
	engine         *tasks.PipelineEngine
	width          int
	height         int
	predictionList list.Model
	selected       *models.Prediction
	progressChan   chan tasks.ProgressUpdate
	progress       tasks.ProgressUpdate
	result         *tasks.PipelineResult
	err            error
	help           help.Model
	keys           keyMap
}

type predictionsFetchedMsg struct {
	predictions []models.Prediction
	err         error
}

type progressUpdateMsg tasks.ProgressUpdate

type pipelineDoneMsg struct {
	result *tasks.PipelineResult
	err    error
}

// NewModel creates a new TUI model with the provided dependencies. The
// engine may be nil; the refresh binding is then disabled.
func NewModel(ctx context.Context, predictions *repositories.PredictionRepository, engine *tasks.PipelineEngine) *Model {
	return &Model{
		ctx:         ctx,
		view:        PredictionListView,
		predictions: predictions,
		engine:      engine,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init initializes the TUI by loading the prediction table.
func (m *Model) Init() tea.Cmd {
	return m.fetchPredictions()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.predictionList.Width() == 0 {
			m.predictionList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PredictionListView:
			return m.handleListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		case PipelineView:
			return m.handlePipelineKeys(msg)
		}

	case predictionsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(msg.predictions))
		for i, prediction := range msg.predictions {
			items[i] = predictionItem{prediction: prediction}
		}
		m.predictionList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.predictionList.Title = "Top Predictions"
		m.predictionList.SetSize(m.width-4, m.height-8)
		m.view = PredictionListView
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case pipelineDoneMsg:
		m.result = msg.result
		m.err = msg.err
		if m.progressChan != nil {
			m.progressChan = nil
		}
		if msg.err != nil {
			return m, nil
		}
		return m, m.fetchPredictions()
	}

	return m.updateList(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != PipelineView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PredictionListView:
		return m.renderList()
	case DetailView:
		return m.renderDetail()
	case PipelineView:
		return m.renderPipeline()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		if m.engine != nil {
			m.view = PipelineView
			return m, m.startPipeline()
		}
	case "enter":
		selected := m.predictionList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(predictionItem); ok {
				prediction := item.prediction
				m.selected = &prediction
				m.view = DetailView
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.predictionList, cmd = m.predictionList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = PredictionListView
		m.selected = nil
	}
	return m, nil
}

func (m *Model) handlePipelineKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		if m.progressChan == nil {
			m.view = PredictionListView
			m.err = nil
		}
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.view == PredictionListView {
		m.predictionList, cmd = m.predictionList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchPredictions() tea.Cmd {
	return func() tea.Msg {
		predictions, err := m.predictions.Top(10)
		return predictionsFetchedMsg{predictions: predictions, err: err}
	}
}

func (m *Model) startPipeline() tea.Cmd {
	m.result = nil
	m.err = nil
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	progressChan := m.progressChan
	go func() {
		result, err := m.engine.Run(m.ctx, progressChan)
		m.result = result
		m.err = err
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return pipelineDoneMsg{result: m.result, err: m.err}
		}

		update, ok := <-m.progressChan
		if !ok {
			return pipelineDoneMsg{result: m.result, err: m.err}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.predictionList.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		m.view = PredictionListView
		return m.renderList()
	}

	p := m.selected
	title := styles.title.Render(p.Tradingsymbol) + " " + signalStyle(p.Signal).Render(string(p.Signal))
	info := fmt.Sprintf(
		"\nScore: %.4f\nLast close: %.2f\nStop loss: %.2f\nTarget: %.2f\nMarket regime: %s\nGenerated: %s\n",
		p.Score, p.LastClose, p.StopLoss, p.Target, p.MarketRegime,
		p.GeneratedAt.Format("02 Jan 2006 15:04 MST"))

	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderPipeline() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Pipeline failed: %v\n\nPress esc to go back", m.err))
	}

	if m.result != nil && m.progressChan == nil {
		done := styles.ok.Render("✓ Pipeline complete")
		info := fmt.Sprintf("\nInstruments: %d\nNew bars: %d\nScored: %d (%s)\n",
			m.result.Instruments, m.result.CandlesAdded, m.result.Scored, m.result.Regime)
		return fmt.Sprintf("%s\n%s", done, info)
	}

	title := styles.title.Render("Running Pipeline")

	var phase string
	switch m.progress.Phase {
	case tasks.SyncInstruments:
		phase = "Syncing instrument master..."
	case tasks.FetchHistory:
		phase = fmt.Sprintf("Fetching history (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ComputeFeatures:
		phase = fmt.Sprintf("Computing features (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ScorePredictions:
		phase = "Scoring..."
	default:
		phase = "Working..."
	}

	hint := styles.help.Render("q quit")

	return fmt.Sprintf("%s\n\n%s\n%s\n\n%s", title, phase, m.progress.Message, hint)
}

// signalStyle maps a trade signal to its palette color.
func signalStyle(s models.Signal) lipgloss.Style {
	switch s {
	case models.SignalBuy:
		return styles.ok
	case models.SignalAvoid:
		return styles.err
	default:
		return styles.warn
	}
}
