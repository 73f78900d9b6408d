package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/pmckenzie/trustline/cmd/tui/internal/view"
	"github.com/pmckenzie/trustline/internal/audit"
	auditStore "github.com/pmckenzie/trustline/internal/audit/store"
	"github.com/pmckenzie/trustline/internal/config"
	"github.com/pmckenzie/trustline/internal/conversation"
	conversationStore "github.com/pmckenzie/trustline/internal/conversation/store"
	"github.com/pmckenzie/trustline/internal/database"
	"github.com/pmckenzie/trustline/internal/invoice"
	invoiceStore "github.com/pmckenzie/trustline/internal/invoice/store"
	"github.com/pmckenzie/trustline/internal/settings"
	settingsStore "github.com/pmckenzie/trustline/internal/settings/store"
)

type model struct {
	invoiceService *invoice.Service
	actor          invoice.Actor

	currentView View

	invoicesView view.InvoicesModel
}

type View int

const (
	ViewMenu     View = 0
	ViewInvoices View = 1
)

func initialModel() model {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	actorID, err := uuid.Parse(cfg.TUI.ActorID)
	if err != nil {
		slog.Error("TUI_ACTOR_ID must be the administrator account id", "error", err)
		os.Exit(1)
	}

	actor := invoice.Actor{ID: actorID, Role: invoice.RoleAdmin}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(auditStore.New(db))
	conversationSvc := conversation.NewService(conversationStore.New(db))
	settingsSvc := settings.NewService(settingsStore.New(db), cfg.Fees.PolicyTimeout)
	invoiceSvc := invoice.NewService(invoiceStore.New(db), conversationSvc, settingsSvc, auditSvc)

	return model{
		invoiceService: invoiceSvc,
		actor:          actor,
		currentView:    ViewMenu,
		invoicesView:   view.NewInvoicesModel(invoiceSvc, actor),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.currentView == ViewMenu {
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewInvoices
				m.invoicesView = view.NewInvoicesModel(m.invoiceService, m.actor)

				return m, m.invoicesView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewInvoices:
		var newModel tea.Model
		newModel, cmd = m.invoicesView.Update(msg)
		m.invoicesView = newModel.(view.InvoicesModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Trustline Operator Console\n\n" +
				"1. Conversation Invoices\n\n" +
				"q. Quit",
		)
	case ViewInvoices:
		return m.invoicesView.View()
	}

	return "Unknown View"
}

func main() {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run TUI", "error", err)
		os.Exit(1)
	}
}
