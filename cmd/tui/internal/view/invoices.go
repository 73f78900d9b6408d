package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/pmckenzie/trustline/internal/invoice"
)

type invoicesState int

const (
	invoicesStatePrompt invoicesState = iota
	invoicesStateBrowse
	invoicesStateConfirm
)

// InvoicesModel is the dispute-resolution surface: it lists the invoices of a
// conversation and lets the operator release or cancel one, acting as the
// configured administrator account.
type InvoicesModel struct {
	CommonModel
	invoiceService *invoice.Service
	actor          invoice.Actor

	state invoicesState

	conversationInput textinput.Model
	conversationID    uuid.UUID

	table table.Model
	invs  []*invoice.Invoice

	form       *huh.Form
	pendingOp  invoice.Op
	confirmed bool

	loading bool
	status  string
}

func NewInvoicesModel(invoiceSvc *invoice.Service, actor invoice.Actor) InvoicesModel {
	ti := textinput.New()
	ti.Placeholder = "conversation id (uuid)"
	ti.Width = 40
	ti.Focus()

	columns := []table.Column{
		{Title: "Created", Width: 12},
		{Title: "Status", Width: 10},
		{Title: "Amount", Width: 14},
		{Title: "Fee", Width: 12},
		{Title: "Escrow", Width: 14},
		{Title: "Description", Width: 36},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return InvoicesModel{
		invoiceService:    invoiceSvc,
		actor:             actor,
		conversationInput: ti,
		table:             t,
	}
}

func (m InvoicesModel) Title() string { return "Conversation Invoices" }

func (m InvoicesModel) ShortHelp() string {
	switch m.state {
	case invoicesStateBrowse:
		return "Esc: new conversation | r: refresh | R: release | c: cancel"
	case invoicesStateConfirm:
		return "Confirm | Esc: abort"
	}

	return "Enter: load invoices | Esc: back"
}

func (m InvoicesModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m InvoicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadInvoicesMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			m.state = invoicesStatePrompt
			m.conversationInput.Focus()

			return m, nil
		}

		m.invs = msg.invs
		m.status = ""
		m.state = invoicesStateBrowse
		m.refreshTable()

		return m, nil

	case transitionDoneMsg:
		m.state = invoicesStateBrowse
		m.form = nil
		m.table.Focus()

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
			return m, nil
		}

		m.status = fmt.Sprintf("Invoice %s is now %s", msg.inv.ID, msg.inv.Status)

		return m, m.loadInvoicesCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 12)
		return m, nil
	}

	switch m.state {
	case invoicesStatePrompt:
		return m.updatePrompt(msg)
	case invoicesStateBrowse:
		return m.updateBrowse(msg)
	case invoicesStateConfirm:
		return m.updateConfirm(msg)
	}

	return m, nil
}

func (m InvoicesModel) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "enter":
			id, err := uuid.Parse(strings.TrimSpace(m.conversationInput.Value()))
			if err != nil {
				m.status = "Not a valid conversation id"
				return m, nil
			}

			m.conversationID = id
			m.loading = true
			m.status = ""

			return m, m.loadInvoicesCmd()
		}
	}

	var cmd tea.Cmd
	m.conversationInput, cmd = m.conversationInput.Update(msg)

	return m, cmd
}

func (m InvoicesModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			m.state = invoicesStatePrompt
			m.conversationInput.Focus()

			return m, nil
		case "r":
			m.loading = true
			return m, m.loadInvoicesCmd()
		case "R":
			return m.enterConfirm(invoice.OpRelease)
		case "c":
			return m.enterConfirm(invoice.OpCancel)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m InvoicesModel) enterConfirm(op invoice.Op) (tea.Model, tea.Cmd) {
	inv := m.selected()
	if inv == nil {
		return m, nil
	}

	if inv.Terminal() {
		m.status = fmt.Sprintf("Invoice is already %s", inv.Status)
		return m, nil
	}

	m.pendingOp = op
	m.confirmed = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("%s invoice for %s?", strings.ToUpper(string(op)[:1])+string(op)[1:],
					FormatAmount(inv.AmountCents, inv.Currency))).
				Description(inv.Description).
				Value(&m.confirmed),
		),
	).WithWidth(48).WithShowHelp(false)

	m.state = invoicesStateConfirm
	m.table.Blur()

	return m, m.form.Init()
}

func (m InvoicesModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		if keyMsg.Type == tea.KeyEsc {
			m.state = invoicesStateBrowse
			m.form = nil
			m.table.Focus()

			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if !m.confirmed {
		m.state = invoicesStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	return m, m.transitionCmd(m.pendingOp)
}

func (m InvoicesModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading invoices...")
	}

	if m.state == invoicesStatePrompt {
		content := "Conversation\n\n" + m.conversationInput.View()
		if m.status != "" {
			content += "\n\n" + lipgloss.NewStyle().Faint(true).Render(m.status)
		}

		return lipgloss.NewStyle().Padding(2).Render(content)
	}

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render("Conversation: "+m.conversationID.String()),
		tableView,
	)

	if panel := m.detailPanel(); panel != "" {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func (m InvoicesModel) detailPanel() string {
	inv := m.selected()
	if inv == nil {
		return ""
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Invoice %s\n\n", inv.ID)
	fmt.Fprintf(&b, "Status:    %s\n", inv.Status)
	fmt.Fprintf(&b, "Amount:    %s\n", FormatAmount(inv.AmountCents, inv.Currency))

	if inv.Status != invoice.StatusSent {
		fmt.Fprintf(&b, "Fee:       %s (rate %s)\n", FormatAmount(inv.ServiceFeeCents, inv.Currency), inv.FeeRate)
		fmt.Fprintf(&b, "Escrow:    %s in %q\n", FormatAmount(inv.EscrowCents, inv.Currency), inv.EscrowAccount)
	}

	if inv.RefundedCents > 0 {
		fmt.Fprintf(&b, "Refunded:  %s\n", FormatAmount(inv.RefundedCents, inv.Currency))
	}

	fmt.Fprintf(&b, "\nCreator:   %s\n", inv.CreatorID)
	fmt.Fprintf(&b, "Recipient: %s\n", inv.RecipientID)
	fmt.Fprintf(&b, "Created:   %s\n", FormatDate(inv.CreatedAt))

	if inv.AcceptedAt != nil {
		fmt.Fprintf(&b, "Accepted:  %s\n", FormatDate(*inv.AcceptedAt))
	}

	if inv.ReleasedAt != nil {
		fmt.Fprintf(&b, "Released:  %s\n", FormatDate(*inv.ReleasedAt))
	}

	if inv.CancelledAt != nil {
		fmt.Fprintf(&b, "Cancelled: %s\n", FormatDate(*inv.CancelledAt))
	}

	body := b.String()
	if m.state == invoicesStateConfirm && m.form != nil {
		body += "\n" + m.form.View()
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Width(52).
		Render(body)
}

func (m InvoicesModel) selected() *invoice.Invoice {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.invs) {
		return nil
	}

	return m.invs[idx]
}

func (m *InvoicesModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.invs))
	for _, inv := range m.invs {
		rows = append(rows, table.Row{
			FormatDate(inv.CreatedAt),
			string(inv.Status),
			FormatAmount(inv.AmountCents, inv.Currency),
			FormatAmount(inv.ServiceFeeCents, inv.Currency),
			FormatAmount(inv.EscrowCents, inv.Currency),
			inv.Description,
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadInvoicesMsg struct {
	invs []*invoice.Invoice
	err  error
}

func (m InvoicesModel) loadInvoicesCmd() tea.Cmd {
	conversationID := m.conversationID

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		invs, err := m.invoiceService.ListByConversation(ctx, conversationID)

		return loadInvoicesMsg{invs: invs, err: err}
	}
}

type transitionDoneMsg struct {
	inv *invoice.Invoice
	err error
}

func (m InvoicesModel) transitionCmd(op invoice.Op) tea.Cmd {
	inv := m.selected()
	if inv == nil {
		return nil
	}

	id := inv.ID

	return func() tea.Msg {
		ctx, cancel := OpCtx()
		defer cancel()

		var (
			updated *invoice.Invoice
			err     error
		)

		switch op {
		case invoice.OpRelease:
			updated, err = m.invoiceService.Release(ctx, id, m.actor)
		case invoice.OpCancel:
			updated, err = m.invoiceService.Cancel(ctx, id, m.actor)
		default:
			err = fmt.Errorf("unsupported operation %q", op)
		}

		return transitionDoneMsg{inv: updated, err: err}
	}
}
