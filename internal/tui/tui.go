// Package tui provides a Bubble Tea TUI for reading chats and generated tests.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/testgen/internal/chat"
	"github.com/fakeyudi/testgen/internal/transcript"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	roleUserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	roleAssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindCodeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabMessages
	tabLatest
	tabCode
	tabCount
)

var tabNames = [tabCount]string{"Summary", "Messages", "Latest Response", "Code"}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	transcript *transcript.Transcript
	filename   string
	activeTab  tabID
	viewports  [tabCount]viewport.Model
	width      int
	height     int
	ready      bool
	newestTop  bool
	// Messages tab: cursor position and expanded set
	cursor   int
	expanded map[int]bool
}

// New creates a new TUI model for t, titled with the base of filename.
func New(t *transcript.Transcript, filename string) Model {
	return Model{
		transcript: t,
		filename:   filepath.Base(filename),
		expanded:   make(map[int]bool),
	}
}

// NewResponse creates a model showing a single generated reply, opened on
// the Latest Response tab.
func NewResponse(chatID, content string) Model {
	t := &transcript.Transcript{
		Chat:     transcript.ChatMeta{ID: chatID, Name: chatID},
		Messages: []chat.Message{{ChatID: chatID, Role: "assistant", Type: chat.TypeCode, Content: content}},
	}
	m := New(t, chatID)
	m.activeTab = tabLatest
	return m
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabMessages {
				m.newestTop = !m.newestTop
				m.cursor = 0
				m.expanded = make(map[int]bool)
				m.rebuild(tabMessages)
			}
		case "up", "k":
			if m.activeTab == tabMessages && m.cursor > 0 {
				m.cursor--
				m.rebuild(tabMessages)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabMessages && m.cursor < len(m.transcript.Messages)-1 {
				m.cursor++
				m.rebuild(tabMessages)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabMessages && len(m.transcript.Messages) > 0 {
				if m.expanded[m.cursor] {
					delete(m.expanded, m.cursor)
				} else {
					m.expanded[m.cursor] = true
				}
				m.rebuild(tabMessages)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  testgen  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-4 jump  q quit"
	if m.activeTab == tabMessages {
		dir := "oldest first"
		if m.newestTop {
			dir = "newest first"
		}
		hint += "  enter expand  s sort (" + dir + ")"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabMessages:
		return m.renderMessages()
	case tabLatest:
		return m.renderLatest()
	case tabCode:
		return m.renderCode()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	c := m.transcript.Chat
	var sb strings.Builder
	sb.WriteString(heading("Chat Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Name:", c.Name)
	row("Chat ID:", c.ID)
	if c.CreatedAt != "" {
		row("Created:", c.CreatedAt)
	}
	if !c.ExportedAt.IsZero() {
		row("Exported:", c.ExportedAt.Format("2006-01-02 15:04:05 MST"))
	}
	if c.Author != "" {
		row("Author:", c.Author)
	}

	sb.WriteString(heading("Counts"))
	var user, code int
	for _, msg := range m.transcript.Messages {
		if msg.Role == "user" {
			user++
		}
		if msg.Type == chat.TypeCode || msg.Type == chat.TypeTest {
			code++
		}
	}
	row("Messages:", fmt.Sprintf("%d", len(m.transcript.Messages)))
	row("From you:", fmt.Sprintf("%d", user))
	row("Code/tests:", fmt.Sprintf("%d", code))
	return sb.String()
}

// ordered returns the messages in display order.
func (m *Model) ordered() []chat.Message {
	msgs := m.transcript.Messages
	if !m.newestTop {
		return msgs
	}
	out := make([]chat.Message, len(msgs))
	for i, msg := range msgs {
		out[len(msgs)-1-i] = msg
	}
	return out
}

func (m *Model) renderMessages() string {
	var sb strings.Builder
	msgs := m.ordered()
	sb.WriteString(heading(fmt.Sprintf("Messages (%d)", len(msgs))))
	if len(msgs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for i, msg := range msgs {
		toggle := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		role := msg.Role
		if msg.Sender != nil && msg.Sender.Name != "" {
			role = msg.Sender.Name
		}
		if role == "" {
			role = "message"
		}
		roleText := roleUserStyle.Render(role)
		if msg.Role != "user" {
			roleText = roleAssistantStyle.Render(role)
		}
		kind := ""
		if msg.Type == chat.TypeCode || msg.Type == chat.TypeTest {
			kind = "  " + kindCodeStyle.Render("["+strings.ToUpper(string(msg.Type))+"]")
		}
		ts := ""
		if msg.Timestamp != "" {
			ts = "  " + timeStyle.Render(msg.Timestamp)
		}

		row := fmt.Sprintf("%s%s%s%s  %s", toggle, roleText, kind, ts, preview(msg.Content, 60))
		if i == m.cursor {
			row = selectedRowStyle.Width(m.width - 2).Render(row)
		}
		sb.WriteString(row + "\n")
		if m.expanded[i] {
			sb.WriteString(RenderMarkdown(messageMarkdown(msg), m.width-4))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderLatest() string {
	latest := m.transcript.Latest()
	if latest == "" {
		return heading("Latest Response") + dimStyle.Render("  (no messages)") + "\n"
	}
	return heading("Latest Response") + RenderMarkdown(latest, m.width-4)
}

func (m *Model) renderCode() string {
	var sb strings.Builder
	var blocks []chat.Message
	for _, msg := range m.transcript.Messages {
		if msg.Type == chat.TypeCode || msg.Type == chat.TypeTest || strings.HasPrefix(msg.Content, "```") {
			blocks = append(blocks, msg)
		}
	}
	sb.WriteString(heading(fmt.Sprintf("Code (%d)", len(blocks))))
	if len(blocks) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, msg := range blocks {
		sb.WriteString(RenderMarkdown(messageMarkdown(msg), m.width-4))
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// messageMarkdown wraps code and test messages in a fence so they are
// highlighted. Replies that are already fenced are passed through.
func messageMarkdown(msg chat.Message) string {
	if strings.HasPrefix(msg.Content, "```") {
		return msg.Content
	}
	if msg.Type != chat.TypeCode && msg.Type != chat.TypeTest {
		return msg.Content
	}
	lang := ""
	if msg.Metadata != nil {
		lang = msg.Metadata.Language
	}
	return "```" + lang + "\n" + strings.TrimSuffix(msg.Content, "\n") + "\n```"
}

// preview returns the first line of s cut to n runes.
func preview(s string, n int) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	r := []rune(line)
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return line
}

// Run starts the TUI for the given transcript.
func Run(t *transcript.Transcript, filename string) error {
	p := tea.NewProgram(New(t, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RunResponse starts the TUI on a single generated reply.
func RunResponse(chatID, content string) error {
	p := tea.NewProgram(NewResponse(chatID, content), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
