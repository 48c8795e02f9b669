package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"azchat/internal/composer"
	"azchat/internal/domain"
)

const (
	timeLayout = "15:04:05"
	dateLayout = "2006-01-02"
	maxSources = 3
)

var (
	chatBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sidebarStyle    = lipgloss.NewStyle().Width(sidebarWidth - 2).Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle      = lipgloss.NewStyle().Bold(true)
	activeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	replyLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	boldStyle       = lipgloss.NewStyle().Bold(true)
)

// View renders the sidebar, the conversation and the input line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	sidebar := sidebarStyle.Height(max(3, m.height-2)).Render(m.renderSidebar())

	header := titleStyle.Render(m.headerTitle())
	if src := m.source(); src != "" {
		header += mutedStyle.Render("  source: " + src + " (tab)")
	}
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.statusLine())

	main := lipgloss.JoinVertical(lipgloss.Left, header, chat, input, status)
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
}

func (m Model) headerTitle() string {
	if t, ok := m.currentThread(); ok {
		return t.Title
	}
	return "Azure AI Chat"
}

func (m Model) statusLine() string {
	if m.sending {
		return m.status + " (sending)"
	}
	return m.status
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversations"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("ctrl+n new"))
	b.WriteString("\n\n")
	if m.loadingThreads {
		b.WriteString("Loading...")
		return b.String()
	}
	if len(m.threads) == 0 {
		b.WriteString("No conversations yet\n")
		b.WriteString(mutedStyle.Render("Press Ctrl+N to start"))
		return b.String()
	}
	width := sidebarWidth - 6
	for i, t := range m.threads {
		title := truncate(t.Title, width)
		if i == m.selected {
			b.WriteString(activeStyle.Render("> " + title))
		} else {
			b.WriteString("  " + title)
		}
		b.WriteString("\n  ")
		b.WriteString(mutedStyle.Render(t.UpdatedAt.Local().Format(dateLayout)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderConversation() string {
	if m.showFiles {
		return m.renderFiles()
	}
	if _, ok := m.currentThread(); !ok {
		return welcome
	}
	if m.loadingMessages() {
		return "Loading messages..."
	}
	if len(m.messages) == 0 {
		return mutedStyle.Render("Start the conversation by asking a question")
	}
	parts := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		parts = append(parts, renderMessage(msg))
	}
	if m.sending {
		parts = append(parts, mutedStyle.Render("Assistant is searching..."))
	}
	return strings.Join(parts, "\n\n")
}

const welcome = `Azure AI Chat

Select a conversation or create a new one to start chatting.

  Azure Cognitive Search   search through your indexed documents
  Threaded Conversations   keep context across multiple messages
  Azure Storage            access files from your storage account

ctrl+n new   ctrl+j/ctrl+k select   ctrl+e rename   ctrl+x delete
tab source   ctrl+o files           pgup/pgdown scroll   ctrl+c quit`

func (m Model) renderFiles() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Storage files"))
	b.WriteString(mutedStyle.Render("  ctrl+o to close"))
	if len(m.fileItems) == 0 {
		b.WriteString("\n\nNo files found")
		return b.String()
	}
	for i, it := range m.fileItems {
		fmt.Fprintf(&b, "\n\n%d. %s", i+1, it.Name)
		if it.ContentLength > 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d bytes", it.ContentLength)))
		}
		b.WriteString("\n   ")
		b.WriteString(mutedStyle.Render(m.files.BlobURL(it.Name)))
	}
	return b.String()
}

func renderMessage(msg domain.Message) string {
	var b strings.Builder
	label := replyLabelStyle.Render("Assistant")
	if msg.Role == domain.RoleUser {
		label = userLabelStyle.Render("You")
	}
	b.WriteString(label)
	b.WriteString(mutedStyle.Render("  " + msg.CreatedAt.Local().Format(timeLayout)))
	b.WriteString("\n")
	b.WriteString(formatContent(msg.Content))
	if len(msg.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(renderSources(msg.Sources))
	}
	return b.String()
}

// formatContent renders "**Heading:**" lines in bold.
func formatContent(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "**") && strings.HasSuffix(line, ":**") && len(line) >= 5 {
			lines[i] = boldStyle.Render(line[2:len(line)-3] + ":")
		}
	}
	return strings.Join(lines, "\n")
}

func renderSources(sources []domain.Document) string {
	var b strings.Builder
	b.WriteString(mutedStyle.Render("Sources:"))
	for i, d := range sources {
		if i == maxSources {
			break
		}
		fmt.Fprintf(&b, "\n  %d. %s", i+1, sourceName(d, i+1))
	}
	return b.String()
}

func sourceName(d domain.Document, n int) string {
	if d.Title != "" {
		return d.Title
	}
	if d.ID != "" {
		return d.ID
	}
	return composer.Title(d, n)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
