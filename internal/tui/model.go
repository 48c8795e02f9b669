package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"azchat/internal/blob"
	"azchat/internal/domain"
	"azchat/internal/service"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	NewThread(ctx context.Context) (domain.Thread, error)
	Threads(ctx context.Context) ([]domain.Thread, error)
	Rename(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
	Messages(ctx context.Context, threadID string) ([]domain.Message, error)
	Send(ctx context.Context, threadID, content, source string) (service.Turn, error)
	Sources() []string
	DefaultSource() string
}

// FileLister lists the documents of the configured storage container.
type FileLister interface {
	Items(ctx context.Context) ([]blob.Item, error)
	BlobURL(name string) string
}

type mode int

const (
	modeChat mode = iota
	modeRename
	modeConfirmDelete
)

const (
	sidebarWidth = 30
	chatPrompt   = "> "
	chatHint     = "Ask a question and press Enter"
	statusLoad   = "Loading conversations..."
)

type (
	threadsLoadedMsg struct {
		threads []domain.Thread
		// selectID, when set, becomes the selected thread.
		selectID string
		err      error
	}
	messagesLoadedMsg struct {
		threadID string
		messages []domain.Message
		err      error
	}
	threadCreatedMsg struct {
		thread domain.Thread
		err    error
	}
	turnDoneMsg struct {
		threadID string
		turn     service.Turn
		err      error
	}
	renamedMsg struct {
		id  string
		err error
	}
	deletedMsg struct {
		id  string
		err error
	}
	filesLoadedMsg struct {
		items []blob.Item
		err   error
	}
)

// Model is the Bubble Tea model for the chat application.
type Model struct {
	ctx     context.Context
	service ChatPort
	files   FileLister

	input    textinput.Model
	viewport viewport.Model

	threads   []domain.Thread
	selected  int
	messages  []domain.Message
	sources   []string
	sourceIdx int

	showFiles bool
	fileItems []blob.Item

	mode            mode
	draft           string
	sending         bool
	loadingThreads  bool
	// loadingID is the thread whose messages are being fetched.
	loadingID string
	status          string

	width  int
	height int
	ready  bool
}

// New creates a new TUI model instance.
func New(ctx context.Context, svc ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = chatPrompt
	ti.Placeholder = chatHint
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	sources := svc.Sources()
	idx := 0
	for i, s := range sources {
		if s == svc.DefaultSource() {
			idx = i
		}
	}
	return Model{
		ctx:            ctx,
		service:        svc,
		input:          ti,
		viewport:       vp,
		selected:       -1,
		sources:        sources,
		sourceIdx:      idx,
		loadingThreads: true,
		status:         statusLoad,
	}
}

// WithFiles enables the storage file panel.
func (m Model) WithFiles(f FileLister) Model {
	m.files = f
	return m
}

// Init loads the thread list and starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadThreads(""))
}

// Update handles key, window and service events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.refreshViewport()
		return m, nil

	case threadsLoadedMsg:
		m.loadingThreads = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		if m.status == statusLoad {
			m.status = "Ready."
		}
		current := m.currentID()
		if msg.selectID != "" {
			current = msg.selectID
		}
		m.threads = msg.threads
		m.selected = -1
		for i, t := range m.threads {
			if t.ID == current {
				m.selected = i
			}
		}
		if m.selected < 0 {
			m.messages = nil
		}
		m.refreshViewport()
		return m, nil

	case messagesLoadedMsg:
		if msg.threadID == m.loadingID {
			m.loadingID = ""
		}
		if msg.threadID != m.currentID() {
			m.refreshViewport()
			return m, nil
		}
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.messages = msg.messages
		m.refreshViewport()
		return m, nil

	case threadCreatedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = "New conversation created."
		m.messages = nil
		return m, m.loadThreads(msg.thread.ID)

	case turnDoneMsg:
		m.sending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = fmt.Sprintf("Found %d result(s).", msg.turn.Aggregate.TotalResults)
		}
		return m, tea.Batch(m.loadThreads(msg.threadID), m.loadMessages(msg.threadID))

	case renamedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = "Conversation renamed."
		return m, m.loadThreads(msg.id)

	case deletedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = "Conversation deleted."
		if msg.id == m.currentID() {
			m.selected = -1
			m.messages = nil
		}
		if msg.id == m.loadingID {
			m.loadingID = ""
		}
		m.refreshViewport()
		return m, m.loadThreads("")

	case filesLoadedMsg:
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.fileItems = msg.items
		m.status = fmt.Sprintf("%d file(s) in storage.", len(msg.items))
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeRename:
			return m.updateRename(msg)
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		}
		if next, cmd, handled := m.handleChatKey(msg); handled {
			return next, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleChatKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "enter":
		return m.send()
	case "ctrl+n":
		if m.sending {
			m.status = "Waiting for the reply..."
			return m, nil, true
		}
		return m, m.createThread(), true
	case "ctrl+j":
		return m.selectThread(m.selected + 1)
	case "ctrl+k":
		return m.selectThread(m.selected - 1)
	case "ctrl+e":
		t, ok := m.currentThread()
		if !ok {
			return m, nil, true
		}
		m.mode = modeRename
		m.draft = m.input.Value()
		m.input.Prompt = "Rename: "
		m.input.Placeholder = ""
		m.input.SetValue(t.Title)
		m.input.CursorEnd()
		m.status = "Enter to save, Esc to cancel."
		return m, nil, true
	case "ctrl+x":
		t, ok := m.currentThread()
		if !ok || m.sending {
			return m, nil, true
		}
		m.mode = modeConfirmDelete
		m.status = fmt.Sprintf("Delete %q? (y/n)", t.Title)
		return m, nil, true
	case "ctrl+o":
		if m.files == nil {
			m.status = "Storage is not configured."
			return m, nil, true
		}
		m.showFiles = !m.showFiles
		m.refreshViewport()
		if !m.showFiles {
			return m, nil, true
		}
		m.status = "Loading files..."
		return m, m.loadFiles(), true
	case "tab":
		if len(m.sources) > 1 {
			m.sourceIdx = (m.sourceIdx + 1) % len(m.sources)
			m.status = "Searching " + m.source() + "."
		}
		return m, nil, true
	case "pgup":
		m.viewport.ViewUp()
		return m, nil, true
	case "pgdown":
		m.viewport.ViewDown()
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) send() (Model, tea.Cmd, bool) {
	if m.sending {
		return m, nil, true
	}
	t, ok := m.currentThread()
	if !ok {
		m.status = "Create a conversation with Ctrl+N first."
		return m, nil, true
	}
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil, true
	}
	m.sending = true
	m.input.Reset()
	m.messages = append(m.messages, domain.Message{
		ThreadID:  t.ID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	})
	m.status = "Searching " + m.source() + "..."
	m.refreshViewport()
	return m, m.sendCmd(t.ID, content, m.source()), true
}

func (m Model) selectThread(i int) (Model, tea.Cmd, bool) {
	if m.sending || len(m.threads) == 0 {
		return m, nil, true
	}
	if i < 0 {
		i = 0
	}
	if i >= len(m.threads) {
		i = len(m.threads) - 1
	}
	if i == m.selected {
		return m, nil, true
	}
	m.selected = i
	m.messages = nil
	m.loadingID = m.threads[i].ID
	m.refreshViewport()
	return m, m.loadMessages(m.threads[i].ID), true
}

func (m Model) updateRename(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		title := strings.TrimSpace(m.input.Value())
		id := m.currentID()
		m.leaveRename()
		if title == "" || id == "" {
			m.status = "Rename cancelled."
			return m, nil
		}
		return m, m.rename(id, title)
	case "esc":
		m.leaveRename()
		m.status = "Rename cancelled."
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) leaveRename() {
	m.mode = modeChat
	m.input.Prompt = chatPrompt
	m.input.Placeholder = chatHint
	m.input.SetValue(m.draft)
	m.input.CursorEnd()
	m.draft = ""
}

func (m Model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = modeChat
	id := m.currentID()
	if msg.String() != "y" || id == "" {
		m.status = "Delete cancelled."
		return m, nil
	}
	m.status = "Deleting..."
	return m, m.delete(id)
}

// loadingMessages reports whether the selected thread's messages are in flight.
func (m Model) loadingMessages() bool {
	return m.loadingID != "" && m.loadingID == m.currentID()
}

func (m *Model) resize() {
	// sidebar, header line, input box and status line
	_, inputFrame := inputBoxStyle.GetFrameSize()
	_, chatFrame := chatBoxStyle.GetFrameSize()
	chatFrameW, _ := chatBoxStyle.GetFrameSize()
	reserved := 1 + 1 + 1 + inputFrame + chatFrame
	m.viewport.Width = max(20, m.width-sidebarWidth-chatFrameW)
	m.viewport.Height = max(3, m.height-reserved)
	m.input.Width = max(10, m.width-sidebarWidth-chatFrameW-len(chatPrompt)-1)
}

func (m *Model) refreshViewport() {
	content := m.renderConversation()
	if m.viewport.Width > 0 {
		content = lipgloss.NewStyle().Width(m.viewport.Width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) currentThread() (domain.Thread, bool) {
	if m.selected < 0 || m.selected >= len(m.threads) {
		return domain.Thread{}, false
	}
	return m.threads[m.selected], true
}

func (m Model) currentID() string {
	t, _ := m.currentThread()
	return t.ID
}

func (m Model) source() string {
	if len(m.sources) == 0 {
		return ""
	}
	return m.sources[m.sourceIdx]
}

func (m Model) loadThreads(selectID string) tea.Cmd {
	return func() tea.Msg {
		threads, err := m.service.Threads(m.ctx)
		return threadsLoadedMsg{threads: threads, selectID: selectID, err: err}
	}
}

func (m Model) loadMessages(threadID string) tea.Cmd {
	return func() tea.Msg {
		msgs, err := m.service.Messages(m.ctx, threadID)
		return messagesLoadedMsg{threadID: threadID, messages: msgs, err: err}
	}
}

func (m Model) loadFiles() tea.Cmd {
	return func() tea.Msg {
		items, err := m.files.Items(m.ctx)
		return filesLoadedMsg{items: items, err: err}
	}
}

func (m Model) createThread() tea.Cmd {
	return func() tea.Msg {
		t, err := m.service.NewThread(m.ctx)
		return threadCreatedMsg{thread: t, err: err}
	}
}

func (m Model) sendCmd(threadID, content, source string) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.service.Send(m.ctx, threadID, content, source)
		return turnDoneMsg{threadID: threadID, turn: turn, err: err}
	}
}

func (m Model) rename(id, title string) tea.Cmd {
	return func() tea.Msg {
		return renamedMsg{id: id, err: m.service.Rename(m.ctx, id, title)}
	}
}

func (m Model) delete(id string) tea.Cmd {
	return func() tea.Msg {
		return deletedMsg{id: id, err: m.service.Delete(m.ctx, id)}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
