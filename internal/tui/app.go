// Package tui is the interactive satchel client. It owns no sync
// logic: every key dispatches an operation on the synchronizer and the
// screen re-renders from Snapshot on every Updates signal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/satchelhq/satchel/internal/client"
	"github.com/satchelhq/satchel/internal/domain"
	"github.com/satchelhq/satchel/internal/logger"
	"github.com/satchelhq/satchel/internal/syncer"
)

// signInWait bounds how long the TUI polls for the browser handoff.
const signInWait = 5 * time.Minute

type screen int

const (
	screenSignIn screen = iota
	screenBrowse
)

type model struct {
	cfg     *client.Config
	session *client.Session
	sync    *syncer.Syncer
	channel *client.Channel

	list       list.Model
	titleInput textinput.Model
	urlInput   textinput.Model

	screen   screen
	adding   bool
	focusURL bool
	watching bool
	width    int
	height   int

	signingIn bool
	authURL   string

	err error
}

type bookmarkItem struct {
	bookmark domain.Bookmark
	deleting bool
}

func (b bookmarkItem) Title() string {
	if b.deleting {
		return b.bookmark.Title + " (deleting...)"
	}
	return b.bookmark.Title
}

func (b bookmarkItem) Description() string {
	return b.bookmark.URL
}

func (b bookmarkItem) FilterValue() string {
	return b.bookmark.Title + " " + b.bookmark.URL
}

func initialModel(cfg *client.Config, sess *client.Session, sy *syncer.Syncer, ch *client.Channel) model {
	ti := textinput.New()
	ti.Placeholder = "Title"
	ti.CharLimit = 256
	ti.Width = 50

	ui := textinput.New()
	ui.Placeholder = "https://..."
	ui.CharLimit = 2048
	ui.Width = 50

	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "satchel"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	scr := screenSignIn
	if sess.SignedIn() {
		scr = screenBrowse
	}

	return model{
		cfg:        cfg,
		session:    sess,
		sync:       sy,
		channel:    ch,
		titleInput: ti,
		urlInput:   ui,
		list:       l,
		screen:     scr,
		watching:   scr == screenBrowse,
	}
}

type signedInMsg struct {
	err error
}

type signedOutMsg struct{}

type addDoneMsg struct {
	err error
}

type opDoneMsg struct{}

type syncUpdateMsg struct{}

func (m model) Init() tea.Cmd {
	if m.screen == screenBrowse {
		m.channel.Start(context.Background())
		return tea.Batch(m.doInitialize, m.watchUpdates())
	}
	return nil
}

func (m model) doInitialize() tea.Msg {
	_ = m.sync.Initialize(context.Background())
	return opDoneMsg{}
}

func (m model) doRefresh() tea.Msg {
	_ = m.sync.Refresh(context.Background())
	return opDoneMsg{}
}

func (m model) doAdd(title, url string) tea.Cmd {
	sy := m.sync
	return func() tea.Msg {
		return addDoneMsg{err: sy.Add(context.Background(), title, url)}
	}
}

func (m model) doRemove(id string) tea.Cmd {
	sy := m.sync
	return func() tea.Msg {
		_ = sy.Remove(context.Background(), id)
		return opDoneMsg{}
	}
}

// watchUpdates blocks on the synchronizer's signal channel and turns
// each signal into a message. Re-armed after every receipt.
func (m model) watchUpdates() tea.Cmd {
	ch := m.sync.Updates()
	return func() tea.Msg {
		<-ch
		return syncUpdateMsg{}
	}
}

func (m model) awaitGrant(nonce string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), signInWait)
		defer cancel()
		_, err := sess.AwaitGrant(ctx, nonce)
		return signedInMsg{err: err}
	}
}

func (m model) signOut() tea.Cmd {
	sess := m.session
	ch := m.channel
	return func() tea.Msg {
		ch.Stop()
		_ = sess.SignOut(context.Background())
		return signedOutMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenSignIn {
			return m.updateSignIn(msg)
		}
		return m.updateBrowse(msg)

	case tea.FocusMsg:
		// The terminal came back to the foreground; the collection may
		// be stale.
		if m.screen == screenBrowse {
			return m, m.doRefresh
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-9)
		m.titleInput.Width = msg.Width - 12
		m.urlInput.Width = msg.Width - 12
		return m, nil

	case signedInMsg:
		m.signingIn = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.screen = screenBrowse
		m.channel.Start(context.Background())
		cmds := []tea.Cmd{m.doInitialize}
		// One watcher for the life of the process; sign-out cycles must
		// not stack more.
		if !m.watching {
			m.watching = true
			cmds = append(cmds, m.watchUpdates())
		}
		return m, tea.Batch(cmds...)

	case signedOutMsg:
		m.screen = screenSignIn
		m.adding = false
		m.list.SetItems(nil)
		return m, nil

	case addDoneMsg:
		if msg.err == nil {
			m.titleInput.SetValue("")
			m.urlInput.SetValue("")
			m.titleInput.Blur()
			m.urlInput.Blur()
			m.adding = false
		}
		m.reloadItems()
		return m, nil

	case opDoneMsg:
		m.reloadItems()
		return m, nil

	case syncUpdateMsg:
		m.reloadItems()
		return m, m.watchUpdates()
	}

	if m.adding {
		return m.updateInputs(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "enter":
		if m.signingIn {
			return m, nil
		}
		h := client.NewLoginHandoff(m.cfg.ServerURL)
		_ = client.OpenBrowser(h.AuthURL)
		m.signingIn = true
		m.authURL = h.AuthURL
		m.err = nil
		return m, m.awaitGrant(h.Nonce)
	}
	return m, nil
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.adding {
		switch msg.String() {
		case "esc":
			m.adding = false
			m.titleInput.Blur()
			m.urlInput.Blur()
			return m, nil
		case "tab", "shift+tab":
			m.focusURL = !m.focusURL
			return m, m.syncFocus()
		case "enter":
			if m.sync.Snapshot().Submitting {
				// One mutation at a time; the form stays put.
				return m, nil
			}
			return m, m.doAdd(m.titleInput.Value(), m.urlInput.Value())
		}
		return m.updateInputs(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "a":
		m.adding = true
		m.focusURL = false
		return m, tea.Batch(m.syncFocus(), textinput.Blink)
	case "d":
		if item, ok := m.list.SelectedItem().(bookmarkItem); ok {
			return m, m.doRemove(item.bookmark.ID)
		}
	case "r":
		return m, m.doRefresh
	case "o", "enter":
		if item, ok := m.list.SelectedItem().(bookmarkItem); ok {
			_ = client.OpenBrowser(item.bookmark.URL)
		}
	case "L":
		return m, m.signOut()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	cmds = append(cmds, cmd)
	m.urlInput, cmd = m.urlInput.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *model) syncFocus() tea.Cmd {
	if m.focusURL {
		m.titleInput.Blur()
		return m.urlInput.Focus()
	}
	m.urlInput.Blur()
	return m.titleInput.Focus()
}

func (m *model) reloadItems() {
	snap := m.sync.Snapshot()
	items := make([]list.Item, 0, len(snap.Collection))
	for _, b := range snap.Collection {
		items = append(items, bookmarkItem{
			bookmark: b,
			deleting: snap.PendingDelete == b.ID,
		})
	}
	m.list.SetItems(items)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errNoticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.screen == screenSignIn {
		return m.viewSignIn()
	}
	return m.viewBrowse()
}

func (m model) viewSignIn() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("satchel"))
	b.WriteString("\n\n")

	switch {
	case m.signingIn:
		b.WriteString("Waiting for the browser sign-in to finish...\n\n")
		b.WriteString("If nothing opened, visit:\n")
		b.WriteString(dimStyle.Render(m.authURL))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(errNoticeStyle.Render(fmt.Sprintf("Sign-in failed: %v", m.err)))
		b.WriteString("\n\nPress enter to try again.\n")
	default:
		b.WriteString("Press enter to sign in with GitHub.\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("[enter]sign in [q]uit"))
	return b.String()
}

func (m model) viewBrowse() string {
	snap := m.sync.Snapshot()

	var b strings.Builder

	header := "satchel"
	if g := m.session.Grant(); g != nil {
		header = fmt.Sprintf("satchel — %s", g.Login)
	}
	b.WriteString(titleStyle.Render(header))
	if snap.Loading {
		b.WriteString(dimStyle.Render("  loading..."))
	}
	b.WriteString("\n")

	if m.adding {
		form := fmt.Sprintf("Title %s\nURL   %s", m.titleInput.View(), m.urlInput.View())
		if snap.Submitting {
			form += "\n" + dimStyle.Render("saving...")
		}
		b.WriteString(formStyle.Render(form))
		b.WriteString("\n")
	}

	b.WriteString(m.list.View())
	b.WriteString("\n")

	if snap.Notice != nil {
		style := noticeStyle
		if snap.Notice.IsErr {
			style = errNoticeStyle
		}
		b.WriteString(style.Render(snap.Notice.Text))
	}
	b.WriteString("\n")

	help := "[a]dd [d]elete [r]efresh [o]pen [L]ogout [q]uit"
	if m.adding {
		help = "[tab]switch field [enter]save [esc]cancel"
	}
	b.WriteString(dimStyle.Render(help))

	return b.String()
}

// Run starts the TUI. Client internals stay silent; anything worth the
// user's attention arrives as a notice in the snapshot.
func Run(cfg *client.Config) error {
	sess, err := client.NewSession(cfg)
	if err != nil {
		return err
	}

	log := logger.Nop()
	api := client.NewAPI(cfg, sess)
	sy := syncer.New(api, log)
	ch := client.NewChannel(cfg, sess, sy, log)

	p := tea.NewProgram(
		initialModel(cfg, sess, sy, ch),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
	)
	_, err = p.Run()
	ch.Stop()
	return err
}
