package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/glabrego/vibetube-cli/internal/apierr"
	"github.com/glabrego/vibetube-cli/internal/app"
	"github.com/glabrego/vibetube-cli/internal/feed"
	"github.com/glabrego/vibetube-cli/internal/reqguard"
	"github.com/glabrego/vibetube-cli/internal/storage"
	"github.com/glabrego/vibetube-cli/internal/toggle"
	tuiactions "github.com/glabrego/vibetube-cli/internal/tui/actions"
	"github.com/glabrego/vibetube-cli/internal/tui/platform"
	tuistate "github.com/glabrego/vibetube-cli/internal/tui/state"
	tuitheme "github.com/glabrego/vibetube-cli/internal/tui/theme"
	tuiview "github.com/glabrego/vibetube-cli/internal/tui/view"
	"github.com/glabrego/vibetube-cli/internal/vibetube"
)

type Service interface {
	tuiactions.Service
	CategoryFeed(onChange func()) *feed.Manager[vibetube.Video]
	SearchFeed(onChange func()) *feed.Manager[vibetube.Video]
	Logout()
	SavePreferences(ctx context.Context, prefs storage.Preferences) error
}

type Options struct {
	SignedIn    bool
	Username    string
	BaseURL     string
	Preferences storage.Preferences
	// Notifier delivers controller changes and auth failures; wire its
	// AuthFailed method as the session failure handler.
	Notifier *tuiactions.Notifier
}

type feedMode int

const (
	modeCategory feedMode = iota
	modeSearch
)

const (
	promptSearch  = "search"
	promptComment = "comment"

	chromeLines = 9
)

type clearStatusMsg struct {
	id int
}

type preferenceSaveErrorMsg struct {
	err error
}

type Model struct {
	service  Service
	notifier *tuiactions.Notifier
	th       tuitheme.Theme
	screen   string
	width    int
	height   int

	categories  []string
	category    int
	mode        feedMode
	searchQuery string
	catFeed     *feed.Manager[vibetube.Video]
	searchFeed  *feed.Manager[vibetube.Video]
	cursor      int
	cursorKey   string

	prompt     textinput.Model
	promptKind string

	username  textinput.Model
	password  textinput.Model
	focus     int
	signingIn bool

	watch    *app.WatchSession
	watchTop int
	opening  bool

	user         string
	baseURL      string
	relativeTime bool
	status       string
	statusID     int
	warning      bool

	openURLFn func(string) error
	copyURLFn func(string) error
	nowFn     func() time.Time
}

func NewModel(service Service, opts Options) Model {
	n := opts.Notifier
	if n == nil {
		n = tuiactions.NewNotifier()
	}

	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Width = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.Width = 32
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	prompt := textinput.New()
	prompt.CharLimit = 500
	prompt.Width = 60

	m := Model{
		service:      service,
		notifier:     n,
		th:           tuitheme.Default(),
		screen:       tuiview.ScreenSignIn,
		categories:   append([]string{vibetube.CategoryRandom}, vibetube.Categories...),
		catFeed:      service.CategoryFeed(n.Changed),
		searchFeed:   service.SearchFeed(n.Changed),
		prompt:       prompt,
		username:     username,
		password:     password,
		user:         opts.Username,
		baseURL:      opts.BaseURL,
		relativeTime: opts.Preferences.RelativeTime,
		openURLFn:    platform.OpenURLInBrowser,
		copyURLFn:    platform.CopyURLToClipboard,
		nowFn:        time.Now,
	}
	for i, name := range m.categories {
		if name == opts.Preferences.LastCategory {
			m.category = i
		}
	}
	if opts.SignedIn {
		m.screen = tuiview.ScreenFeed
	} else {
		m.username.Focus()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.notifier.WaitChanged(), m.notifier.WaitAuth()}
	if m.screen == tuiview.ScreenFeed {
		cmds = append(cmds, m.loadCategoryCmd())
	} else {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tuiactions.ChangedMsg:
		m.syncCursor()
		return m, m.notifier.WaitChanged()
	case tuiactions.AuthExpiredMsg:
		cmd := m.toSignIn("Session expired, sign in again", true)
		return m, tea.Batch(m.notifier.WaitAuth(), cmd, textinput.Blink)
	case tuiactions.LoginSuccessMsg:
		m.signingIn = false
		m.user = msg.Username
		m.screen = tuiview.ScreenFeed
		m.username.Blur()
		m.password.Blur()
		m.password.Reset()
		cmd := m.setStatus("Signed in as "+msg.Username, false)
		return m, tea.Batch(cmd, m.loadCategoryCmd())
	case tuiactions.LoginErrorMsg:
		m.signingIn = false
		text := apierr.Message(msg.Err)
		if apierr.Is(msg.Err, apierr.Unauthorized) {
			text = "Invalid username or password"
		}
		return m.withStatus(text, true)
	case tuiactions.FeedSettledMsg:
		return m.feedSettled(msg)
	case tuiactions.ToggleSettledMsg:
		return m.toggleSettled(msg)
	case tuiactions.WatchOpenedMsg:
		if !m.opening {
			// Opened after the view moved on, e.g. to sign-in.
			msg.Session.Close()
			return m, nil
		}
		m.opening = false
		m.watch.Close()
		m.watch = msg.Session
		m.watchTop = 0
		m.screen = tuiview.ScreenWatch
		m.status = ""
		return m, nil
	case tuiactions.WatchErrorMsg:
		m.opening = false
		if apierr.IsAuth(msg.Err) {
			return m, nil
		}
		return m.withStatus(apierr.Message(msg.Err), true)
	case tuiactions.CommentPostedMsg:
		if m.watch != nil && m.watch.Video.ID == msg.VideoID {
			m.watch.Comments = append([]vibetube.Comment{msg.Comment}, m.watch.Comments...)
			m.watch.CommentsErr = nil
		}
		return m.withStatus("Comment posted", false)
	case tuiactions.CommentErrorMsg:
		if apierr.IsAuth(msg.Err) {
			return m, nil
		}
		return m.withStatus(apierr.Message(msg.Err), true)
	case tuiactions.OpenURLSuccessMsg:
		return m.withStatus(msg.Status, false)
	case tuiactions.OpenURLErrorMsg:
		return m.withStatus(msg.Err.Error(), true)
	case preferenceSaveErrorMsg:
		return m.withStatus("Could not save preferences: "+msg.err.Error(), true)
	case clearStatusMsg:
		if msg.id == m.statusID {
			m.status = ""
			m.warning = false
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.watch.Close()
			return m, tea.Quit
		}
		if m.promptKind != "" {
			return m.updatePrompt(msg)
		}
		switch m.screen {
		case tuiview.ScreenSignIn:
			return m.updateSignIn(msg)
		case tuiview.ScreenWatch:
			return m.updateWatch(msg)
		default:
			return m.updateFeed(msg)
		}
	}

	var cmd tea.Cmd
	switch {
	case m.promptKind != "":
		m.prompt, cmd = m.prompt.Update(msg)
	case m.screen == tuiview.ScreenSignIn:
		cmd = m.updateFocusedInput(msg)
	}
	return m, cmd
}

func (m Model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.setFocus(1 - m.focus)
		return m, textinput.Blink
	case "enter":
		if m.focus == 0 {
			m.setFocus(1)
			return m, textinput.Blink
		}
		if m.signingIn {
			return m, nil
		}
		username := strings.TrimSpace(m.username.Value())
		if username == "" || m.password.Value() == "" {
			return m.withStatus("Enter a username and password", true)
		}
		m.signingIn = true
		m.status = "Signing in..."
		m.warning = false
		return m, tuiactions.LoginCmd(m.service, username, m.password.Value())
	case "esc":
		return m, tea.Quit
	}
	cmd := m.updateFocusedInput(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.username.Focus()
		m.password.Blur()
		return
	}
	m.username.Blur()
	m.password.Focus()
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if m.focus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return cmd
}

func (m Model) updateFeed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.currentFeed().State().Items
	key := msg.String()
	if idx, ok := tuistate.TabForKey(key, len(m.categories)); ok {
		return m.selectCategory(idx)
	}

	switch key {
	case "q":
		return m, tea.Quit
	case "up", "k":
		m.cursor = tuistate.ClampCursor(m.cursor-1, len(items))
	case "down", "j":
		m.cursor = tuistate.ClampCursor(m.cursor+1, len(items))
	case "pgup", "ctrl+b":
		m.cursor = tuistate.ClampCursor(m.cursor-tuistate.PageStep(m.height, chromeLines), len(items))
	case "pgdown", "ctrl+f":
		m.cursor = tuistate.ClampCursor(m.cursor+tuistate.PageStep(m.height, chromeLines), len(items))
	case "g":
		m.cursor = 0
	case "G":
		m.cursor = tuistate.ClampCursor(len(items)-1, len(items))
	case "/":
		return m.startPrompt(promptSearch, "search videos", m.searchQuery)
	case "esc":
		if m.mode == modeSearch {
			return m.selectCategory(m.category)
		}
	case "n":
		return m, tuiactions.LoadMoreCmd(m.currentFeed(), m.sourceLabel())
	case "r":
		m.status = ""
		m.warning = false
		return m, tuiactions.ReloadCmd(m.currentFeed(), m.sourceLabel())
	case "t":
		m.relativeTime = !m.relativeTime
		return m, m.persistPreferencesCmd()
	case "X":
		m.service.Logout()
		cmd := m.toSignIn("Signed out", false)
		return m, tea.Batch(cmd, textinput.Blink)
	case "enter":
		if len(items) == 0 || m.opening {
			return m, nil
		}
		video := items[tuistate.ClampCursor(m.cursor, len(items))]
		m.opening = true
		m.status = "Opening " + video.Title + "..."
		m.warning = false
		return m, tuiactions.OpenVideoCmd(m.service, video.ID, m.notifier.Changed)
	}
	if len(items) > 0 {
		m.cursorKey = items[tuistate.ClampCursor(m.cursor, len(items))].Key()
	}
	return m, nil
}

func (m Model) selectCategory(idx int) (tea.Model, tea.Cmd) {
	changed := idx != m.category
	m.category = idx
	m.mode = modeCategory
	m.cursor = 0
	m.cursorKey = ""
	cmds := []tea.Cmd{m.loadCategoryCmd()}
	if changed {
		cmds = append(cmds, m.persistPreferencesCmd())
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateWatch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.watch == nil {
		m.screen = tuiview.ScreenFeed
		return m, nil
	}
	switch msg.String() {
	case "q":
		m.watch.Close()
		return m, tea.Quit
	case "esc", "backspace":
		m.watch.Close()
		m.watch = nil
		m.screen = tuiview.ScreenFeed
		return m, nil
	case "up", "k":
		m.watchTop = tuistate.ClampScroll(m.watchTop-1, len(m.watchLines()), m.bodyHeight())
	case "down", "j":
		m.watchTop = tuistate.ClampScroll(m.watchTop+1, len(m.watchLines()), m.bodyHeight())
	case "l":
		return m, tuiactions.ToggleCmd(m.watch.Like, "like")
	case "s":
		return m, tuiactions.ToggleCmd(m.watch.Subscribe, "subscribe")
	case "c":
		return m.startPrompt(promptComment, "add a comment", "")
	case "o":
		url, err := platform.ResolveVideoURL(m.baseURL, m.watch.Video.VideoURL)
		if err != nil {
			return m.withStatus(err.Error(), true)
		}
		return m, tuiactions.OpenURLCmd(url, m.openURLFn, m.copyURLFn)
	case "y":
		url, err := platform.ResolveVideoURL(m.baseURL, m.watch.Video.VideoURL)
		if err != nil {
			return m.withStatus(err.Error(), true)
		}
		return m, tuiactions.CopyURLCmd(url, m.copyURLFn)
	}
	return m, nil
}

func (m Model) startPrompt(kind, placeholder, value string) (tea.Model, tea.Cmd) {
	m.promptKind = kind
	m.prompt.Placeholder = placeholder
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	cmd := m.prompt.Focus()
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.endPrompt()
		return m, nil
	case "enter":
		kind := m.promptKind
		value := strings.TrimSpace(m.prompt.Value())
		m.endPrompt()
		switch kind {
		case promptSearch:
			if value == "" {
				return m, nil
			}
			m.mode = modeSearch
			m.searchQuery = value
			m.cursor = 0
			m.cursorKey = ""
			return m, tuiactions.SetQueryCmd(m.searchFeed, m.sourceLabel(), value)
		case promptComment:
			if m.watch == nil {
				return m, nil
			}
			return m, tuiactions.PostCommentCmd(m.service, m.watch.Video.ID, value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m *Model) endPrompt() {
	m.promptKind = ""
	m.prompt.Blur()
	m.prompt.Reset()
}

func (m Model) feedSettled(msg tuiactions.FeedSettledMsg) (tea.Model, tea.Cmd) {
	m.syncCursor()
	err := msg.Err
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, feed.ErrDiscarded), errors.Is(err, reqguard.ErrInFlight), apierr.IsAuth(err):
		return m, nil
	case errors.Is(err, feed.ErrExhausted):
		return m.withStatus("No more videos", false)
	default:
		return m.withStatus(apierr.Message(err), true)
	}
}

func (m Model) toggleSettled(msg tuiactions.ToggleSettledMsg) (tea.Model, tea.Cmd) {
	err := msg.Err
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, reqguard.ErrInFlight), apierr.IsAuth(err):
		return m, nil
	case errors.Is(err, toggle.ErrLocked):
		return m.withStatus("You cannot subscribe to your own channel", true)
	default:
		return m.withStatus(apierr.Message(err), true)
	}
}

// syncCursor keeps the cursor on the same video when the list changes under it.
func (m *Model) syncCursor() {
	items := m.currentFeed().State().Items
	if m.cursorKey != "" {
		if i := tuistate.IndexByKey(items, m.cursorKey); i >= 0 {
			m.cursor = i
			return
		}
	}
	m.cursor = tuistate.ClampCursor(m.cursor, len(items))
}

// toSignIn leaves the current screen for the sign-in form.
func (m *Model) toSignIn(status string, warning bool) tea.Cmd {
	m.watch.Close()
	m.watch = nil
	m.opening = false
	m.signingIn = false
	m.endPrompt()
	m.screen = tuiview.ScreenSignIn
	m.user = ""
	m.password.Reset()
	m.setFocus(0)
	return m.setStatus(status, warning)
}

func (m Model) withStatus(status string, warning bool) (tea.Model, tea.Cmd) {
	cmd := m.setStatus(status, warning)
	return m, cmd
}

func (m *Model) setStatus(status string, warning bool) tea.Cmd {
	m.status = status
	m.warning = warning
	m.statusID++
	return clearStatusCmd(m.statusID, 4*time.Second)
}

func clearStatusCmd(id int, after time.Duration) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg {
		return clearStatusMsg{id: id}
	})
}

func (m Model) persistPreferencesCmd() tea.Cmd {
	prefs := storage.Preferences{LastCategory: m.categories[m.category], RelativeTime: m.relativeTime}
	service := m.service
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := service.SavePreferences(ctx, prefs); err != nil {
			return preferenceSaveErrorMsg{err: err}
		}
		return nil
	}
}

func (m Model) loadCategoryCmd() tea.Cmd {
	name := m.categories[m.category]
	return tuiactions.SetQueryCmd(m.catFeed, name, name)
}

func (m Model) currentFeed() *feed.Manager[vibetube.Video] {
	if m.mode == modeSearch {
		return m.searchFeed
	}
	return m.catFeed
}

func (m Model) sourceLabel() string {
	if m.mode == modeSearch {
		return "search " + fmt.Sprintf("%q", m.searchQuery)
	}
	return m.categories[m.category]
}

func (m Model) loading() bool {
	if m.signingIn || m.opening {
		return true
	}
	switch m.screen {
	case tuiview.ScreenFeed:
		return m.currentFeed().State().Loading
	case tuiview.ScreenWatch:
		return m.watch != nil && (m.watch.Like.State().Pending || m.watch.Subscribe.State().Pending)
	}
	return false
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

func (m Model) bodyHeight() int {
	if m.height <= 0 {
		return 1 << 20
	}
	h := m.height - chromeLines
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) watchLines() []string {
	if m.watch == nil {
		return nil
	}
	return tuiview.WatchLines(tuiview.WatchParams{
		Video:        m.watch.Video,
		Like:         m.watch.Like.State(),
		Subscribe:    m.watch.Subscribe.State(),
		Comments:     m.watch.Comments,
		CommentsErr:  m.watch.CommentsErr,
		Now:          m.nowFn(),
		RelativeTime: m.relativeTime,
		Width:        m.contentWidth(),
	}, m.th)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.th.Title.Render("VibeTube"))
	if m.user != "" {
		b.WriteString(" " + m.th.MetaLabel.Render("signed in as "+m.user))
	}
	b.WriteString("\n")
	b.WriteString(tuiview.Toolbar(m.screen, m.promptKind != ""))
	b.WriteString("\n\n")

	switch m.screen {
	case tuiview.ScreenSignIn:
		b.WriteString(m.signInView())
	case tuiview.ScreenWatch:
		b.WriteString(m.watchView())
	default:
		b.WriteString(m.feedView())
	}

	b.WriteString("\n")
	b.WriteString(tuiview.Message(m.loading(), m.status, m.warning, m.th))
	b.WriteString("\n")
	if m.screen == tuiview.ScreenFeed {
		st := m.currentFeed().State()
		b.WriteString(tuiview.Footer(tuiview.FooterParams{
			Source:  m.sourceLabel(),
			Shown:   len(st.Items),
			Offset:  st.Offset,
			HasMore: st.HasMore,
			User:    m.user,
		}, m.th))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) signInView() string {
	var b strings.Builder
	b.WriteString(m.th.Section.Render("Sign in"))
	b.WriteString("\n\n")
	b.WriteString(m.th.MetaLabel.Render("Username") + "\n")
	b.WriteString(m.th.Input.Render(m.username.View()) + "\n")
	b.WriteString(m.th.MetaLabel.Render("Password") + "\n")
	b.WriteString(m.th.Input.Render(m.password.View()) + "\n")
	return b.String()
}

func (m Model) feedView() string {
	var b strings.Builder
	active := m.category
	if m.mode == modeSearch {
		active = -1
	}
	b.WriteString(tuiview.Tabs(m.categories, active, m.th))
	b.WriteString("\n")
	if m.mode == modeSearch {
		b.WriteString(m.th.Section.Render("Results for "+fmt.Sprintf("%q", m.searchQuery)) + "  " + m.th.MetaLabel.Render("esc back to "+m.categories[m.category]))
		b.WriteString("\n")
	}
	if m.promptKind == promptSearch {
		b.WriteString(m.th.Input.Render(m.prompt.View()))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	st := m.currentFeed().State()
	if len(st.Items) == 0 {
		switch {
		case st.Loading:
			b.WriteString("Loading videos...\n")
		case st.Err != nil:
			b.WriteString(m.th.StateWarn.Render("Could not load videos: "+apierr.Message(st.Err)) + "\n")
			b.WriteString("Press r to retry.\n")
		default:
			b.WriteString("No videos found.\n")
		}
		return b.String()
	}

	cursor := tuistate.ClampCursor(m.cursor, len(st.Items))
	start, end := tuistate.CenteredWindow(len(st.Items), cursor, m.bodyHeight()-2)
	now := m.nowFn()
	for i := start; i < end; i++ {
		b.WriteString(tuiview.RenderVideoLine(tuiview.VideoLineParams{
			Video:        st.Items[i],
			Now:          now,
			RelativeTime: m.relativeTime,
			Position:     i,
			Active:       i == cursor,
			Width:        m.contentWidth(),
		}, m.th))
		b.WriteString("\n")
	}

	switch {
	case st.Loading:
		b.WriteString(m.th.StateLoad.Render("Loading more...") + "\n")
	case st.Err != nil:
		b.WriteString(m.th.StateWarn.Render("Could not load more: "+apierr.Message(st.Err)) + "\n")
	case st.HasMore:
		b.WriteString(m.th.MetaLabel.Render("n: load more") + "\n")
	default:
		b.WriteString(m.th.MetaLabel.Render("End of feed") + "\n")
	}
	return b.String()
}

func (m Model) watchView() string {
	if m.watch == nil {
		return "No video selected.\n"
	}
	lines := m.watchLines()
	height := m.bodyHeight()
	if m.promptKind == promptComment {
		height -= 3
	}
	top := tuistate.ClampScroll(m.watchTop, len(lines), height)
	end := top + height
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for _, line := range lines[top:end] {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.promptKind == promptComment {
		b.WriteString(m.th.Input.Render(m.prompt.View()))
		b.WriteString("\n")
	}
	return b.String()
}
