package actions

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ChangedMsg asks the model to re-render from controller and feed state.
type ChangedMsg struct{}

// AuthExpiredMsg routes the view to the sign-in screen.
type AuthExpiredMsg struct{}

// Notifier turns hooks fired on arbitrary goroutines into bubbletea messages.
// Bursts coalesce into a single pending message per kind.
type Notifier struct {
	changed chan struct{}
	auth    chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{
		changed: make(chan struct{}, 1),
		auth:    make(chan struct{}, 1),
	}
}

// Changed is safe to use as a feed or toggle OnChange hook.
func (n *Notifier) Changed() {
	select {
	case n.changed <- struct{}{}:
	default:
	}
}

// AuthFailed is safe to use as the session's failure handler.
func (n *Notifier) AuthFailed() {
	select {
	case n.auth <- struct{}{}:
	default:
	}
}

// WaitChanged blocks until the next change. Re-issue it after each ChangedMsg.
func (n *Notifier) WaitChanged() tea.Cmd {
	return func() tea.Msg {
		<-n.changed
		return ChangedMsg{}
	}
}

func (n *Notifier) WaitAuth() tea.Cmd {
	return func() tea.Msg {
		<-n.auth
		return AuthExpiredMsg{}
	}
}
