package server

import (
	"errors"
	"slices"
	"sync"

	"github.com/NicolasHaas/linechat/pkg/protocol"
)

var (
	ErrAlreadyOnline = errors.New("server: user already online")
	ErrNotRegistered = errors.New("server: session not registered")
)

// Registry is the set of live sessions and the routing logic over it.
//
// One mutex guards the session slice and every session's login state. All
// fan-out happens while it is held; that is safe because Session.Send only
// enqueues and never blocks.
type Registry struct {
	mu       sync.Mutex
	sessions []*Session // insertion order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a session.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexLocked(s) >= 0 {
		return
	}
	r.sessions = append(r.sessions, s)
}

// Remove drops a session. If it had logged in, the remaining users get a
// leave announcement followed by a fresh roster. Returns false if the
// session was not registered.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(s)
	if i < 0 {
		return false
	}
	r.sessions = slices.Delete(r.sessions, i, i+1)

	if s.authenticated {
		r.broadcastLocked(protocol.Left(s.username), nil)
		r.refreshRosterLocked()
	}
	return true
}

// Login marks s as authenticated under username. The session receives
// LOGIN_SUCCESS, everyone else a join announcement, and then all logged-in
// sessions a new roster. The name check and the state change happen in the
// same critical section, so two sessions can never hold one name.
func (r *Registry) Login(s *Session, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(s) < 0 {
		return ErrNotRegistered
	}
	if s.authenticated {
		return nil
	}
	if r.findLocked(username) != nil {
		return ErrAlreadyOnline
	}

	s.username = username
	s.authenticated = true

	s.Send(protocol.LoginSuccess())
	r.broadcastLocked(protocol.Joined(username), s)
	r.refreshRosterLocked()
	return nil
}

// Broadcast delivers text to every logged-in session except excluding
// (nil excludes nobody) and returns how many recipients accepted it.
func (r *Registry) Broadcast(text string, excluding *Session) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcastLocked(text, excluding)
}

// RoutePrivate delivers text to the logged-in session named recipient,
// tagged with the sender's name. If nobody by that name is online the
// sender is told so. Reports whether a recipient was found.
func (r *Registry) RoutePrivate(text, recipient string, sender *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.findLocked(recipient)
	if target == nil {
		sender.Send(protocol.NotOnline(recipient))
		return false
	}
	target.Send(protocol.Private(sender.username, text))
	return true
}

// RefreshRoster pushes the current roster to every logged-in session.
func (r *Registry) RefreshRoster() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshRosterLocked()
}

// Online returns the logged-in usernames in connection order.
func (r *Registry) Online() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

// Len returns the number of registered sessions, logged in or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) indexLocked(s *Session) int {
	return slices.Index(r.sessions, s)
}

// findLocked returns the first logged-in session named username.
func (r *Registry) findLocked(username string) *Session {
	for _, s := range r.sessions {
		if s.authenticated && s.username == username {
			return s
		}
	}
	return nil
}

func (r *Registry) onlineLocked() []string {
	names := make([]string, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.authenticated {
			names = append(names, s.username)
		}
	}
	return names
}

func (r *Registry) broadcastLocked(text string, excluding *Session) int {
	delivered := 0
	for _, s := range r.sessions {
		if s == excluding || !s.authenticated {
			continue
		}
		if s.Send(text) {
			delivered++
		}
	}
	return delivered
}

func (r *Registry) refreshRosterLocked() {
	r.broadcastLocked(protocol.OnlineUsers(r.onlineLocked()), nil)
}
