package session

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Local is an in-process Provider. Listeners run synchronously on the
// goroutine calling SignIn or SignOut.
type Local struct {
	mu        sync.Mutex
	principal *domain.Principal
	listeners map[int]Listener
	next      int
}

// NewLocal creates a provider signed in as p (nil => signed out).
func NewLocal(p *domain.Principal) *Local {
	return &Local{
		principal: p,
		listeners: make(map[int]Listener),
	}
}

func (l *Local) Current(context.Context) (*domain.Principal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.principal, nil
}

func (l *Local) Subscribe(_ context.Context, fn Listener) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	l.next++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}, nil
}

func (l *Local) SignIn(_ context.Context, p *domain.Principal) error {
	l.set(p)
	return nil
}

func (l *Local) SignOut(context.Context) error {
	l.set(nil)
	return nil
}

func (l *Local) set(p *domain.Principal) {
	l.mu.Lock()
	l.principal = p
	listeners := make([]Listener, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(p)
	}
}
