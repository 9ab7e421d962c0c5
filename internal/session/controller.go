package session

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/marks/internal/bookmarks"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/logger"
)

// Bookmarks is the bookmark service as seen by a controller.
type Bookmarks interface {
	LoadAll(ctx context.Context, ownerID string) ([]*domain.Bookmark, error)
	Add(ctx context.Context, ownerID, title, url string) (bookmarks.Outcome, error)
	Update(ctx context.Context, ownerID string, current *domain.Bookmark, newTitle, newURL string) (bookmarks.Outcome, error)
	Remove(ctx context.Context, ownerID, id string) (bookmarks.Outcome, error)
}

// State is a read-only snapshot of a session.
type State struct {
	Principal    *domain.Principal  `json:"principal"`
	Bookmarks    []*domain.Bookmark `json:"bookmarks"`
	Visible      []*domain.Bookmark `json:"visible"`
	Query        string             `json:"query"`
	EditingID    string             `json:"editingId,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	DuplicateID  string             `json:"duplicateId,omitempty"`
}

// Controller owns the state of one session. Its collection only changes
// through service results and principal changes.
type Controller struct {
	provider Provider
	service  Bookmarks
	logger   logger.Logger

	mu         sync.Mutex
	generation uint64 // bumped on every principal change
	events     uint64 // provider notifications received
	principal  *domain.Principal
	collection []*domain.Bookmark
	query      string
	editingID  string
	errMessage string
	dupID      string

	watchers    map[int]func(State)
	nextWatcher int
	unsubscribe func()
	closed      bool
}

// NewController creates an unbound controller.
func NewController(provider Provider, service Bookmarks, log logger.Logger) *Controller {
	return &Controller{
		provider:   provider,
		service:    service,
		logger:     log,
		collection: []*domain.Bookmark{},
		watchers:   make(map[int]func(State)),
	}
}

// Bind loads the current principal's collection and follows principal
// changes until Close. The subscription is opened before the principal is
// read so a change in between is still delivered.
func (c *Controller) Bind(ctx context.Context) error {
	unsubscribe, err := c.provider.Subscribe(ctx, c.onPrincipal)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return nil
	}
	c.unsubscribe = unsubscribe
	seen := c.events
	c.mu.Unlock()

	p, err := c.provider.Current(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	// A notification received since subscribing is at least as recent as p.
	if c.closed || c.events != seen {
		c.mu.Unlock()
		return nil
	}
	return c.resetLocked(ctx, p)
}

func (c *Controller) onPrincipal(p *domain.Principal) {
	c.mu.Lock()
	c.events++
	c.mu.Unlock()

	if err := c.switchTo(context.Background(), p); err != nil {
		c.logger.Error("failed to load bookmarks after principal change", logger.Error(err))
	}
}

// switchTo discards everything tied to the previous principal and loads the
// collection of p.
func (c *Controller) switchTo(ctx context.Context, p *domain.Principal) error {
	c.mu.Lock()
	if c.closed || (domain.SamePrincipal(c.principal, p) && c.generation > 0) {
		c.mu.Unlock()
		return nil
	}
	return c.resetLocked(ctx, p)
}

// resetLocked installs p with an empty collection, releases c.mu and loads
// p's bookmarks under the new generation.
func (c *Controller) resetLocked(ctx context.Context, p *domain.Principal) error {
	c.generation++
	gen := c.generation
	c.principal = p
	c.collection = []*domain.Bookmark{}
	c.editingID = ""
	c.errMessage = ""
	c.dupID = ""
	state := c.snapshotLocked()
	watchers := c.watchersLocked()
	c.mu.Unlock()

	notify(watchers, state)

	if p == nil {
		return nil
	}

	c.logger.Debug("principal changed, loading bookmarks", logger.String("owner", p.ID))
	list, err := c.service.LoadAll(domain.WithPrincipal(ctx, p), p.ID)
	return c.apply(gen, "load", func() { c.collection = list }, err)
}

// SignIn records p on the provider and switches to it right away. The
// provider's own notification is then a no-op.
func (c *Controller) SignIn(ctx context.Context, p *domain.Principal) error {
	if err := c.provider.SignIn(ctx, p); err != nil {
		return err
	}
	return c.switchTo(ctx, p)
}

// SignOut clears the provider and the state.
func (c *Controller) SignOut(ctx context.Context) error {
	if err := c.provider.SignOut(ctx); err != nil {
		return err
	}
	return c.switchTo(ctx, nil)
}

// Add stores a new bookmark for the signed-in principal.
func (c *Controller) Add(ctx context.Context, title, url string) error {
	gen, p, err := c.begin()
	if err != nil {
		return err
	}

	out, err := c.service.Add(domain.WithPrincipal(ctx, p), p.ID, title, url)
	return c.apply(gen, "add", func() { c.replace(out) }, err)
}

// StartEdit puts the bookmark with id in edit mode.
func (c *Controller) StartEdit(id string) error {
	c.mu.Lock()
	if c.principal == nil {
		c.mu.Unlock()
		return domain.ErrUnauthenticated
	}
	c.clearErrorLocked()
	if find(c.collection, id) == nil {
		c.mu.Unlock()
		return domain.ErrNotFound
	}
	c.editingID = id
	state := c.snapshotLocked()
	watchers := c.watchersLocked()
	c.mu.Unlock()

	notify(watchers, state)
	return nil
}

// CancelEdit leaves edit mode without writing anything.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.editingID = ""
	c.clearErrorLocked()
	state := c.snapshotLocked()
	watchers := c.watchersLocked()
	c.mu.Unlock()

	notify(watchers, state)
}

// SaveEdit writes new values for the bookmark with id. Unchanged values only
// leave edit mode.
func (c *Controller) SaveEdit(ctx context.Context, id, title, url string) error {
	gen, p, err := c.begin()
	if err != nil {
		return err
	}

	c.mu.Lock()
	current := find(c.collection, id).Clone()
	c.mu.Unlock()

	out, err := c.service.Update(domain.WithPrincipal(ctx, p), p.ID, current, title, url)
	return c.apply(gen, "update", func() {
		c.replace(out)
		if c.editingID == id {
			c.editingID = ""
		}
	}, err)
}

// Delete removes the bookmark with id.
func (c *Controller) Delete(ctx context.Context, id string) error {
	gen, p, err := c.begin()
	if err != nil {
		return err
	}

	out, err := c.service.Remove(domain.WithPrincipal(ctx, p), p.ID, id)
	return c.apply(gen, "delete", func() {
		c.replace(out)
		if c.editingID == id {
			c.editingID = ""
		}
	}, err)
}

// Refresh reloads the collection from the store.
func (c *Controller) Refresh(ctx context.Context) error {
	gen, p, err := c.begin()
	if err != nil {
		return err
	}

	list, err := c.service.LoadAll(domain.WithPrincipal(ctx, p), p.ID)
	return c.apply(gen, "refresh", func() { c.collection = list }, err)
}

// SetQuery changes the title filter and returns the resulting state.
// Messages from earlier commands are kept.
func (c *Controller) SetQuery(query string) State {
	c.mu.Lock()
	changed := c.query != query
	c.query = query
	state := c.snapshotLocked()
	watchers := c.watchersLocked()
	c.mu.Unlock()

	if changed {
		notify(watchers, state)
	}
	return state
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.snapshotLocked()
}

// Watch calls fn with every new state until cancel is called. fn must not
// call back into the controller.
func (c *Controller) Watch(fn func(State)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
}

// Close stops following principal changes and drops watchers.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.watchers = make(map[int]func(State))
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// begin clears the previous message and captures the principal a command
// runs for.
func (c *Controller) begin() (uint64, *domain.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearErrorLocked()
	if c.principal == nil {
		return 0, nil, domain.ErrUnauthenticated
	}
	return c.generation, c.principal, nil
}

// apply commits the result of a service call started under generation gen.
// Results from an older generation belong to another principal and are
// dropped.
func (c *Controller) apply(gen uint64, op string, onSuccess func(), err error) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("dropping stale result", logger.String("op", op))
		return nil
	}

	var result error
	switch dup, isDup := domain.AsDuplicate(err); {
	case err == nil:
		onSuccess()
	case errors.Is(err, domain.ErrValidation):
		// silent
	case isDup:
		c.errMessage = domain.DuplicateMessage
		c.dupID = dup.ExistingID
		result = err
	case errors.Is(err, domain.ErrNotFound):
		result = err
	default:
		c.logger.Error("bookmark operation failed", logger.String("op", op), logger.Error(err))
		c.errMessage = domain.UnavailableMessage
		result = err
	}

	state := c.snapshotLocked()
	watchers := c.watchersLocked()
	c.mu.Unlock()

	notify(watchers, state)
	return result
}

// replace installs the collection returned by a mutating call.
func (c *Controller) replace(out bookmarks.Outcome) {
	if out.Changed {
		c.collection = out.Bookmarks
	}
}

func (c *Controller) clearErrorLocked() {
	c.errMessage = ""
	c.dupID = ""
}

func (c *Controller) snapshotLocked() State {
	return State{
		Principal:    c.principal,
		Bookmarks:    c.collection,
		Visible:      domain.Filter(c.collection, c.query),
		Query:        c.query,
		EditingID:    c.editingID,
		ErrorMessage: c.errMessage,
		DuplicateID:  c.dupID,
	}
}

func (c *Controller) watchersLocked() []func(State) {
	out := make([]func(State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		out = append(out, fn)
	}
	return out
}

func notify(watchers []func(State), state State) {
	for _, fn := range watchers {
		fn(state)
	}
}

func find(list []*domain.Bookmark, id string) *domain.Bookmark {
	for _, b := range list {
		if b.ID == id {
			return b
		}
	}
	return nil
}
