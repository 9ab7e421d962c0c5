package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// eventHub shares one pattern subscription to every session channel among
// all subscribers of the process and routes messages by session id.
type eventHub struct {
	client *redis.Client

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
	subs   map[string]map[uint64]*subscriber
	next   uint64
}

// subscriber receives the principals of one session. Only the latest
// undelivered principal is kept, so a slow listener never holds up the
// others.
type subscriber struct {
	fn     func(*domain.Principal)
	onErr  func(error)
	latest chan *domain.Principal
	stop   chan struct{}
	done   chan struct{}
}

func newEventHub(client *redis.Client) *eventHub {
	return &eventHub{
		client: client,
		subs:   make(map[string]map[uint64]*subscriber),
	}
}

// listen opens the shared subscription on first use and waits for its
// confirmation, so no publish made after it returns is missed.
func (h *eventHub) listen(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pubsub != nil {
		return nil
	}

	pubsub := h.client.PSubscribe(context.WithoutCancel(ctx), SessionChannelPattern)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	h.pubsub = pubsub
	h.done = make(chan struct{})
	go h.run(pubsub.Channel(), h.done)
	return nil
}

func (h *eventHub) run(messages <-chan *redis.Message, done chan<- struct{}) {
	defer close(done)
	for msg := range messages {
		h.dispatch(msg.Channel, msg.Payload)
	}
}

// dispatch hands a channel message to the subscribers of its session.
func (h *eventHub) dispatch(channel, payload string) {
	id, err := SessionIDFromChannel(channel)
	if err != nil {
		return
	}

	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[id]))
	for _, s := range h.subs[id] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	if len(targets) == 0 {
		return
	}

	p, err := decodePrincipal([]byte(payload))
	for _, s := range targets {
		if err != nil {
			if s.onErr != nil {
				s.onErr(err)
			}
			continue
		}
		s.offer(p)
	}
}

// add registers fn for the session id and returns its unsubscribe func.
func (h *eventHub) add(id string, fn func(*domain.Principal), onErr func(error)) func() {
	s := &subscriber{
		fn:     fn,
		onErr:  onErr,
		latest: make(chan *domain.Principal, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()

	h.mu.Lock()
	key := h.next
	h.next++
	if h.subs[id] == nil {
		h.subs[id] = make(map[uint64]*subscriber)
	}
	h.subs[id][key] = s
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[id], key)
			if len(h.subs[id]) == 0 {
				delete(h.subs, id)
			}
			h.mu.Unlock()

			close(s.stop)
			<-s.done
		})
	}
}

// size returns the number of registered subscribers.
func (h *eventHub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.subs {
		n += len(subs)
	}
	return n
}

// close ends the shared subscription. Registered subscribers stay
// registered but receive nothing more.
func (h *eventHub) close() error {
	h.mu.Lock()
	pubsub, done := h.pubsub, h.done
	h.pubsub, h.done = nil, nil
	h.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}

// offer replaces any undelivered principal with p. dispatch is the only
// sender.
func (s *subscriber) offer(p *domain.Principal) {
	select {
	case s.latest <- p:
		return
	default:
	}
	select {
	case <-s.latest:
	default:
	}
	select {
	case s.latest <- p:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.done)
	for {
		select {
		case p := <-s.latest:
			s.fn(p)
		case <-s.stop:
			return
		}
	}
}
