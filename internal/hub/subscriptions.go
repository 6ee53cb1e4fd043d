package hub

import (
	"sort"
)

// Subscribe adds the edge publisher -> subscriber. The publisher must be
// online and in the subscriber's room right now; after that the edge
// survives room moves. Subscribing twice is a no-op.
func (h *Hub) Subscribe(subscriber, publisher string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.users[subscriber]
	if !ok {
		return ErrNoSession
	}
	pub, ok := h.users[publisher]
	if !ok {
		return ErrPublisherOffline
	}
	if sub.room != pub.room {
		return ErrNotSameRoom
	}

	subscribers, ok := h.subs[publisher]
	if !ok {
		subscribers = make(map[string]struct{})
		h.subs[publisher] = subscribers
	}
	subscribers[subscriber] = struct{}{}
	return nil
}

// Unsubscribe removes the edge if present and reports whether it existed.
func (h *Hub) Unsubscribe(subscriber, publisher string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.subs[publisher]
	if !ok {
		return false
	}
	if _, ok := subscribers[subscriber]; !ok {
		return false
	}
	delete(subscribers, subscriber)
	return true
}

// Subscriptions lists the publishers username subscribes to, sorted.
func (h *Hub) Subscriptions(username string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var publishers []string
	for publisher, subscribers := range h.subs {
		if _, ok := subscribers[username]; ok {
			publishers = append(publishers, publisher)
		}
	}
	sort.Strings(publishers)
	return publishers
}

// Subscribers lists who subscribes to publisher, online or not, sorted.
func (h *Hub) Subscribers(publisher string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.subs[publisher]))
	for name := range h.subs[publisher] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publish delivers line to every subscriber of publisher that is online at
// delivery time and returns how many sends succeeded. Offline subscribers
// are skipped. A subscriber whose send fails loses the edge, as long as the
// failed connection is still that user's current session.
func (h *Hub) Publish(publisher, line string) int {
	h.mu.Lock()
	if _, online := h.users[publisher]; !online {
		h.mu.Unlock()
		return 0
	}
	targets := make([]*session, 0, len(h.subs[publisher]))
	for name := range h.subs[publisher] {
		if s, ok := h.users[name]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	delivered := 0
	var failed []*session
	for _, s := range targets {
		if err := s.conn.Send(line); err != nil {
			h.logger.Debug("publish send failed", "publisher", publisher, "user", s.username, "err", err)
			failed = append(failed, s)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, s := range failed {
			if h.users[s.username] == s {
				delete(h.subs[publisher], s.username)
			}
		}
		h.mu.Unlock()
	}
	return delivered
}
