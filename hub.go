// SPDX-License-Identifier: GPL-3.0-or-later

package lansim

import "sync"

// Hub is a physical-layer repeater: every frame received on one link
// goes out of all the other links unchanged. Hubs do not learn
// addresses and do not validate checksums.
//
// Construct using [NewHub].
type Hub struct {
	// logger receives the hub's events.
	logger Logger

	// name is the hub's topology name.
	name string

	// mu guards links.
	mu sync.Mutex

	// links are the attached links.
	links []*Link
}

// HubOption is an option for [NewHub].
type HubOption func(h *Hub)

// HubOptionLogger overrides the default no-op [Logger].
func HubOptionLogger(logger Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a new [*Hub].
func NewHub(name string, options ...HubOption) *Hub {
	h := &Hub{
		logger: NopLogger(),
		name:   name,
	}
	for _, opt := range options {
		opt(h)
	}
	h.logger = h.logger.WithField("hub", name)
	return h
}

var _ Endpoint = &Hub{}

// Name implements [Endpoint].
func (h *Hub) Name() string {
	return h.name
}

// Connect attaches the hub to a link.
func (h *Hub) Connect(link *Link) error {
	if err := link.Attach(h); err != nil {
		return err
	}
	h.mu.Lock()
	h.links = append(h.links, link)
	h.mu.Unlock()
	return nil
}

// Disconnect detaches the hub from a link.
func (h *Hub) Disconnect(link *Link) {
	link.Detach(h)
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, l := range h.links {
		if l == link {
			h.links = append(h.links[:i], h.links[i+1:]...)
			break
		}
	}
}

// ReceiveFrame implements [Endpoint]: repeat the frame out of every
// link except the one it arrived on.
func (h *Hub) ReceiveFrame(frame *Frame, from Endpoint) {
	h.mu.Lock()
	links := make([]*Link, len(h.links))
	copy(links, h.links)
	h.mu.Unlock()

	h.logger.Debugf("repeating frame %d from %s", frame.Seq, from.Name())
	for _, link := range links {
		if link.HasEndpoint(from) {
			continue
		}
		if err := link.Transmit(frame, h); err != nil {
			h.logger.Warnf("repeat on link %s failed: %v", link.Name(), err)
		}
	}
}
