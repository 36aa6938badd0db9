// Package srv implements the duel session server: the hub owning the player
// and lobby registries, per-connection session loops, the lobby lifecycle and
// the turn-based combat engine.
package srv

import (
	"net"
	"sort"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Hub owns the two registries. mu guards both maps and the name-uniqueness
// scan; it is never held across a blocking read or write. Lock order is
// hub -> lobby -> client where more than one is needed.
type Hub struct {
	startHP int

	mu      sync.Mutex
	clients map[*client]struct{}
	lobbies map[string]*Lobby
}

func NewHub(startHP int) *Hub {
	return &Hub{
		startHP: startHP,
		clients: make(map[*client]struct{}),
		lobbies: make(map[string]*Lobby),
	}
}

// HandleConn runs the session loop for one TCP connection. Call it in its own
// goroutine; it returns when the peer is gone.
func (h *Hub) HandleConn(conn net.Conn) {
	h.handleLineConn(newTCPConn(conn))
}

func (h *Hub) handleLineConn(conn lineConn) {
	c := newClient(h, conn)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	klog.Infof("client connected from %s", conn.RemoteAddr())

	go c.writer()
	c.run()
}

// register claims a display name, first come first served, case-insensitive
// among currently connected sessions. Failure leaves the session
// unauthenticated so the client can retry.
func (h *Hub) register(c *client, name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for other := range h.clients {
		if other == c {
			continue
		}
		if strings.EqualFold(other.Name(), name) {
			return false
		}
	}
	c.setRegistered(name)
	return true
}

// disconnect is the single cleanup funnel: implicit leave, then registry
// removal, then the writer is released.
func (h *Hub) disconnect(c *client) {
	if _, _, l := c.snapshot(); l != nil {
		l.leave(c, true)
	}
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.shutdown()
	klog.Infof("client %s disconnected", c.label())
}

func (h *Hub) createLobby(c *client, name string) {
	if name == "" {
		c.sendError("Lobby name missing.")
		return
	}
	l := newLobby(name, c, h)
	h.mu.Lock()
	if _, exists := h.lobbies[name]; exists {
		h.mu.Unlock()
		c.sendError("Lobby already exists.")
		return
	}
	h.lobbies[name] = l
	h.mu.Unlock()

	c.setLobby(l, phaseInLobby)
	c.sendServer("Lobby '" + name + "' created. Waiting for an opponent.")
	klog.Infof("%s created lobby %q", c.Name(), name)
}

func (h *Hub) joinLobby(c *client, name string) {
	h.mu.Lock()
	l := h.lobbies[name]
	h.mu.Unlock()
	if l == nil {
		c.sendError("Lobby does not exist.")
		return
	}
	l.join(c)
}

// removeLobby deletes a lobby from the registry, but only the instance that
// asked: the name may already be reused by a fresh lobby.
func (h *Hub) removeLobby(name string, l *Lobby) {
	h.mu.Lock()
	if cur, ok := h.lobbies[name]; ok && cur == l {
		delete(h.lobbies, name)
	}
	h.mu.Unlock()
}

func (h *Hub) listOpenLobbies(c *client) {
	h.mu.Lock()
	all := make([]*Lobby, 0, len(h.lobbies))
	for _, l := range h.lobbies {
		all = append(all, l)
	}
	h.mu.Unlock()

	type entry struct{ name, host string }
	open := make([]entry, 0, len(all))
	for _, l := range all {
		if name, host, ok := l.listing(); ok {
			open = append(open, entry{name, host})
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].name < open[j].name })

	if len(open) == 0 {
		c.sendServer("No open lobbies.")
	}
	for _, e := range open {
		c.enqueue(e.name + " (host: " + e.host + ")")
	}
	c.sendServer("End of list.")
}

// globalChat fans a line out to every other registered, lobbyless player.
func (h *Hub) globalChat(c *client, msg string) {
	line := c.Name() + " (global): " + msg
	h.mu.Lock()
	defer h.mu.Unlock()
	for other := range h.clients {
		if other == c {
			continue
		}
		if other.currentPhase() == phaseLobbyless {
			other.enqueue(line)
		}
	}
}

// StartHP is the health both sides open a duel with.
func (h *Hub) StartHP() int { return h.startHP }
