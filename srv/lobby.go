package srv

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"duelists/game"
	"duelists/protocol"
)

// Lobby pairs up to two players for one duel. mu guards every mutable field
// including the full attack/defense/advancement sequence, so interleaved
// commands from the two sessions cannot race. It is never held across a
// blocking network read.
type Lobby struct {
	name string
	hub  *Hub

	mu        sync.Mutex
	host      *client
	opponent  *client
	hostReady bool
	oppReady  bool
	hostOrder game.Order
	oppOrder  game.Order
	duel      *duel
	closed    bool
}

func newLobby(name string, host *client, h *Hub) *Lobby {
	return &Lobby{
		name:      name,
		hub:       h,
		host:      host,
		hostOrder: game.DefaultOrder(),
		oppOrder:  game.DefaultOrder(),
	}
}

// listing reports the lobby for /duels: name, host name, and whether it is
// open for a join.
func (l *Lobby) listing() (name, host string, open bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.opponent != nil {
		return "", "", false
	}
	return l.name, l.host.Name(), true
}

func (l *Lobby) join(c *client) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		c.sendError("Lobby does not exist.")
		return
	}
	if l.opponent != nil {
		l.mu.Unlock()
		c.sendError("Lobby is full.")
		return
	}
	l.opponent = c
	l.oppReady = false
	l.oppOrder = game.DefaultOrder()
	c.setLobby(l, phaseInLobby)
	c.sendServer("You joined lobby '" + l.name + "'.")
	l.broadcastLocked(protocol.Server(c.Name() + " joined the lobby."))
	l.mu.Unlock()
	klog.Infof("%s joined lobby %q", c.Name(), l.name)
}

// leave handles /leave and implicit disconnects for both seats, in every
// lobby state. Host leaving destroys the lobby; the opponent leaving reopens
// it. Ready flags reset either way.
func (l *Lobby) leave(c *client, disconnected bool) {
	l.mu.Lock()
	inDuel := l.duel != nil
	destroy := false
	switch c {
	case l.host:
		if opp := l.opponent; opp != nil {
			if inDuel {
				opp.sendServer("Host left the duel. You are back to the lobby list.")
			} else {
				opp.sendServer("Host left the lobby. You are back to the lobby list.")
			}
			opp.setLobby(nil, phaseLobbyless)
			l.opponent = nil
		}
		l.closed = true
		destroy = true
	case l.opponent:
		l.opponent = nil
		if inDuel {
			l.host.setPhase(phaseInLobby)
			l.host.sendServer("Opponent left the duel. You are back in the lobby.")
		} else {
			l.host.sendServer("Opponent left the lobby.")
		}
	default:
		l.mu.Unlock()
		if !disconnected {
			c.sendError("You are not in this lobby.")
		}
		return
	}
	l.duel = nil
	l.hostReady = false
	l.oppReady = false
	c.setLobby(nil, phaseLobbyless)
	l.mu.Unlock()

	if destroy {
		l.hub.removeLobby(l.name, l)
		klog.Infof("lobby %q destroyed, host %s left", l.name, c.label())
	} else {
		klog.Infof("%s left lobby %q", c.label(), l.name)
	}
	if !disconnected {
		c.sendServer("You left the lobby.")
	}
}

// occupantLocked reports whether c still holds a seat. Dispatch snapshots the
// session's lobby before locking it, so a concurrent eviction can leave a
// stale reference; every handler re-checks under the lock.
func (l *Lobby) occupantLocked(c *client) bool {
	return c == l.host || c == l.opponent
}

func (l *Lobby) chat(c *client, msg string) {
	l.mu.Lock()
	if !l.occupantLocked(c) {
		l.mu.Unlock()
		c.sendError("You are not in this lobby.")
		return
	}
	l.broadcastLocked(c.Name() + ": " + msg)
	l.mu.Unlock()
}

func (l *Lobby) showCards(c *client) {
	l.mu.Lock()
	if !l.occupantLocked(c) {
		l.mu.Unlock()
		c.sendError("You are not in this lobby.")
		return
	}
	order := l.orderOfLocked(c)
	l.mu.Unlock()

	c.sendServer("Your cards in order:")
	for round := 1; round <= game.Rounds; round++ {
		c.enqueue(order.CardAt(round).String())
	}
}

func (l *Lobby) setOrder(c *client, arg string) {
	order, err := game.ParseOrder(arg)
	if err != nil {
		c.sendError("Invalid order: " + err.Error() + ". Example: /order A B C")
		return
	}
	l.mu.Lock()
	if !l.occupantLocked(c) {
		l.mu.Unlock()
		c.sendError("You are not in this lobby.")
		return
	}
	if l.duel != nil {
		l.mu.Unlock()
		c.sendError("Order is locked while a duel is running.")
		return
	}
	if c == l.host {
		l.hostOrder = order
	} else {
		l.oppOrder = order
	}
	l.mu.Unlock()

	names := make([]string, game.Rounds)
	for i, idx := range order {
		names[i] = game.Catalog[idx].Name
	}
	c.sendServer("Order set: " + strings.Join(names, " "))
}

func (l *Lobby) toggleReady(c *client) {
	l.mu.Lock()
	if !l.occupantLocked(c) {
		l.mu.Unlock()
		c.sendError("You are not in this lobby.")
		return
	}
	if l.duel != nil {
		l.mu.Unlock()
		c.sendError("The duel is already running.")
		return
	}
	var ready bool
	if c == l.host {
		l.hostReady = !l.hostReady
		ready = l.hostReady
	} else {
		l.oppReady = !l.oppReady
		ready = l.oppReady
	}
	c.sendServer(fmt.Sprintf("Ready set: %v", ready))
	l.broadcastLocked(protocol.Server(fmt.Sprintf("%s is ready: %v", c.Name(), ready)))
	l.mu.Unlock()
}

// start is host-only and requires a present opponent, both ready flags and no
// running duel. A fair coin picks the first attacker.
func (l *Lobby) start(c *client) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c != l.host {
		c.sendError("Only the host can start.")
		return
	}
	if l.opponent == nil {
		c.sendError("No opponent in the lobby.")
		return
	}
	if l.duel != nil {
		c.sendError("The duel is already running.")
		return
	}
	if !l.hostReady || !l.oppReady {
		c.sendError("Both players must be ready before the duel can start.")
		return
	}

	l.duel = newDuel(l.host, l.opponent, l.hub.startHP)
	l.host.setPhase(phaseInDuel)
	l.opponent.setPhase(phaseInDuel)
	l.broadcastLocked(protocol.Server("The duel begins!"))
	l.broadcastLocked(protocol.Server(l.duel.attacker.Name() + " attacks first. Use /attack <value>."))
	klog.Infof("duel started in lobby %q: %s vs %s", l.name, l.host.Name(), l.opponent.Name())
}

func (l *Lobby) otherLocked(c *client) *client {
	if c == l.host {
		return l.opponent
	}
	return l.host
}

func (l *Lobby) orderOfLocked(c *client) game.Order {
	if c == l.host {
		return l.hostOrder
	}
	return l.oppOrder
}

func (l *Lobby) cardForLocked(c *client, round int) game.Card {
	return l.orderOfLocked(c).CardAt(round)
}

func (l *Lobby) broadcastLocked(line string) {
	if l.host != nil {
		l.host.enqueue(line)
	}
	if l.opponent != nil {
		l.opponent.enqueue(line)
	}
}

func (l *Lobby) broadcastBoxLocked(title string, lines ...string) {
	for _, line := range protocol.Box(title, lines...) {
		l.broadcastLocked(line)
	}
}
