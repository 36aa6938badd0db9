package srv

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"duelists/protocol"
)

// sendQueueSize bounds the per-client outbound queue. A slow peer drops lines
// rather than stalling the lobby that broadcasts to it.
const sendQueueSize = 64

// lineConn is the transport a session runs on: whole lines in, whole lines
// out. TCP and websocket connections both satisfy it.
type lineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// tcpConn adapts a raw TCP connection to lineConn.
type tcpConn struct {
	c  net.Conn
	sc *bufio.Scanner
}

func newTCPConn(c net.Conn) *tcpConn {
	sc := bufio.NewScanner(c)
	sc.Buffer(make([]byte, 0, 2048), 64*1024)
	return &tcpConn{c: c, sc: sc}
}

func (t *tcpConn) ReadLine() (string, error) {
	if !t.sc.Scan() {
		if err := t.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return t.sc.Text(), nil
}

func (t *tcpConn) WriteLine(line string) error {
	_, err := t.c.Write([]byte(line + "\n"))
	return err
}

func (t *tcpConn) Close() error       { return t.c.Close() }
func (t *tcpConn) RemoteAddr() string { return t.c.RemoteAddr().String() }

type phase int

const (
	phaseUnregistered phase = iota
	phaseLobbyless
	phaseInLobby
	phaseInDuel
)

// client is one connected session. The reader goroutine owns the control
// loop; name/phase/lobby are shared with other sessions (evictions, duel end)
// and guarded by mu. mu is a leaf lock: it is never held while acquiring the
// hub or a lobby lock.
type client struct {
	hub  *Hub
	conn lineConn

	send chan string
	done chan struct{}
	stop sync.Once

	mu    sync.Mutex
	name  string
	phase phase
	lobby *Lobby
}

func newClient(h *Hub, conn lineConn) *client {
	return &client{
		hub:   h,
		conn:  conn,
		send:  make(chan string, sendQueueSize),
		done:  make(chan struct{}),
		phase: phaseUnregistered,
	}
}

func (c *client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *client) currentPhase() phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *client) snapshot() (string, phase, *Lobby) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name, c.phase, c.lobby
}

func (c *client) setRegistered(name string) {
	c.mu.Lock()
	c.name = name
	c.phase = phaseLobbyless
	c.mu.Unlock()
}

func (c *client) setLobby(l *Lobby, ph phase) {
	c.mu.Lock()
	c.lobby = l
	c.phase = ph
	c.mu.Unlock()
}

func (c *client) setPhase(ph phase) {
	c.mu.Lock()
	c.phase = ph
	c.mu.Unlock()
}

func (c *client) label() string {
	if n := c.Name(); n != "" {
		return n
	}
	return c.conn.RemoteAddr()
}

// writer is the single goroutine that touches the connection for output. It
// drains the queue after shutdown so farewell notices still go out.
func (c *client) writer() {
	defer c.conn.Close()
	for {
		select {
		case line := <-c.send:
			if err := c.conn.WriteLine(line); err != nil {
				klog.V(2).Infof("write to %s failed: %v", c.label(), err)
				return
			}
		case <-c.done:
			for {
				select {
				case line := <-c.send:
					if c.conn.WriteLine(line) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// enqueue is best-effort delivery: a full queue drops the line.
func (c *client) enqueue(line string) {
	select {
	case c.send <- line:
	default:
	}
}

func (c *client) enqueueAll(lines []string) {
	for _, line := range lines {
		c.enqueue(line)
	}
}

func (c *client) sendServer(msg string) { c.enqueue(protocol.Server(msg)) }
func (c *client) sendError(msg string)  { c.enqueue(protocol.Error(msg)) }

func (c *client) sendBox(title string, lines ...string) {
	c.enqueueAll(protocol.Box(title, lines...))
}

func (c *client) shutdown() {
	c.stop.Do(func() { close(c.done) })
}

// run drives the session: handshake, then the command loop. Every exit path
// funnels into the hub's disconnect cleanup.
func (c *client) run() {
	defer c.hub.disconnect(c)

	if !c.handshake() {
		return
	}
	c.commandLoop()
}

// handshake blocks until a well-formed, unique USERNAME claim arrives. No
// shared lock is held while waiting for input.
func (c *client) handshake() bool {
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			klog.V(2).Infof("connection %s closed before handshake: %v", c.conn.RemoteAddr(), err)
			return false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cmd, arg := protocol.SplitCommand(line)
		if !strings.EqualFold(strings.TrimSpace(cmd), protocol.CmdUsername) {
			c.sendError("Claim a name first: USERNAME|<name>")
			continue
		}
		name := strings.TrimSpace(arg)
		if name == "" {
			c.sendError("Name must not be empty.")
			continue
		}
		if !c.hub.register(c, name) {
			klog.Warningf("name %q rejected for %s: already taken", name, c.conn.RemoteAddr())
			c.sendError("Name is already taken. Pick another: USERNAME|<name>")
			continue
		}
		klog.Infof("%s registered as %q", c.conn.RemoteAddr(), name)
		c.sendServer("Welcome, " + name + "!")
		c.sendHelp()
		return true
	}
}

func (c *client) commandLoop() {
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			klog.V(2).Infof("connection %s closed: %v", c.label(), err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.dispatch(line)
	}
}

// dispatch routes one command line by session phase. A panic in a handler is
// an internal error for that command only, never a dead loop or server.
func (c *client) dispatch(line string) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("panic handling %q from %s: %v", line, c.label(), r)
			c.sendError("Internal error. The command was not applied.")
		}
	}()

	cmd, arg := protocol.SplitCommand(line)
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	klog.V(2).Infof("command from %s: %s", c.label(), line)

	if cmd == protocol.CmdHelp {
		c.sendHelp()
		return
	}

	_, ph, lobby := c.snapshot()
	switch ph {
	case phaseLobbyless:
		c.dispatchLobbyless(cmd, arg)
	case phaseInLobby:
		c.dispatchLobby(lobby, cmd, arg)
	case phaseInDuel:
		c.dispatchDuel(lobby, cmd, arg)
	}
}

func (c *client) dispatchLobbyless(cmd, arg string) {
	switch cmd {
	case protocol.CmdCreate:
		c.hub.createLobby(c, strings.TrimSpace(arg))
	case protocol.CmdJoin:
		c.hub.joinLobby(c, strings.TrimSpace(arg))
	case protocol.CmdDuels:
		c.hub.listOpenLobbies(c)
	case protocol.CmdChat:
		c.hub.globalChat(c, arg)
	default:
		c.sendError("Unknown command. /help")
	}
}

func (c *client) dispatchLobby(l *Lobby, cmd, arg string) {
	if l == nil {
		c.setLobby(nil, phaseLobbyless)
		c.sendError("Lobby no longer exists.")
		return
	}
	switch cmd {
	case protocol.CmdChat:
		l.chat(c, arg)
	case protocol.CmdLeave:
		l.leave(c, false)
	case protocol.CmdCards:
		l.showCards(c)
	case protocol.CmdOrder:
		l.setOrder(c, arg)
	case protocol.CmdReady:
		l.toggleReady(c)
	case protocol.CmdStart:
		l.start(c)
	default:
		c.sendError("Unknown command in lobby. /help")
	}
}

func (c *client) dispatchDuel(l *Lobby, cmd, arg string) {
	if l == nil {
		c.setLobby(nil, phaseLobbyless)
		c.sendError("No active duel.")
		return
	}
	switch cmd {
	case protocol.CmdChat:
		l.chat(c, arg)
	case protocol.CmdAttack:
		l.attack(c, arg)
	case protocol.CmdDefend:
		l.defend(c, arg)
	case protocol.CmdStats:
		l.stats(c)
	case protocol.CmdLeave:
		l.leave(c, false)
	default:
		c.sendError("Unknown command in duel. /help")
	}
}

func (c *client) sendHelp() {
	c.sendServer("/help - list commands")
	switch c.currentPhase() {
	case phaseLobbyless:
		c.sendServer("/create <name> - create a lobby")
		c.sendServer("/join <name> - join an open lobby")
		c.sendServer("/duels - list open lobbies")
		c.sendServer("/chat <msg> - global chat")
	case phaseInLobby:
		c.sendServer("/leave - leave the lobby")
		c.sendServer("/cards - show your card order")
		c.sendServer("/order <A B C> - set your card order")
		c.sendServer("/ready - toggle ready")
		c.sendServer("/start - host starts the duel")
		c.sendServer("/chat <msg> - lobby chat")
	case phaseInDuel:
		c.sendServer("/leave - leave the duel")
		c.sendServer("/chat <msg> - duel chat")
		c.sendServer("/stats - show HP, round and cards")
		c.sendServer("/attack <value> - attack within your card's range")
		c.sendServer("/defend <values...> - guess the attack value")
	}
}
