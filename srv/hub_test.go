package srv

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeConn is an in-memory lineConn fed by the test.
type fakeConn struct {
	in      chan string
	mu      sync.Mutex
	written []string
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan string, 16)}
}

func (f *fakeConn) ReadLine() (string, error) {
	line, ok := <-f.in
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (f *fakeConn) WriteLine(line string) error {
	f.mu.Lock()
	f.written = append(f.written, line)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "test:0" }

// addClient wires a registered session into the hub without a network.
// Replies land in c.send and are read with drain.
func addClient(t *testing.T, h *Hub, name string) *client {
	t.Helper()
	c := newClient(h, newFakeConn())
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if name != "" {
		if !h.register(c, name) {
			t.Fatalf("register %q failed", name)
		}
	}
	return c
}

func drain(c *client) []string {
	var out []string
	for {
		select {
		case line := <-c.send:
			out = append(out, line)
		default:
			return out
		}
	}
}

func containsLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func pairedLobby(t *testing.T, h *Hub) (host, opp *client, l *Lobby) {
	t.Helper()
	host = addClient(t, h, "Host")
	opp = addClient(t, h, "Opp")
	h.createLobby(host, "X")
	h.joinLobby(opp, "X")
	h.mu.Lock()
	l = h.lobbies["X"]
	h.mu.Unlock()
	if l == nil {
		t.Fatal("lobby X not registered")
	}
	drain(host)
	drain(opp)
	return host, opp, l
}

func TestRegisterRejectsDuplicateNameCaseInsensitive(t *testing.T) {
	h := NewHub(14)
	addClient(t, h, "Alice")

	c := addClient(t, h, "")
	if h.register(c, "alice") {
		t.Fatal("duplicate name accepted")
	}
	if c.currentPhase() != phaseUnregistered {
		t.Fatal("rejected session left the unauthenticated state")
	}
	if !h.register(c, "Bob") {
		t.Fatal("retry with a fresh name failed")
	}
	if c.currentPhase() != phaseLobbyless {
		t.Fatal("registered session is not lobbyless")
	}
}

func TestHandshakeRetriesUntilAccepted(t *testing.T) {
	h := NewHub(14)
	addClient(t, h, "Alice")

	fc := newFakeConn()
	c := newClient(h, fc)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	fc.in <- "hello"
	fc.in <- "USERNAME|"
	fc.in <- "USERNAME|ALICE"
	fc.in <- "USERNAME|Bob"
	if !c.handshake() {
		t.Fatal("handshake did not complete")
	}
	if c.Name() != "Bob" {
		t.Fatalf("name = %q, want Bob", c.Name())
	}
	lines := drain(c)
	if !containsLine(lines, "Claim a name first") {
		t.Error("no prompt for the malformed line")
	}
	if !containsLine(lines, "must not be empty") {
		t.Error("no error for the empty name")
	}
	if !containsLine(lines, "already taken") {
		t.Error("no error for the duplicate name")
	}
	if !containsLine(lines, "Welcome, Bob!") {
		t.Error("no welcome message")
	}
}

func TestConcurrentCreateSameLobbyName(t *testing.T) {
	h := NewHub(14)
	const n = 8
	clients := make([]*client, n)
	for i := range clients {
		clients[i] = addClient(t, h, "p"+string(rune('A'+i)))
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			h.createLobby(c, "X")
		}(c)
	}
	wg.Wait()

	h.mu.Lock()
	lobbyCount := len(h.lobbies)
	h.mu.Unlock()
	if lobbyCount != 1 {
		t.Fatalf("lobby count = %d, want 1", lobbyCount)
	}
	winners := 0
	for _, c := range clients {
		if _, ph, l := c.snapshot(); l != nil {
			winners++
			if ph != phaseInLobby {
				t.Errorf("winner phase = %v, want InLobby", ph)
			}
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestGlobalChatReachesOnlyOtherLobbylessPlayers(t *testing.T) {
	h := NewHub(14)
	alice := addClient(t, h, "Alice")
	bob := addClient(t, h, "Bob")
	carol := addClient(t, h, "Carol")
	h.createLobby(carol, "X")
	drain(alice)
	drain(bob)
	drain(carol)

	h.globalChat(alice, "hi all")

	if lines := drain(bob); !containsLine(lines, "Alice (global): hi all") {
		t.Errorf("bob did not get the chat line: %v", lines)
	}
	if lines := drain(carol); containsLine(lines, "hi all") {
		t.Errorf("carol is in a lobby but got the chat line: %v", lines)
	}
	if lines := drain(alice); containsLine(lines, "hi all") {
		t.Errorf("sender got their own chat line back: %v", lines)
	}
}

func TestListOpenLobbiesSkipsPairedOnes(t *testing.T) {
	h := NewHub(14)
	pairedLobby(t, h) // lobby X, full
	dave := addClient(t, h, "Dave")
	h.createLobby(dave, "Y")
	drain(dave)

	watcher := addClient(t, h, "Watcher")
	h.listOpenLobbies(watcher)
	lines := drain(watcher)
	if containsLine(lines, "X (host:") {
		t.Errorf("paired lobby listed: %v", lines)
	}
	if !containsLine(lines, "Y (host: Dave)") {
		t.Errorf("open lobby missing: %v", lines)
	}
	if !containsLine(lines, "End of list.") {
		t.Errorf("no list terminator: %v", lines)
	}
}

func TestJoinNonexistentLobby(t *testing.T) {
	h := NewHub(14)
	c := addClient(t, h, "Alice")
	h.joinLobby(c, "nope")
	if lines := drain(c); !containsLine(lines, "does not exist") {
		t.Errorf("no error reply: %v", lines)
	}
}

func TestDisconnectActsAsLeave(t *testing.T) {
	h := NewHub(14)
	host, opp, _ := pairedLobby(t, h)

	h.disconnect(host)

	h.mu.Lock()
	_, lobbyExists := h.lobbies["X"]
	_, hostStillThere := h.clients[host]
	h.mu.Unlock()
	if lobbyExists {
		t.Error("lobby survived the host disconnect")
	}
	if hostStillThere {
		t.Error("host still in the connection registry")
	}
	if _, ph, l := opp.snapshot(); ph != phaseLobbyless || l != nil {
		t.Errorf("opponent not evicted: phase=%v lobby=%v", ph, l)
	}
	// the freed name is claimable again
	if !h.register(addClient(t, h, ""), "Host") {
		t.Error("name not released after disconnect")
	}
}

func TestTCPSessionLifecycle(t *testing.T) {
	h := NewHub(14)
	server, peer := net.Pipe()
	go h.HandleConn(server)

	br := bufio.NewReader(peer)
	if _, err := peer.Write([]byte("USERNAME|Bob\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(line, "Welcome, Bob!") {
		t.Fatalf("handshake reply = %q", line)
	}
	peer.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session not cleaned up after the peer closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	h := NewHub(14)
	c := addClient(t, h, "Alice")
	// a nil lobby reference with InLobby phase exercises the stale-state path;
	// force an outright panic through a nil hub instead
	c.hub = nil
	c.dispatch("/duels")
	if lines := drain(c); !containsLine(lines, "Internal error") {
		t.Errorf("panic not converted to an error reply: %v", lines)
	}
}
