// Package protocol holds the wire-level constants of the duel protocol:
// command tokens, message tags and the line format shared by the TCP and
// websocket transports. Messages are UTF-8 text, one line per message.
package protocol

import "strings"

// Message tags. They are a presentation hint for the terminal renderer, not
// part of the protocol's semantics.
const (
	TagServer = "[SERVER]"
	TagError  = "[ERROR]"
)

// CmdUsername is the handshake token: the first accepted line of every
// connection is "USERNAME|<name>".
const CmdUsername = "USERNAME"

// Command tokens. Which tokens are recognized depends on the session phase.
const (
	CmdHelp   = "/help"
	CmdCreate = "/create"
	CmdJoin   = "/join"
	CmdDuels  = "/duels"
	CmdChat   = "/chat"
	CmdLeave  = "/leave"
	CmdCards  = "/cards"
	CmdOrder  = "/order"
	CmdReady  = "/ready"
	CmdStart  = "/start"
	CmdAttack = "/attack"
	CmdDefend = "/defend"
	CmdStats  = "/stats"
)

// SplitCommand splits an inbound line at the first '|' into command token and
// argument. The argument may contain spaces and further '|' characters; they
// are not interpreted here.
func SplitCommand(line string) (cmd, arg string) {
	if i := strings.IndexByte(line, '|'); i >= 0 {
		return line[:i], line[i+1:]
	}
	return line, ""
}

// Server tags a line as a server notice.
func Server(msg string) string { return TagServer + " " + msg }

// Error tags a line as an error reply.
func Error(msg string) string { return TagError + " " + msg }

const boxRule = "=========================================="

// Box groups a title and body lines into a highlighted block. The renderer on
// the client side owns the actual presentation; the server only supplies the
// grouping.
func Box(title string, lines ...string) []string {
	out := make([]string, 0, len(lines)+4)
	out = append(out, boxRule, "=== "+title, boxRule)
	out = append(out, lines...)
	out = append(out, boxRule)
	return out
}
