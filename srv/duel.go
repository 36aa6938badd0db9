package srv

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"k8s.io/klog/v2"

	"duelists/game"
	"duelists/protocol"
)

// exchangesPerCard is how many resolved attack/defense pairs each card sees
// before the round advances. Fixed, regardless of who attacked first.
const exchangesPerCard = 2

// duel is the combat state of one active game. It lives inside a Lobby and is
// only touched under that lobby's lock. Invariant while active:
// awaitingAttack XOR awaitingDefense.
type duel struct {
	attacker *client
	defender *client

	hostHP int
	oppHP  int

	round      int // 1-based index into the card order, cyclic
	exchanges  int // resolved exchanges on the current card
	lastAttack int

	awaitingAttack  bool
	awaitingDefense bool
}

func newDuel(host, opp *client, startHP int) *duel {
	d := &duel{
		hostHP:         startHP,
		oppHP:          startHP,
		round:          1,
		awaitingAttack: true,
	}
	if rand.Intn(2) == 0 {
		d.attacker, d.defender = host, opp
	} else {
		d.attacker, d.defender = opp, host
	}
	return d
}

// attack validates and records the attacker's value, then hands the turn to
// the defender. Any validation failure replies to the caller and changes
// nothing.
func (l *Lobby) attack(c *client, arg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.duel
	if d == nil {
		c.sendError("No duel is running.")
		return
	}
	if c != d.attacker {
		c.sendError("It is not your turn to attack.")
		return
	}
	if !d.awaitingAttack {
		c.sendError("An attack is not possible right now.")
		return
	}
	value, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		c.sendError("Attack value must be a number.")
		return
	}
	card := l.cardForLocked(c, d.round)
	if value < card.MinAttack || value > card.MaxAttack {
		c.sendError(fmt.Sprintf("Attack value outside your range %d-%d.", card.MinAttack, card.MaxAttack))
		return
	}

	d.lastAttack = value
	d.awaitingAttack = false
	d.awaitingDefense = true

	// The value stays masked until the defense resolves.
	l.broadcastBoxLocked("ATTACK",
		c.Name()+" attacks!",
		"Attack value: ?",
	)
	d.defender.sendServer("Your turn to defend: /defend <values>")
}

// defend resolves one exchange: guess validation, damage, role swap, summary,
// then advancement.
func (l *Lobby) defend(c *client, arg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.duel
	if d == nil {
		c.sendError("No duel is running.")
		return
	}
	if c != d.defender {
		c.sendError("It is not your turn to defend.")
		return
	}
	if !d.awaitingDefense {
		c.sendError("A defense is not possible right now.")
		return
	}
	guesses, err := parseGuesses(arg)
	if err != nil {
		c.sendError("Defense values must be numbers.")
		return
	}
	card := l.cardForLocked(c, d.round)
	if len(guesses) != card.Defense {
		c.sendError(fmt.Sprintf("Your card allows %d defense attempts.", card.Defense))
		return
	}

	blocked := false
	for _, g := range guesses {
		if g == d.lastAttack {
			blocked = true
			break
		}
	}

	if blocked {
		l.broadcastBoxLocked("DEFENSE",
			c.Name()+" defends!",
			"Result: blocked, no damage!",
		)
	} else {
		attackerCard := l.cardForLocked(d.attacker, d.round)
		damage := d.lastAttack + attackerCard.Bonus
		if d.attacker == l.host {
			d.oppHP -= damage
		} else {
			d.hostHP -= damage
		}
		l.broadcastBoxLocked("HIT!",
			c.Name()+" could not dodge!",
			fmt.Sprintf("Damage: %d + bonus %d", d.lastAttack, attackerCard.Bonus),
		)
	}

	d.awaitingDefense = false
	d.exchanges++
	d.attacker, d.defender = d.defender, d.attacker
	d.awaitingAttack = true

	l.roundSummaryLocked()
	l.advanceLocked()
}

// advanceLocked runs after every resolved exchange: win check first, then at
// most one card advance per completed cycle, then the next prompt.
func (l *Lobby) advanceLocked() {
	d := l.duel
	if d.hostHP <= 0 || d.oppHP <= 0 {
		winner := l.host
		if d.hostHP <= 0 {
			winner = l.opponent
		}
		l.broadcastLocked(protocol.Server("THE DUEL IS OVER! Winner: " + winner.Name()))
		l.host.setPhase(phaseInLobby)
		l.opponent.setPhase(phaseInLobby)
		l.hostReady = false
		l.oppReady = false
		l.duel = nil
		klog.Infof("duel in lobby %q won by %s", l.name, winner.Name())
		return
	}

	if d.exchanges >= exchangesPerCard {
		d.round++
		if d.round > game.Rounds {
			d.round = 1
		}
		d.exchanges = 0
		l.broadcastLocked(protocol.Server(fmt.Sprintf("----> Next card! Card %d/%d", d.round, game.Rounds)))
	}

	d.attacker.sendServer("Your turn: /attack <value>")
}

func (l *Lobby) roundSummaryLocked() {
	d := l.duel
	l.broadcastBoxLocked("ROUND SUMMARY",
		fmt.Sprintf("Attack value: %d", d.lastAttack),
		fmt.Sprintf("HP %s: %d", l.host.Name(), d.hostHP),
		fmt.Sprintf("HP %s: %d", l.opponent.Name(), d.oppHP),
		"",
		"Next attacker: "+d.attacker.Name(),
	)
}

func (l *Lobby) stats(c *client) {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.duel
	if d == nil || !l.occupantLocked(c) {
		c.sendError("No duel is running.")
		return
	}
	enemy := l.otherLocked(c)
	own := l.cardForLocked(c, d.round)
	enemyCard := l.cardForLocked(enemy, d.round)
	ownHP, enemyHP := d.oppHP, d.hostHP
	if c == l.host {
		ownHP, enemyHP = d.hostHP, d.oppHP
	}
	c.sendBox("YOUR STATS",
		fmt.Sprintf("HP: you = %d, enemy = %d", ownHP, enemyHP),
		fmt.Sprintf("Round: %d / %d", d.round, game.Rounds),
		"",
		"Your card:",
		own.String(),
		"",
		"Enemy card:",
		enemyCard.String(),
	)
}

func parseGuesses(arg string) ([]int, error) {
	parts := strings.Fields(arg)
	guesses := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		guesses = append(guesses, n)
	}
	return guesses, nil
}
