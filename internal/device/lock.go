// Package device holds the client-side logic of the app: location sampling,
// the resume lock, foreground reconciliation, and the offline report queue.
// None of it is server-authoritative; the server status check always wins.
package device

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrPermissionDenied signals a missing device grant (location, camera).
// User-recoverable; surfaced before any server call.
var ErrPermissionDenied = errors.New("device permission not granted")

const (
	pinLength        = 4
	maxWrongAttempts = 2
)

// Phase is the resume-lock state for the current foreground cycle.
type Phase int

const (
	// PhaseOpen exposes session controls without a PIN gate: either no
	// session is believed active or no PIN has been configured.
	PhaseOpen Phase = iota
	// PhaseEntering is collecting PIN digits.
	PhaseEntering
	// PhaseUnlocked follows a correct PIN; controls are exposed.
	PhaseUnlocked
	// PhaseDisguise is terminal for this foreground cycle: the app shows
	// its disguise surface and ignores further input until backgrounded.
	PhaseDisguise
)

// KeyResult is the outcome of a single digit press.
type KeyResult int

const (
	KeyAccepted KeyResult = iota // digit buffered, more needed
	KeyValidated
	KeyRejected
	KeyDisguised
)

// Lock gates UI re-entry after backgrounding. It exists so the emergency
// state never leaks to whoever happens to hold the unlocked phone; it is
// never consulted to decide whether a session is really active.
type Lock struct {
	mu             sync.Mutex
	pinHash        []byte
	phase          Phase
	digits         []byte
	wrongAttempts  int
	believedActive bool
}

func NewLock() *Lock {
	return &Lock{phase: PhaseOpen}
}

// SetPIN configures the unlock PIN. There is no fallback PIN: until one is
// configured the lock never gates re-entry.
func (l *Lock) SetPIN(pin string) error {
	if len(pin) != pinLength {
		return errors.New("PIN must be 4 digits")
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return errors.New("PIN must be 4 digits")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.pinHash = hash
	l.mu.Unlock()
	return nil
}

// Configured reports whether a PIN has been set.
func (l *Lock) Configured() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pinHash) > 0
}

// SetBelievedActive records the local belief that a session is running.
func (l *Lock) SetBelievedActive(active bool) {
	l.mu.Lock()
	l.believedActive = active
	l.mu.Unlock()
}

// BelievedActive returns the local session belief.
func (l *Lock) BelievedActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.believedActive
}

// Foreground starts a new foreground cycle: the wrong-attempt counter resets
// and a disguised lock returns to digit entry. Controls stay hidden behind
// the PIN whenever a session is believed active and a PIN is configured.
func (l *Lock) Foreground() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.wrongAttempts = 0
	l.digits = l.digits[:0]
	if l.believedActive && len(l.pinHash) > 0 {
		l.phase = PhaseEntering
	} else {
		l.phase = PhaseOpen
	}
	return l.phase
}

// Background re-arms the lock so the next resume is gated again.
func (l *Lock) Background() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.digits = l.digits[:0]
	l.wrongAttempts = 0
	if l.believedActive && len(l.pinHash) > 0 {
		l.phase = PhaseEntering
	} else {
		l.phase = PhaseOpen
	}
}

// Press feeds one digit into the lock. After the fourth digit the buffer is
// validated: a match unlocks and resets the counter, a mismatch counts a
// wrong attempt, and hitting the threshold flips to the disguise state for
// the rest of this foreground cycle.
func (l *Lock) Press(digit byte) KeyResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase != PhaseEntering {
		if l.phase == PhaseDisguise {
			return KeyDisguised
		}
		return KeyAccepted
	}

	l.digits = append(l.digits, digit)
	if len(l.digits) < pinLength {
		return KeyAccepted
	}

	attempt := string(l.digits)
	l.digits = l.digits[:0]

	if bcrypt.CompareHashAndPassword(l.pinHash, []byte(attempt)) == nil {
		l.phase = PhaseUnlocked
		l.wrongAttempts = 0
		return KeyValidated
	}

	l.wrongAttempts++
	if l.wrongAttempts >= maxWrongAttempts {
		l.phase = PhaseDisguise
		return KeyDisguised
	}
	return KeyRejected
}

// Phase returns the current lock phase.
func (l *Lock) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// ControlsExposed reports whether session controls may be shown.
func (l *Lock) ControlsExposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase == PhaseOpen || l.phase == PhaseUnlocked
}
