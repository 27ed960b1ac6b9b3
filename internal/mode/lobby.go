package mode

import "time"

const (
	DefaultReturnDelay  = 2500 * time.Millisecond
	MaxReturnDelay      = 15 * time.Second
	maxReturnMessageLen = 200
	defaultReturnText   = "Match ended. Returning to lobby..."
)

// LobbyReturn tells every peer to leave the room after Delay.
type LobbyReturn struct {
	Message string
	Delay   time.Duration
}

// NormalizeReturn sanitises an inbound return-to-lobby request. A nil delay
// means the default; the delay is clamped to [0, MaxReturnDelay] and the
// message truncated.
func NormalizeReturn(message string, delayMs *int64) LobbyReturn {
	r := LobbyReturn{Message: message, Delay: DefaultReturnDelay}
	if r.Message == "" {
		r.Message = defaultReturnText
	}
	if runes := []rune(r.Message); len(runes) > maxReturnMessageLen {
		r.Message = string(runes[:maxReturnMessageLen])
	}
	if delayMs != nil {
		r.Delay = time.Duration(*delayMs) * time.Millisecond
	}
	if r.Delay < 0 {
		r.Delay = 0
	}
	if r.Delay > MaxReturnDelay {
		r.Delay = MaxReturnDelay
	}
	return r
}

// Latch is the one-shot return-to-lobby guard.
type Latch struct {
	fired bool
}

// Fire arms the latch. It reports false in freeplay or when already fired.
func (l *Latch) Fire(k Kind) bool {
	if k == Freeplay || l.fired {
		return false
	}
	l.fired = true
	return true
}

func (l *Latch) Fired() bool {
	return l.fired
}
