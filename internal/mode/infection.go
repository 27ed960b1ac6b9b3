package mode

import (
	"fmt"
	"math/rand"
	"time"
)

const InfectionLobbyDelay = 4 * time.Second

const AllInfectedMessage = "Everyone is infected! Returning to lobby..."

// Carrier is a player as the infection rules see it.
type Carrier struct {
	ID       string
	Name     string
	X, Y, Z  int
	Infected bool
	Busy     bool
}

// Spread is one new infection. Source is empty for a random pick.
type Spread struct {
	TargetID   string
	TargetName string
	SourceID   string
	SourceName string
}

func (s Spread) Text() string {
	if s.SourceID == "" {
		return fmt.Sprintf("%s is infected!", s.TargetName)
	}
	return fmt.Sprintf("%s was infected by %s!", s.TargetName, s.SourceName)
}

// PatientZero picks a uniformly random player when nobody is infected.
func PatientZero(roster []Carrier, rng *rand.Rand) (Spread, bool) {
	if len(roster) == 0 {
		return Spread{}, false
	}
	for _, c := range roster {
		if c.Infected {
			return Spread{}, false
		}
	}
	c := roster[rng.Intn(len(roster))]
	return Spread{TargetID: c.ID, TargetName: c.Name}, true
}

// Contact resolves infection after mover lands on a tile. An infected mover
// infects every susceptible player on the same (x,y,z); otherwise the mover
// catches it from the first infected player there. Busy players take no part.
func Contact(mover Carrier, roster []Carrier) []Spread {
	if mover.Busy {
		return nil
	}
	var others []Carrier
	for _, c := range roster {
		if c.ID == mover.ID || c.Busy {
			continue
		}
		if c.X == mover.X && c.Y == mover.Y && c.Z == mover.Z {
			others = append(others, c)
		}
	}
	if mover.Infected {
		var out []Spread
		for _, o := range others {
			if !o.Infected {
				out = append(out, Spread{TargetID: o.ID, TargetName: o.Name, SourceID: mover.ID, SourceName: mover.Name})
			}
		}
		return out
	}
	for _, o := range others {
		if o.Infected {
			return []Spread{{TargetID: mover.ID, TargetName: mover.Name, SourceID: o.ID, SourceName: o.Name}}
		}
	}
	return nil
}

// AllInfected is the infection end condition: at least two players and no
// one left healthy.
func AllInfected(roster []Carrier) bool {
	if len(roster) < 2 {
		return false
	}
	for _, c := range roster {
		if !c.Infected {
			return false
		}
	}
	return true
}
