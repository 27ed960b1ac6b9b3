package mode

import "fmt"

// HillScoring awards a point per tick to the sole player on the hill.
type HillScoring struct{}

func (HillScoring) Kind() Kind { return KingOfTheHill }

// Tick counts grounded players inside the hill. One qualifier controls and
// scores; two or more contest it; none leaves it open. Control is reported
// only when the controller changes.
func (HillScoring) Tick(m *Match, roster []Standing) Outcome {
	var out Outcome
	if m.Phase() != Running {
		return out
	}
	hill := DefaultHill
	if m.Hill != nil {
		hill = *m.Hill
	}

	var on []Standing
	for _, s := range roster {
		if s.Busy || !hill.Contains(s.X, s.Z) {
			continue
		}
		on = append(on, s)
	}

	controller, contested := "", false
	switch {
	case len(on) == 1:
		controller = on[0].ID
		out.Awards = append(out.Awards, Award{PlayerID: on[0].ID, Score: on[0].Score + 1})
	case len(on) > 1:
		contested = true
	}
	m.Contested = contested

	if m.ControllerID != controller {
		m.ControllerID = controller
		out.Control = &Control{ControllerID: controller, Contested: contested}
	}
	return out
}

func (HillScoring) EndText(r Result) string {
	if r.Tie {
		return fmt.Sprintf("Time! KOTH tie at %d points.", r.Score)
	}
	return fmt.Sprintf("Time! %s wins KOTH with %d points!", r.WinnerName, r.Score)
}

func (HillScoring) LobbyMessage() string {
	return "King of the Hill ended. Returning to lobby..."
}
