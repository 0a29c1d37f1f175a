package display

import (
	"election_board/pkg/election"
)

// Seat is one chair of the proportional chamber
type Seat struct {
	Party   string
	Color   string
	Decided bool
}

// AllocateSeats lays the decided seats out in party order, each party
// repeated by its seat count, and pads with undecided placeholder seats up to
// totalSeats. Allocations past totalSeats are cut off.
func AllocateSeats(parties election.Parties, totalSeats int, palette Palette) []Seat {
	if totalSeats <= 0 {
		return []Seat{}
	}

	seats := make([]Seat, 0, totalSeats)

fill:
	for i, party := range parties {
		color := palette.Color(i)
		for n := 0; n < party.Seats; n++ {
			if len(seats) == totalSeats {
				break fill
			}
			seats = append(seats, Seat{Party: party.Party, Color: color, Decided: true})
		}
	}

	for len(seats) < totalSeats {
		seats = append(seats, Seat{Color: palette.Placeholder})
	}

	return seats
}

// SeatColors flattens an allocation to its colour sequence
func SeatColors(seats []Seat) []string {
	colors := make([]string, len(seats))
	for i, s := range seats {
		colors[i] = s.Color
	}
	return colors
}
