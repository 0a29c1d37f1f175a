package election

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/samber/lo"
)

// Error variables for consistent error handling
var (
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnrecognizedMode = errors.New("unrecognized display mode")
	ErrInvalidData      = errors.New("invalid data")
)

// DisplayMode selects which race view is active
type DisplayMode string

const (
	ModePresidential DisplayMode = "presidential"
	ModeLegislative  DisplayMode = "legislative"
	ModeProportional DisplayMode = "proportional"
)

// Valid reports whether the mode is one of the known race views
func (m DisplayMode) Valid() bool {
	switch m {
	case ModePresidential, ModeLegislative, ModeProportional:
		return true
	default:
		return false
	}
}

// Candidate represents a single candidate's running count
type Candidate struct {
	Name       string  `json:"name"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
	Elected    bool    `json:"elected"`
	PictureURL string  `json:"picture_url,omitempty"`
	Num        int     `json:"num,omitempty"`
	Color      string  `json:"color,omitempty"`
}

// PresidentialRace holds the nationwide candidate list
type PresidentialRace struct {
	Candidates []Candidate `json:"candidates"`
	TotalVotes int         `json:"total_votes"`
}

// Area is a single legislative district
type Area struct {
	Area       string      `json:"area"`
	Candidates []Candidate `json:"candidates"`
	TotalVotes int         `json:"total_votes"`
}

// LegislativeRace holds the districts in display order
type LegislativeRace struct {
	Areas []Area `json:"areas"`
}

// PartySeats is one entry of the proportional seats mapping
type PartySeats struct {
	Party      string  `json:"-"`
	Seats      int     `json:"seats"`
	Percentage float64 `json:"percentage"`
	Num        int     `json:"num,omitempty"`
	Color      string  `json:"color,omitempty"`
}

// ProportionalRace holds the party-list seat counts
type ProportionalRace struct {
	Seats      Parties `json:"seats"`
	TotalSeats int     `json:"total_seats"`
	TotalVotes int     `json:"total_votes"`
}

// ElectionData is one immutable snapshot pulled from the results endpoint
type ElectionData struct {
	DisplayMode  DisplayMode      `json:"display_mode"`
	TickerText   string           `json:"ticker_text"`
	Presidential PresidentialRace `json:"presidential"`
	Legislative  LegislativeRace  `json:"legislative"`
	Proportional ProportionalRace `json:"proportional"`
}

// Race is the active branch of a snapshot, selected by its display mode
type Race interface {
	Mode() DisplayMode
}

func (PresidentialRace) Mode() DisplayMode { return ModePresidential }
func (LegislativeRace) Mode() DisplayMode  { return ModeLegislative }
func (ProportionalRace) Mode() DisplayMode { return ModeProportional }

// Decode reads and validates a snapshot from r
func Decode(r io.Reader) (*ElectionData, error) {
	var data ElectionData
	dec := json.NewDecoder(r)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedPayload)
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}

	return &data, nil
}

// Race returns the branch selected by the display mode
func (d *ElectionData) Race() (Race, error) {
	switch d.DisplayMode {
	case ModePresidential:
		return d.Presidential, nil
	case ModeLegislative:
		return d.Legislative, nil
	case ModeProportional:
		return d.Proportional, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedMode, d.DisplayMode)
	}
}

// Validate checks if the snapshot is usable for display
func (d *ElectionData) Validate() error {
	if !d.DisplayMode.Valid() {
		return fmt.Errorf("%w: %q", ErrUnrecognizedMode, d.DisplayMode)
	}

	if err := validateCandidates("presidential", d.Presidential.Candidates); err != nil {
		return err
	}
	if d.Presidential.TotalVotes < 0 {
		return fmt.Errorf("%w: presidential total_votes is negative", ErrInvalidData)
	}

	for _, area := range d.Legislative.Areas {
		if err := validateCandidates(area.Area, area.Candidates); err != nil {
			return err
		}
		if area.TotalVotes < 0 {
			return fmt.Errorf("%w: %s total_votes is negative", ErrInvalidData, area.Area)
		}
	}

	prop := d.Proportional
	if prop.TotalSeats < 0 {
		return fmt.Errorf("%w: total_seats is negative", ErrInvalidData)
	}
	if prop.TotalVotes < 0 {
		return fmt.Errorf("%w: proportional total_votes is negative", ErrInvalidData)
	}
	for _, party := range prop.Seats {
		if party.Seats < 0 {
			return fmt.Errorf("%w: party %s has negative seats", ErrInvalidData, party.Party)
		}
		if !validPercentage(party.Percentage) {
			return fmt.Errorf("%w: party %s percentage %v out of range", ErrInvalidData, party.Party, party.Percentage)
		}
	}

	return nil
}

func validateCandidates(section string, candidates []Candidate) error {
	for _, c := range candidates {
		if c.Votes < 0 {
			return fmt.Errorf("%w: %s candidate %s has negative votes", ErrInvalidData, section, c.Name)
		}
		if !validPercentage(c.Percentage) {
			return fmt.Errorf("%w: %s candidate %s percentage %v out of range", ErrInvalidData, section, c.Name, c.Percentage)
		}
	}
	return nil
}

func validPercentage(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 100
}

// CountedVotes sums the votes reported for the candidates
func (r PresidentialRace) CountedVotes() int {
	return sumVotes(r.Candidates)
}

// CountedVotes sums the votes reported for the district's candidates
func (a Area) CountedVotes() int {
	return sumVotes(a.Candidates)
}

// AllocatedSeats sums the seats already decided across parties
func (r ProportionalRace) AllocatedSeats() int {
	return lo.SumBy(r.Seats, func(p PartySeats) int { return p.Seats })
}

func sumVotes(candidates []Candidate) int {
	return lo.SumBy(candidates, func(c Candidate) int { return c.Votes })
}

// Parties is the seats mapping kept in document order.
// Positional colours depend on this order, so it cannot be a Go map.
type Parties []PartySeats

// Get returns the entry for a party name
func (p Parties) Get(name string) (PartySeats, bool) {
	return lo.Find(p, func(ps PartySeats) bool { return ps.Party == name })
}

func (p *Parties) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("seats: expected object, got %v", tok)
	}

	out := Parties{}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("seats: expected party name, got %v", tok)
		}

		var entry PartySeats
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("seats %s: %w", name, err)
		}
		entry.Party = name

		// Duplicate keys keep their first position but take the last value.
		if i, seen := index[name]; seen {
			out[i] = entry
			continue
		}
		index[name] = len(out)
		out = append(out, entry)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}

func (p Parties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Party)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
