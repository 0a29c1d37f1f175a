package display

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/blake2b"

	"election_board/pkg/election"
)

// Kind is the top level screen the board shows
type Kind string

const (
	KindLoading   Kind = "loading"
	KindAlert     Kind = "alert"
	KindDashboard Kind = "dashboard"
)

// View is everything the templates need to draw one frame
type View struct {
	Kind Kind

	Title           string
	LogoURL         string
	ElectedBadgeURL string
	BannerURL       string
	Clock           string

	Ticker  string
	Marquee []MarqueeArea

	Alert *AlertView

	// Mode keys the race container so the fade replays when it changes
	Mode         election.DisplayMode
	Presidential *PresidentialView
	Legislative  *LegislativeView
	Proportional *ProportionalView
}

// AlertView replaces the dashboard while the endpoint is failing
type AlertView struct {
	Title    string
	Endpoint string
	Retry    string
	Detail   string
}

// MarqueeArea is one district in the header marquee
type MarqueeArea struct {
	Name    string
	Entries []MarqueeEntry
}

// MarqueeEntry is one numbered candidate in the header marquee
type MarqueeEntry struct {
	Number int
	Name   string
	Color  string
	Votes  string
}

// CandidateView is a candidate card
type CandidateView struct {
	Number      int
	Name        string
	Color       string
	Elected     bool
	PictureURL  string
	Votes       int
	VotesText   string
	Percentage  float64
	PercentText string
	Bar         float64
	BarWidth    string
}

// PresidentialView is the nationwide race
type PresidentialView struct {
	Candidates []CandidateView
	Counted    string
	TotalVotes string
}

// AreaView is one legislative district column
type AreaView struct {
	Name       string
	Candidates []CandidateView
	Counted    string
	TotalVotes string
}

// LegislativeView is the district races
type LegislativeView struct {
	Areas []AreaView
}

// PartyView is one party row of the proportional race
type PartyView struct {
	Name        string
	Color       string
	Seats       int
	Percentage  float64
	PercentText string
	Bar         float64
	BarWidth    string
}

// ProportionalView is the party-list seat chart
type ProportionalView struct {
	Seats      []Seat
	Parties    []PartyView
	TotalSeats int
	Allocated  int
	TotalVotes string
}

// Empty reports whether the view draws no race content
func (v View) Empty() bool {
	return v.Presidential == nil && v.Legislative == nil && v.Proportional == nil
}

// Fingerprint is a content hash of the view. Two frames with the same
// fingerprint render identically.
func (v View) Fingerprint() string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
