package display

import (
	"fmt"
	"time"

	"election_board/pkg/config"
	"election_board/pkg/election"
	"election_board/pkg/poller"
)

// Options carries the presentation settings Route needs
type Options struct {
	Title           string
	Palette         Palette
	LogoURL         string
	ElectedBadgeURL string
	BannerURL       string
	RetryInterval   time.Duration
}

// NewOptions builds Options from the loaded configuration
func NewOptions(cfg *config.Config) Options {
	return Options{
		Title: cfg.Display.Title,
		Palette: Palette{
			Colors:      cfg.Display.Palette,
			Placeholder: cfg.Display.PlaceholderColor,
		},
		LogoURL:         cfg.Display.LogoURL,
		ElectedBadgeURL: cfg.Display.ElectedBadgeURL,
		BannerURL:       cfg.Display.BannerURL,
		RetryInterval:   cfg.Poller.Interval,
	}
}

// Route turns a poller state into the frame to draw. It has no side effects:
// the same state, options and minute always give the same view.
func Route(state poller.State, opts Options, now time.Time) View {
	v := View{
		Title:           opts.Title,
		LogoURL:         opts.LogoURL,
		ElectedBadgeURL: opts.ElectedBadgeURL,
		BannerURL:       opts.BannerURL,
		Clock:           FormatClock(now),
	}

	switch state.Status {
	case poller.StatusReady:
		if state.Data == nil {
			break
		}
		if err := routeDashboard(&v, state.Data, opts); err != nil {
			return alertView(v, state.Endpoint, err.Error(), opts)
		}
		return v

	case poller.StatusFailed:
		return alertView(v, state.Endpoint, state.ErrorMessage(), opts)
	}

	v.Kind = KindLoading
	v.Ticker = opts.Title
	return v
}

func alertView(v View, endpoint, detail string, opts Options) View {
	v.Kind = KindAlert
	v.Alert = &AlertView{
		Title:    "無法取得資料",
		Endpoint: endpoint,
		Retry:    retryNotice(opts.RetryInterval),
		Detail:   detail,
	}
	return v
}

func retryNotice(interval time.Duration) string {
	secs := int(interval.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%d 秒後將自動重試。", secs)
}

func routeDashboard(v *View, data *election.ElectionData, opts Options) error {
	race, err := data.Race()
	if err != nil {
		return err
	}

	v.Kind = KindDashboard
	v.Mode = race.Mode()
	v.Ticker = data.TickerText
	v.Marquee = marquee(data.Legislative, opts.Palette)

	switch r := race.(type) {
	case election.PresidentialRace:
		v.Presidential = &PresidentialView{
			Candidates: candidates(r.Candidates, opts.Palette),
			Counted:    FormatGrouped(r.CountedVotes()),
			TotalVotes: FormatGrouped(r.TotalVotes),
		}
	case election.LegislativeRace:
		lv := &LegislativeView{Areas: make([]AreaView, 0, len(r.Areas))}
		for _, area := range r.Areas {
			lv.Areas = append(lv.Areas, AreaView{
				Name:       area.Area,
				Candidates: candidates(area.Candidates, opts.Palette),
				Counted:    FormatGrouped(area.CountedVotes()),
				TotalVotes: FormatGrouped(area.TotalVotes),
			})
		}
		v.Legislative = lv
	case election.ProportionalRace:
		v.Proportional = proportional(r, opts.Palette)
	}

	return nil
}

func candidates(list []election.Candidate, palette Palette) []CandidateView {
	out := make([]CandidateView, 0, len(list))
	for i, c := range list {
		bar := BarValue(c.Percentage, CandidateScale)
		out = append(out, CandidateView{
			Number:      i + 1,
			Name:        c.Name,
			Color:       palette.Color(i),
			Elected:     c.Elected,
			PictureURL:  c.PictureURL,
			Votes:       c.Votes,
			VotesText:   FormatVotes(c.Votes),
			Percentage:  c.Percentage,
			PercentText: FormatPercent(c.Percentage),
			Bar:         bar,
			BarWidth:    formatWidth(bar),
		})
	}
	return out
}

func proportional(r election.ProportionalRace, palette Palette) *ProportionalView {
	pv := &ProportionalView{
		Seats:      AllocateSeats(r.Seats, r.TotalSeats, palette),
		Parties:    make([]PartyView, 0, len(r.Seats)),
		TotalSeats: r.TotalSeats,
		Allocated:  r.AllocatedSeats(),
		TotalVotes: FormatGrouped(r.TotalVotes),
	}
	for i, p := range r.Seats {
		bar := BarValue(p.Percentage, PartyScale)
		pv.Parties = append(pv.Parties, PartyView{
			Name:        p.Party,
			Color:       palette.Color(i),
			Seats:       p.Seats,
			Percentage:  p.Percentage,
			PercentText: FormatPercent(p.Percentage),
			Bar:         bar,
			BarWidth:    formatWidth(bar),
		})
	}
	return pv
}

func marquee(race election.LegislativeRace, palette Palette) []MarqueeArea {
	areas := make([]MarqueeArea, 0, len(race.Areas))
	for _, area := range race.Areas {
		entries := make([]MarqueeEntry, 0, len(area.Candidates))
		for i, c := range area.Candidates {
			entries = append(entries, MarqueeEntry{
				Number: i + 1,
				Name:   c.Name,
				Color:  palette.Color(i),
				Votes:  FormatGrouped(c.Votes),
			})
		}
		areas = append(areas, MarqueeArea{Name: area.Area, Entries: entries})
	}
	return areas
}
