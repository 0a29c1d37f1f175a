package election

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T) *ElectionData {
	t.Helper()
	f, err := os.Open("testdata/proportional.json")
	require.NoError(t, err)
	defer f.Close()

	data, err := Decode(f)
	require.NoError(t, err)
	return data
}

func TestDecode(t *testing.T) {
	t.Run("ValidPayload", func(t *testing.T) {
		data := loadFixture(t)

		assert.Equal(t, ModeProportional, data.DisplayMode)
		assert.Equal(t, "第 3 輪開票", data.TickerText)
		require.Len(t, data.Presidential.Candidates, 2)
		assert.Equal(t, 123456, data.Presidential.Candidates[0].Votes)
		require.Len(t, data.Legislative.Areas, 1)
		assert.Equal(t, "/static/c.png", data.Legislative.Areas[0].Candidates[0].PictureURL)
		assert.True(t, data.Legislative.Areas[0].Candidates[0].Elected)
		assert.Equal(t, 10, data.Proportional.TotalSeats)
	})

	t.Run("SeatsKeepDocumentOrder", func(t *testing.T) {
		data := loadFixture(t)

		require.Len(t, data.Proportional.Seats, 2)
		assert.Equal(t, "Zeta", data.Proportional.Seats[0].Party)
		assert.Equal(t, 3, data.Proportional.Seats[0].Seats)
		assert.Equal(t, "Alpha", data.Proportional.Seats[1].Party)
		assert.Equal(t, 30.1, data.Proportional.Seats[1].Percentage)
	})

	t.Run("MalformedJSON", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`<html>not json</html>`))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("TrailingData", func(t *testing.T) {
		for _, tail := range []string{" garbage", ` {"display_mode": "presidential"}`, "]"} {
			_, err := Decode(strings.NewReader(`{"display_mode": "presidential"}` + tail))
			assert.ErrorIs(t, err, ErrMalformedPayload, tail)
		}

		data, err := Decode(strings.NewReader("{\"display_mode\": \"presidential\"}\n\n"))
		require.NoError(t, err)
		assert.Equal(t, ModePresidential, data.DisplayMode)
	})

	t.Run("UnknownMode", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"display_mode": "referendum"}`))
		assert.ErrorIs(t, err, ErrUnrecognizedMode)
	})

	t.Run("MissingMode", func(t *testing.T) {
		_, err := Decode(strings.NewReader(`{"ticker_text": "hi"}`))
		assert.ErrorIs(t, err, ErrUnrecognizedMode)
	})

	t.Run("NegativeVotes", func(t *testing.T) {
		payload := `{"display_mode": "presidential", "presidential": {"candidates": [{"name": "x", "votes": -1, "percentage": 1}]}}`
		_, err := Decode(strings.NewReader(payload))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("PercentageOutOfRange", func(t *testing.T) {
		payload := `{"display_mode": "proportional", "proportional": {"seats": {"A": {"seats": 1, "percentage": 140}}, "total_seats": 3}}`
		_, err := Decode(strings.NewReader(payload))
		assert.ErrorIs(t, err, ErrInvalidData)
	})

	t.Run("SeatsNotAnObject", func(t *testing.T) {
		payload := `{"display_mode": "proportional", "proportional": {"seats": [1, 2]}}`
		_, err := Decode(strings.NewReader(payload))
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestRace(t *testing.T) {
	data := loadFixture(t)

	tests := []struct {
		mode DisplayMode
		want DisplayMode
	}{
		{ModePresidential, ModePresidential},
		{ModeLegislative, ModeLegislative},
		{ModeProportional, ModeProportional},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			snapshot := *data
			snapshot.DisplayMode = tt.mode

			race, err := snapshot.Race()
			require.NoError(t, err)
			assert.Equal(t, tt.want, race.Mode())
		})
	}

	t.Run("Unrecognized", func(t *testing.T) {
		snapshot := *data
		snapshot.DisplayMode = "mayoral"

		race, err := snapshot.Race()
		assert.Nil(t, race)
		assert.ErrorIs(t, err, ErrUnrecognizedMode)
	})
}

func TestCounts(t *testing.T) {
	data := loadFixture(t)

	assert.Equal(t, 223456, data.Presidential.CountedVotes())
	assert.Equal(t, 10000, data.Legislative.Areas[0].CountedVotes())
	assert.Equal(t, 5, data.Proportional.AllocatedSeats())
	assert.Equal(t, 0, Area{}.CountedVotes())
}

func TestParties(t *testing.T) {
	t.Run("DuplicateKeyKeepsFirstPosition", func(t *testing.T) {
		var parties Parties
		err := json.Unmarshal([]byte(`{"A": {"seats": 1}, "B": {"seats": 2}, "A": {"seats": 4}}`), &parties)
		require.NoError(t, err)

		require.Len(t, parties, 2)
		assert.Equal(t, "A", parties[0].Party)
		assert.Equal(t, 4, parties[0].Seats)
	})

	t.Run("Null", func(t *testing.T) {
		var parties Parties
		require.NoError(t, json.Unmarshal([]byte(`null`), &parties))
		assert.Empty(t, parties)
	})

	t.Run("MarshalPreservesOrder", func(t *testing.T) {
		parties := Parties{
			{Party: "Zeta", Seats: 3, Percentage: 45.2},
			{Party: "Alpha", Seats: 2, Percentage: 30.1},
		}
		out, err := json.Marshal(parties)
		require.NoError(t, err)
		assert.Equal(t, `{"Zeta":{"seats":3,"percentage":45.2},"Alpha":{"seats":2,"percentage":30.1}}`, string(out))
	})

	t.Run("Get", func(t *testing.T) {
		parties := Parties{{Party: "A", Seats: 1}}
		got, ok := parties.Get("A")
		assert.True(t, ok)
		assert.Equal(t, 1, got.Seats)

		_, ok = parties.Get("missing")
		assert.False(t, ok)
	})
}
