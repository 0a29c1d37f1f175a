package board

import (
	"time"

	"election_board/pkg/election"
	"election_board/pkg/poller"
)

// StateDTO is the JSON shape of the poller state exposed to front-ends
type StateDTO struct {
	Status      poller.Status          `json:"status"`
	Endpoint    string                 `json:"endpoint"`
	Error       string                 `json:"error,omitempty"`
	DisplayMode election.DisplayMode   `json:"display_mode,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Data        *election.ElectionData `json:"data,omitempty"`
}

// NewStateDTO converts a poller state for transport
func NewStateDTO(s poller.State) StateDTO {
	dto := StateDTO{
		Status:    s.Status,
		Endpoint:  s.Endpoint,
		Error:     s.ErrorMessage(),
		UpdatedAt: s.UpdatedAt,
		Data:      s.Data,
	}
	if s.Data != nil {
		dto.DisplayMode = s.Data.DisplayMode
	}
	return dto
}

// FrameDTO is the payload pushed to live displays
type FrameDTO struct {
	HTML        string               `json:"html"`
	Mode        election.DisplayMode `json:"mode"`
	Kind        string               `json:"kind"`
	Fingerprint string               `json:"fingerprint"`
}

// NewFrameDTO converts a frame for transport
func NewFrameDTO(f Frame) FrameDTO {
	return FrameDTO{
		HTML:        f.HTML,
		Mode:        f.Mode(),
		Kind:        string(f.View.Kind),
		Fingerprint: f.Fingerprint,
	}
}
