package whisper

import (
	"context"
	"strings"
)

const (
	DefaultDevice      = "cpu"
	DefaultComputeType = "int8"
	DefaultBeamSize    = 5
)

type Request struct {
	AudioPath   string
	Model       string
	Device      string
	ComputeType string
	BeamSize    int
	Language    string
}

type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Result struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

// Text concatenates the segment texts in order and trims the outer
// whitespace. Spacing between segments is whatever the engine emitted.
func (r Result) Text() string {
	var b strings.Builder
	for _, seg := range r.Segments {
		b.WriteString(seg.Text)
	}
	return strings.TrimSpace(b.String())
}

type Engine interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// withDefaults fills the runtime parameters the caller left unset.
func (r Request) withDefaults() Request {
	if strings.TrimSpace(r.Model) == "" {
		r.Model = DefaultModel
	}
	if strings.TrimSpace(r.Device) == "" {
		r.Device = DefaultDevice
	}
	if strings.TrimSpace(r.ComputeType) == "" {
		r.ComputeType = DefaultComputeType
	}
	if r.BeamSize <= 0 {
		r.BeamSize = DefaultBeamSize
	}
	r.Language = strings.TrimSpace(r.Language)
	return r
}

func (r Request) wantsLanguage() bool {
	return r.Language != "" && r.Language != "auto"
}
