// Package sound carries the quiz's audio cues as an injected service
// instead of module-level state. The core only names cue events;
// rendering them is the presentation layer's problem, so the default
// sink just logs.
package sound

import "log"

// Config controls whether and how loud cues fire.
type Config struct {
	Enabled bool `yaml:"enabled"`
	Volume  int  `yaml:"volume"` // 0-100
}

// Cue is one named audio event with its effective volume.
type Cue struct {
	Name   string
	Volume int
}

// Service dispatches cue events to an injected sink. A nil *Service is
// a valid no-op dependency.
type Service struct {
	cfg  Config
	sink func(Cue)
}

func New(cfg Config, sink func(Cue)) *Service {
	if sink == nil {
		sink = func(c Cue) { log.Printf("sound cue %s (volume %d)", c.Name, c.Volume) }
	}
	return &Service{cfg: cfg, sink: sink}
}

// Play fires the named cue when the service is present and enabled.
func (s *Service) Play(name string) {
	if s == nil || !s.cfg.Enabled {
		return
	}
	s.sink(Cue{Name: name, Volume: s.cfg.Volume})
}
