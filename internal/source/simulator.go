package source

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/link-indicator/internal/logic"
)

// Hold is one simulator step: publish State, then wait Duration.
type Hold struct {
	State    logic.State
	Duration time.Duration
}

// DefaultSchedule cycles through every pattern.
var DefaultSchedule = []Hold{
	{logic.StateAdvertising, 5 * time.Second},
	{logic.StateConnected, 10 * time.Second},
	{logic.StateDisconnected, 5 * time.Second},
	{logic.StateLowBattery, 3 * time.Second},
	{logic.StateAdvertising, 5 * time.Second},
	{logic.StateConnected, 5 * time.Second},
}

// Simulator publishes a fixed schedule in a loop, standing in for a real
// wireless stack on the bench.
type Simulator struct {
	schedule []Hold
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewSimulator creates a simulator for schedule. Low-battery steps are
// dropped when the deployment does not render low battery.
func NewSimulator(schedule []Hold, decoder logic.Decoder, sleep func(ctx context.Context, d time.Duration) error) (*Simulator, error) {
	var steps []Hold
	for _, h := range schedule {
		if decoder.Normalize(h.State) != h.State {
			continue
		}
		if h.Duration <= 0 {
			return nil, errors.New("simulator: hold durations must be positive")
		}
		steps = append(steps, h)
	}
	if len(steps) == 0 {
		return nil, errors.New("simulator: empty schedule")
	}
	return &Simulator{schedule: steps, sleep: sleep}, nil
}

// Schedule returns the steps the simulator will cycle through.
func (s *Simulator) Schedule() []Hold {
	out := make([]Hold, len(s.schedule))
	copy(out, s.schedule)
	return out
}

// Run publishes the schedule until ctx is done, then returns ctx.Err().
func (s *Simulator) Run(ctx context.Context, ev *Events) error {
	log.Printf("simulator: started (%d steps)", len(s.schedule))
	for {
		for _, h := range s.schedule {
			log.Printf("simulator: %s for %v", h.State, h.Duration)
			ev.Publish(h.State)
			if err := s.sleep(ctx, h.Duration); err != nil {
				return err
			}
		}
	}
}
