package detection

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Verdict is the outcome of the throttle gate for one tick.
type Verdict int

const (
	Proceed Verdict = iota
	InputMissing
	MaxChecksReached
	TooRecent
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case InputMissing:
		return "input_missing"
	case MaxChecksReached:
		return "max_checks_reached"
	case TooRecent:
		return "too_recent"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Gate decides whether a tick may go on to the remote calls.
type Gate struct {
	fs  afero.Fs
	cfg Config
}

// NewGate creates a gate reading the input file through fs.
func NewGate(fs afero.Fs, cfg Config) *Gate {
	return &Gate{fs: fs, cfg: cfg}
}

// Evaluate runs the gate against st at time now. Unless the verdict is
// Proceed, st already holds the final triple for the tick.
func (g *Gate) Evaluate(st *State, now time.Time) Verdict {
	exists, err := afero.Exists(g.fs, g.cfg.InputFile)
	if err != nil {
		log.WithError(err).Warnf("Could not stat input file %s", g.cfg.InputFile)
	}
	if !exists {
		st.settle(StatusInputNotFound, StateOff, nil)
		return InputMissing
	}

	// The period reset happens whenever the file exists, whatever the later checks say
	if now.After(st.NextCountReset) {
		log.Infof("Resetting check counter (was %d)", st.NumberOfChecks)
		st.NumberOfChecks = 0
		st.LastCountReset = now
		st.NextCountReset = now.Add(g.cfg.ResetInterval)
	}

	if st.NumberOfChecks >= g.cfg.MaxAllowedChecks {
		st.settle(fmt.Sprintf("Maximum checks reached (%d/%d)", st.NumberOfChecks, g.cfg.MaxAllowedChecks), StateOff, nil)
		return MaxChecksReached
	}

	// Eligible strictly after the interval has elapsed
	if !st.LastCheck.Add(g.cfg.MinInterval()).Before(now) {
		st.settle(StatusTooRecent, StateOff, nil)
		return TooRecent
	}

	return Proceed
}
