// Package policy maps a cumulative warning count to an enforcement action.
package policy

import (
	"fmt"
	"strings"
	"time"

	"tg-scriptguard/internal/config"
)

type Kind int

const (
	Notice Kind = iota
	Restrict
	Ban
)

func (k Kind) String() string {
	switch k {
	case Notice:
		return "notice"
	case Restrict:
		return "restrict"
	case Ban:
		return "ban"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is what happens to a user once a count is reached.
type Action struct {
	Kind Kind
	// Duration is set for Restrict only.
	Duration time.Duration
}

func (a Action) String() string {
	if a.Kind == Restrict {
		return fmt.Sprintf("restrict(%s)", a.Duration)
	}
	return a.Kind.String()
}

type Step struct {
	Threshold int
	Action    Action
}

// Policy is an immutable, ascending list of steps.
type Policy struct {
	steps []Step
}

// Default is one notice, a second notice, then a ban.
func Default() *Policy {
	p, _ := New([]Step{
		{Threshold: 1, Action: Action{Kind: Notice}},
		{Threshold: 2, Action: Action{Kind: Notice}},
		{Threshold: 3, Action: Action{Kind: Ban}},
	})
	return p
}

func New(steps []Step) (*Policy, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("policy needs at least one step")
	}
	prev := 0
	for i, s := range steps {
		if s.Threshold <= prev {
			return nil, fmt.Errorf("step %d: threshold %d must be positive and above %d", i, s.Threshold, prev)
		}
		prev = s.Threshold
		switch s.Action.Kind {
		case Notice, Ban:
		case Restrict:
			if d := s.Action.Duration; d < config.MinRestriction || d > config.MaxRestriction {
				return nil, fmt.Errorf("step %d: restrict duration %s outside %s..%s",
					i, d, config.MinRestriction, config.MaxRestriction)
			}
		default:
			return nil, fmt.Errorf("step %d: unknown action %v", i, s.Action.Kind)
		}
	}
	return &Policy{steps: append([]Step(nil), steps...)}, nil
}

// FromConfig builds a policy from enforcement.ladder.
func FromConfig(ladder []config.LadderStep) (*Policy, error) {
	steps := make([]Step, 0, len(ladder))
	for i, l := range ladder {
		kind, err := ParseKind(l.Action)
		if err != nil {
			return nil, fmt.Errorf("ladder step %d: %w", i, err)
		}
		steps = append(steps, Step{Threshold: l.Threshold, Action: Action{Kind: kind, Duration: l.Duration}})
	}
	return New(steps)
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "notice", "warn":
		return Notice, nil
	case "restrict", "mute":
		return Restrict, nil
	case "ban":
		return Ban, nil
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Lookup returns the action of the highest step whose threshold is <= count.
// Counts below the first threshold get a Notice; counts past the last step keep
// the last step's action.
func (p *Policy) Lookup(count int) Action {
	action := Action{Kind: Notice}
	for _, s := range p.steps {
		if s.Threshold > count {
			break
		}
		action = s.Action
	}
	return action
}

func (p *Policy) Steps() []Step {
	return append([]Step(nil), p.steps...)
}

// BanThreshold is the first count that bans, or 0 when the ladder never bans.
func (p *Policy) BanThreshold() int {
	for _, s := range p.steps {
		if s.Action.Kind == Ban {
			return s.Threshold
		}
	}
	return 0
}
