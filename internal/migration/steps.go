package migration

import (
	"fmt"

	"relocate/internal/config"
)

// StepKind enumerates the durable checkpoints of a resource migration.
type StepKind int

const (
	StepServicesStopped StepKind = iota + 1
	StepConfigUpdated
	StepDataCopied
	StepServicesStarted
	StepComplete
)

// String returns the identifier suffix of the kind.
func (k StepKind) String() string {
	switch k {
	case StepServicesStopped:
		return "stopped"
	case StepConfigUpdated:
		return "config_updated"
	case StepDataCopied:
		return "data_copied"
	case StepServicesStarted:
		return "restarted"
	case StepComplete:
		return "complete"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one checkpoint of one resource. Copy names the extra copy for
// StepDataCopied and is empty for the primary copy.
type Step struct {
	Resource string
	Kind     StepKind
	Copy     string
}

// ID renders the ledger identifier of the step.
func (s Step) ID() (string, error) {
	if s.Resource == "" {
		return "", fmt.Errorf("step %s has no resource", s.Kind)
	}
	switch s.Kind {
	case StepServicesStopped, StepConfigUpdated, StepServicesStarted, StepComplete:
		if s.Copy != "" {
			return "", fmt.Errorf("step %s does not take a copy name", s.Kind)
		}
		return s.Resource + "_" + s.Kind.String(), nil
	case StepDataCopied:
		if s.Copy == "" {
			return s.Resource + "_" + s.Kind.String(), nil
		}
		return s.Resource + "_" + s.Kind.String() + "_" + s.Copy, nil
	default:
		return "", fmt.Errorf("unknown step kind %d", int(s.Kind))
	}
}

// StepID implements ledger.Step. Invalid steps render as "", which the
// ledger refuses to record and never reports as present.
func (s Step) StepID() string {
	id, err := s.ID()
	if err != nil {
		return ""
	}
	return id
}

func (s Step) String() string {
	if id := s.StepID(); id != "" {
		return id
	}
	return fmt.Sprintf("invalid step %s/%s", s.Resource, s.Kind)
}

func stepOf(res config.Resource, kind StepKind) Step {
	return Step{Resource: res.Name, Kind: kind}
}

func copyStep(res config.Resource, cp config.Copy) Step {
	return Step{Resource: res.Name, Kind: StepDataCopied, Copy: cp.Name}
}

// Plan lists the steps of res in execution order.
func Plan(res config.Resource) []Step {
	copies := res.Copies()
	steps := make([]Step, 0, len(copies)+4)
	steps = append(steps, stepOf(res, StepServicesStopped), stepOf(res, StepConfigUpdated))
	for _, cp := range copies {
		steps = append(steps, copyStep(res, cp))
	}
	return append(steps, stepOf(res, StepServicesStarted), stepOf(res, StepComplete))
}

// KnownIDs returns every step identifier the configured resources can produce.
func KnownIDs(resources []config.Resource) map[string]Step {
	known := make(map[string]Step)
	for _, res := range resources {
		for _, step := range Plan(res) {
			known[step.StepID()] = step
		}
	}
	return known
}
