// Package deps lists the external programs a migration run shells out to and
// probes PATH for them.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"relocate/internal/config"
)

// Requirement is one external program. Optional programs only refine
// behaviour; a run can proceed without them.
type Requirement struct {
	Name     string
	Command  string
	Purpose  string
	Optional bool
}

// Status is the outcome of probing one Requirement.
type Status struct {
	Requirement
	// Path is the resolved executable when found.
	Path   string
	Detail string
}

// Available reports whether the program was found.
func (s Status) Available() bool { return s.Path != "" }

// Blocking reports whether the missing program must stop a run.
func (s Status) Blocking() bool { return !s.Available() && !s.Optional }

// Probe looks every requirement up on PATH, preserving order.
func Probe(reqs []Requirement) []Status {
	out := make([]Status, len(reqs))
	for i, req := range reqs {
		req.Command = strings.TrimSpace(req.Command)
		out[i] = Status{Requirement: req}
		if req.Command == "" {
			out[i].Detail = "command not configured"
			continue
		}
		path, err := exec.LookPath(req.Command)
		if err != nil {
			out[i].Detail = fmt.Sprintf("%s not found on PATH", req.Command)
			continue
		}
		out[i].Path = path
	}
	return out
}

// Requirements returns what a run of cfg shells out to: the copy tool, then
// each distinct data-root probe. Probes are optional because verification
// falls back to service state without them.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{{Name: "rsync", Command: cfg.Sync.Binary, Purpose: "copies resource data"}}
	seen := make(map[string]bool)
	for _, res := range cfg.Resources {
		if len(res.DataRootCommand) == 0 || seen[res.DataRootCommand[0]] {
			continue
		}
		probe := res.DataRootCommand[0]
		seen[probe] = true
		reqs = append(reqs, Requirement{
			Name:     probe,
			Command:  probe,
			Purpose:  "reports the data root of " + res.Name,
			Optional: true,
		})
	}
	return reqs
}
