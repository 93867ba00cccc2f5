package volt

import (
	"fmt"
	"strings"
)

// PodStatus is the lifecycle state of a pod.
//
// The transitions the provider performs are:
//
//	creating -> running | error
//	running  -> stopped | deleting
//	stopped  -> running | deleting
//	deleting -> deleted | error
//
// deleted and error are terminal.
type PodStatus string

// Pod states.
const (
	PodCreating PodStatus = "creating"
	PodRunning  PodStatus = "running"
	PodStopped  PodStatus = "stopped"
	PodDeleting PodStatus = "deleting"
	PodDeleted  PodStatus = "deleted"
	PodError    PodStatus = "error"
)

var podTransitions = map[PodStatus][]PodStatus{
	PodCreating: {PodRunning, PodError},
	PodRunning:  {PodStopped, PodDeleting},
	PodStopped:  {PodRunning, PodDeleting},
	PodDeleting: {PodDeleted, PodError},
}

// statusAliases maps provider wording onto the canonical states.
var statusAliases = map[string]PodStatus{
	"creating":     PodCreating,
	"pending":      PodCreating,
	"provisioning": PodCreating,
	"starting":     PodCreating,
	"running":      PodRunning,
	// a stopping pod still serves until the provider reports stopped
	"stopping":    PodRunning,
	"stopped":     PodStopped,
	"exited":      PodStopped,
	"deleting":    PodDeleting,
	"terminating": PodDeleting,
	"deleted":     PodDeleted,
	"terminated":  PodDeleted,
	"error":       PodError,
	"failed":      PodError,
}

// ParsePodStatus maps a status string reported by the API onto a PodStatus.
// Unknown values are rejected.
func ParsePodStatus(s string) (PodStatus, error) {
	st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown pod status %q", s)
	}
	return st, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s PodStatus) IsTerminal() bool {
	return s == PodDeleted || s == PodError
}

// CanTransition reports whether the provider may move a pod from s to next.
func (s PodStatus) CanTransition(next PodStatus) bool {
	for _, t := range podTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
