package sched

import "fmt"

// Policy selects which auxiliary queue structure is authoritative for task
// selection.
type Policy uint8

const (
	// PolicyCooperative polls tasks in ascending TaskID order of readiness.
	PolicyCooperative Policy = iota
	// PolicyPriorityBased keeps a queue sorted descending by priority.
	PolicyPriorityBased
	// PolicyDeadlineBased selects the earliest absolute fuel deadline.
	PolicyDeadlineBased
	// PolicyRoundRobin cycles through tasks with a fuel quantum each.
	PolicyRoundRobin
)

// String returns the policy name used in configuration files.
func (p Policy) String() string {
	switch p {
	case PolicyCooperative:
		return "cooperative"
	case PolicyPriorityBased:
		return "priority"
	case PolicyDeadlineBased:
		return "deadline"
	case PolicyRoundRobin:
		return "round_robin"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy maps a configuration string to a policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "cooperative":
		return PolicyCooperative, nil
	case "priority", "priority_based":
		return PolicyPriorityBased, nil
	case "deadline", "deadline_based":
		return PolicyDeadlineBased, nil
	case "round_robin", "roundrobin":
		return PolicyRoundRobin, nil
	default:
		return PolicyCooperative, fmt.Errorf("unknown scheduling policy %q", s)
	}
}
