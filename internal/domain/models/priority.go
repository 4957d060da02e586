// internal/domain/models/priority.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority ranks the urgency of a card.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = [...]string{"Low", "Medium", "High", "Critical"}

func (p Priority) String() string {
	if p < PriorityLow || p > PriorityCritical {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority accepts the priority name in any case.
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Priority(i), nil
		}
	}
	return PriorityMedium, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
