package common

import (
	"fmt"
	"strings"
)

type Status int

const (
	StatusPENDING Status = iota
	StatusINFLIGHT
	StatusDONE
	StatusFAILED
	StatusSKIPPED
	StatusCANCELLED
)

var statusNames = map[Status]string{
	StatusPENDING:   "PENDING",
	StatusINFLIGHT:  "INFLIGHT",
	StatusDONE:      "DONE",
	StatusFAILED:    "FAILED",
	StatusSKIPPED:   "SKIPPED",
	StatusCANCELLED: "CANCELLED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Status) UnmarshalJSON(data []byte) error {
	name := strings.Trim(string(data), `"`)
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown status: %s", name)
}

// Terminal returns true when the status cannot change anymore
func (s Status) Terminal() bool {
	switch s {
	case StatusDONE, StatusFAILED, StatusSKIPPED, StatusCANCELLED:
		return true
	}
	return false
}
