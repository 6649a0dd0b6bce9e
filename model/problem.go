package model

import (
	"fmt"
	"strings"
)

// Severity classifies a scheduling problem.
type Severity int

const (
	// SeverityWarning means the schedule is still solvable but an assumption
	// was stressed.
	SeverityWarning Severity = iota
	// SeverityError is as severe as Warning in effect but is displayed apart.
	SeverityError
	// SeverityFatal means the schedule, or the rest of it, cannot be computed.
	SeverityFatal
)

// Severities lists every severity from most to least severe.
var Severities = []Severity{SeverityFatal, SeverityError, SeverityWarning}

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "warning", "warn":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	case "fatal":
		*s = SeverityFatal
	default:
		return fmt.Errorf("unknown severity %q", string(b))
	}
	return nil
}

// Problem is one diagnostic emitted while building a schedule.
type Problem struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Pass names the pass the problem refers to, empty for catalog problems.
	Pass string `json:"pass,omitempty"`
}

func (p Problem) String() string {
	return p.Severity.String() + ": " + p.Message
}
