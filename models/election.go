package models

import "strings"

// Phase is the election stage reported by the ledger.
type Phase string

const (
	PhaseNotStarted Phase = "NotStarted"
	PhaseOpen       Phase = "Open"
	PhaseClosed     Phase = "Closed"
)

// phaseAliases maps every status string a ledger is known to return onto a Phase.
// Older chaincode reports the phase as a human readable sentence.
var phaseAliases = map[string]Phase{
	"notstarted":                   PhaseNotStarted,
	"not_started":                  PhaseNotStarted,
	"election has not started yet": PhaseNotStarted,
	"open":                         PhaseOpen,
	"election started":             PhaseOpen,
	"election in progress":         PhaseOpen,
	"closed":                       PhaseClosed,
	"ended":                        PhaseClosed,
	"election ended":               PhaseClosed,
}

// ParsePhase decodes a checkElectionStatus payload. The second return value is
// false when the payload is not a recognised phase.
func ParsePhase(raw string) (Phase, bool) {
	phase, ok := phaseAliases[strings.ToLower(strings.TrimSpace(raw))]
	return phase, ok
}

func (p Phase) String() string {
	return string(p)
}

// AcceptsVotes reports whether vote casting is permitted in this phase.
func (p Phase) AcceptsVotes() bool {
	return p == PhaseOpen
}
