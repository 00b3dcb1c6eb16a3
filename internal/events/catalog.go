package events

// Type classifies events. The catalog is fixed but extensible: unknown
// types pass through logs untouched and are ignored by the deriver.
type Type string

const (
	// Milestone events driving the decision state machine.
	TypeStarted                 Type = "started"
	TypeProposalCreated         Type = "proposal_created"
	TypeDecisionRequested       Type = "decision_requested"
	TypeDecisionResolved        Type = "decision_resolved"
	TypeStyleSelectionRequested Type = "style_selection_requested"
	TypeStyleSelected           Type = "style_selected"
	TypeCompleted               Type = "completed"

	// High-frequency informational events emitted by pipeline stages.
	TypeProgress      Type = "progress"
	TypeFinalComplete Type = "final_complete"

	// TypeDecisionPointNeeded is the legacy generic decision event.
	// Historical logs contain it and it must stay recognized indefinitely.
	TypeDecisionPointNeeded Type = "decision_point_needed"
)

// legacyAlias maps a historical event type onto a canonical one, gated on a
// payload discriminator. A legacy event whose discriminator value differs
// is some other flow's business and is not classified at all.
type legacyAlias struct {
	canonical          Type
	discriminatorKey   string
	discriminatorValue string
}

// legacyAliases is the alias/priority table. Adding a future alias is one
// line here, not a new conditional in the deriver.
var legacyAliases = map[Type]legacyAlias{
	TypeDecisionPointNeeded: {
		canonical:          TypeDecisionRequested,
		discriminatorKey:   "point",
		discriminatorValue: "new_project",
	},
}

// Classification is the outcome of resolving an event against the catalog.
type Classification struct {
	// Canonical is the event type after alias resolution.
	Canonical Type

	// Authoritative is false for legacy aliases: their payload only counts
	// when no dedicated-type event exists in the same log.
	Authoritative bool
}

// Classify resolves an event's type against the alias table. The second
// return is false when the event is not recognized as any canonical type
// (including a legacy event with a foreign discriminator value).
func Classify(e Event) (Classification, bool) {
	if alias, ok := legacyAliases[e.Type]; ok {
		v, _ := e.StringPayload(alias.discriminatorKey)
		if v != alias.discriminatorValue {
			return Classification{}, false
		}
		return Classification{Canonical: alias.canonical, Authoritative: false}, true
	}
	return Classification{Canonical: e.Type, Authoritative: true}, true
}
