package pipeline

// Stage is a step of a poll cycle.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageFetching   Stage = "fetching"
	StageFiltering  Stage = "filtering"
	StageDedup      Stage = "dedup"
	StageEnriching  Stage = "enriching"
	StageRendering  Stage = "rendering"
	StageComposing  Stage = "composing"
	StagePublishing Stage = "publishing"
)

// Outcome is how a poll cycle ended.
type Outcome string

const (
	OutcomeNoEvent            Outcome = "no_event"
	OutcomeBelowThreshold     Outcome = "below_threshold"
	OutcomeInvalidCoordinates Outcome = "invalid_coordinates"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeSuppressed         Outcome = "suppressed"
	OutcomeTransientFailure   Outcome = "transient_failure"
	OutcomeDeliveryFailed     Outcome = "delivery_failed"
	OutcomePublished          Outcome = "published"
	OutcomePublishedTextOnly  Outcome = "published_text_only"
	OutcomeBusy               Outcome = "busy"
	OutcomeError              Outcome = "error"
)

// Delivered reports whether the cycle sent a message to the channel.
func (o Outcome) Delivered() bool {
	return o == OutcomePublished || o == OutcomePublishedTextOnly
}
