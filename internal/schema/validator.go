// Package schema validates inbound boundary events before they reach a
// room. Engine-internal projection never rejects; this is the one place
// where a malformed envelope is turned back.
package schema

import (
	"errors"
	"fmt"

	"conversation-feed-service/internal/models"
)

// Validation errors.
var (
	ErrUnknownType     = errors.New("unknown event type")
	ErrMissingPayload  = errors.New("event payload missing for its type")
	ErrMissingSegment  = errors.New("segment event requires segmentId and participantIdentity")
	ErrMissingSender   = errors.New("chat event requires senderIdentity and text")
	ErrMissingIdentity = errors.New("membership event requires identity and a known action")
)

// Validator checks inbound event envelopes.
type Validator struct{}

// New creates a validator.
func New() *Validator {
	return &Validator{}
}

// Validate checks one inbound event envelope.
func (v *Validator) Validate(ev *models.InboundEvent) error {
	if ev == nil {
		return ErrMissingPayload
	}

	switch ev.Type {
	case models.EventSegment:
		if ev.Segment == nil {
			return ErrMissingPayload
		}
		if ev.Segment.SegmentID == "" || ev.Segment.ParticipantIdentity == "" {
			return ErrMissingSegment
		}
		return nil

	case models.EventChat:
		if ev.Chat == nil {
			return ErrMissingPayload
		}
		if ev.Chat.SenderIdentity == "" || ev.Chat.Text == "" {
			return ErrMissingSender
		}
		return nil

	case models.EventMembership:
		if ev.Membership == nil {
			return ErrMissingPayload
		}
		if ev.Membership.Identity == "" {
			return ErrMissingIdentity
		}
		if ev.Membership.Action != models.MembershipJoined && ev.Membership.Action != models.MembershipLeft {
			return ErrMissingIdentity
		}
		return nil

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, ev.Type)
	}
}
