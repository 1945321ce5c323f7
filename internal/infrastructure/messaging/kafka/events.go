package kafka

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// Event types carried in EventEnvelope.EventType.
const (
	EventObligationSaved   = "obligation.saved"
	EventObligationDeleted = "obligation.deleted"
	EventDerivativeSaved   = "derivative.saved"
	EventDerivativeDeleted = "derivative.deleted"
	EventRiskSaved         = "risk.saved"
	EventRiskDeleted       = "risk.deleted"
	EventRiskSeeded        = "risk.seeded"
)

const (
	schemaVersion = "v1"
	eventSource   = "insurance-ledger"
)

// Topics names the per-aggregate topics under a common prefix.
type Topics struct {
	Obligations string
	Derivatives string
	Risks       string
}

// NewTopics returns "<prefix>.obligations" and its siblings.
func NewTopics(prefix string) Topics {
	return Topics{
		Obligations: prefix + ".obligations",
		Derivatives: prefix + ".derivatives",
		Risks:       prefix + ".risks",
	}
}

// All lists every topic.
func (t Topics) All() []string {
	return []string{t.Obligations, t.Derivatives, t.Risks}
}

// EventEnvelope is the JSON value of every ledger event.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Key           string          `json:"key"`
	Payload       json.RawMessage `json:"payload"`
}

// ObligationPayload describes an obligation after a save or at deletion.
type ObligationPayload struct {
	ID              int64   `json:"id"`
	PolicyNumber    string  `json:"policy_number,omitempty"`
	Type            string  `json:"type,omitempty"`
	Status          string  `json:"status,omitempty"`
	CalculatedValue float64 `json:"calculated_value,omitempty"`
}

// DerivativePayload describes a derivative after a save or at deletion.
type DerivativePayload struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name,omitempty"`
	TotalValue    float64 `json:"total_value,omitempty"`
	ObligationIDs []int64 `json:"obligation_ids,omitempty"`
}

// RiskPayload describes a catalogue change. Seeded is set for risk.seeded.
type RiskPayload struct {
	Code   string `json:"code,omitempty"`
	Seeded int    `json:"seeded,omitempty"`
}

func obligationPayload(o obligation.Obligation) ObligationPayload {
	return ObligationPayload{
		ID:              o.ID(),
		PolicyNumber:    o.PolicyNumber(),
		Type:            string(o.Type()),
		Status:          string(o.Status()),
		CalculatedValue: o.CalculatedValue(),
	}
}

func derivativePayload(d *derivative.Derivative) DerivativePayload {
	obs := d.Obligations()
	ids := make([]int64, 0, len(obs))
	for _, o := range obs {
		ids = append(ids, o.ID())
	}
	return DerivativePayload{ID: d.ID(), Name: d.Name(), TotalValue: d.TotalValue(), ObligationIDs: ids}
}

func idKey(id int64) string { return strconv.FormatInt(id, 10) }

// NewEventEnvelope wraps payload with a fresh event id.
func NewEventEnvelope(eventType, key string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        eventSource,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Key:           key,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.NewValidation("event has no payload")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode event payload")
	}
	return nil
}

// ToMessage renders the envelope as a message keyed by the entity key.
func (e *EventEnvelope) ToMessage(topic string) (*Message, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	return &Message{
		Topic: topic,
		Key:   []byte(e.Key),
		Value: val,
		Headers: map[string]string{
			"event_type":     e.EventType,
			"source":         e.Source,
			"schema_version": e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}, nil
}

// DecodeEnvelope parses a message value.
func DecodeEnvelope(value []byte) (*EventEnvelope, error) {
	if len(value) == 0 {
		return nil, errors.NewValidation("empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}
