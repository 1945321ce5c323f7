package kafka

import (
	"context"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
)

// MessagePublisher is the part of Producer the emitter needs.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// Emitter turns committed repository changes into events. Publishing is
// best effort: the database write has already committed, so a failure is
// logged and never returned to the caller.
type Emitter struct {
	pub    MessagePublisher
	topics Topics
	logger logging.Logger
}

func NewEmitter(pub MessagePublisher, topics Topics, log logging.Logger) *Emitter {
	return &Emitter{pub: pub, topics: topics, logger: log.Named("events")}
}

func (e *Emitter) emit(ctx context.Context, topic, eventType, key string, payload interface{}) {
	env, err := NewEventEnvelope(eventType, key, payload)
	if err == nil {
		var msg *Message
		msg, err = env.ToMessage(topic)
		if err == nil {
			err = e.pub.Publish(ctx, msg)
		}
	}
	if err != nil {
		e.logger.Warn("ledger event not published",
			logging.String("topic", topic),
			logging.String("event_type", eventType),
			logging.String("key", key),
			logging.Err(err))
	}
}

// ObligationSaved publishes obligation.saved.
func (e *Emitter) ObligationSaved(ctx context.Context, o obligation.Obligation) {
	e.emit(ctx, e.topics.Obligations, EventObligationSaved, idKey(o.ID()), obligationPayload(o))
}

// ObligationDeleted publishes obligation.deleted.
func (e *Emitter) ObligationDeleted(ctx context.Context, id int64) {
	e.emit(ctx, e.topics.Obligations, EventObligationDeleted, idKey(id), ObligationPayload{ID: id})
}

// DerivativeSaved publishes derivative.saved.
func (e *Emitter) DerivativeSaved(ctx context.Context, d *derivative.Derivative) {
	e.emit(ctx, e.topics.Derivatives, EventDerivativeSaved, idKey(d.ID()), derivativePayload(d))
}

// DerivativeDeleted publishes derivative.deleted.
func (e *Emitter) DerivativeDeleted(ctx context.Context, id int64) {
	e.emit(ctx, e.topics.Derivatives, EventDerivativeDeleted, idKey(id), DerivativePayload{ID: id})
}

// RiskChanged publishes risk.saved or risk.deleted.
func (e *Emitter) RiskChanged(ctx context.Context, eventType, code string) {
	e.emit(ctx, e.topics.Risks, eventType, code, RiskPayload{Code: code})
}

// RisksSeeded publishes risk.seeded.
func (e *Emitter) RisksSeeded(ctx context.Context, n int) {
	e.emit(ctx, e.topics.Risks, EventRiskSeeded, "standard", RiskPayload{Seeded: n})
}

// ObligationRepository publishes an event after each successful write of
// the wrapped repository. Reads pass through.
type ObligationRepository struct {
	derivative.ObligationRepository
	events *Emitter
}

func NewObligationRepository(inner derivative.ObligationRepository, events *Emitter) *ObligationRepository {
	return &ObligationRepository{ObligationRepository: inner, events: events}
}

func (r *ObligationRepository) Save(ctx context.Context, o obligation.Obligation) error {
	if err := r.ObligationRepository.Save(ctx, o); err != nil {
		return err
	}
	r.events.ObligationSaved(ctx, o)
	return nil
}

// SaveToDerivative announces the obligation, then the derivative it joined.
func (r *ObligationRepository) SaveToDerivative(ctx context.Context, o obligation.Obligation, d *derivative.Derivative) error {
	if err := r.ObligationRepository.SaveToDerivative(ctx, o, d); err != nil {
		return err
	}
	r.events.ObligationSaved(ctx, o)
	r.events.DerivativeSaved(ctx, d)
	return nil
}

func (r *ObligationRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := r.ObligationRepository.Delete(ctx, id)
	if ok && err == nil {
		r.events.ObligationDeleted(ctx, id)
	}
	return ok, err
}

// DerivativeRepository publishes derivative events. Obligations the inner
// Save inserts on the way are announced too.
type DerivativeRepository struct {
	derivative.Repository
	events *Emitter
}

func NewDerivativeRepository(inner derivative.Repository, events *Emitter) *DerivativeRepository {
	return &DerivativeRepository{Repository: inner, events: events}
}

func (r *DerivativeRepository) Save(ctx context.Context, d *derivative.Derivative) error {
	var fresh []obligation.Obligation
	for _, o := range d.Obligations() {
		if o.ID() == 0 {
			fresh = append(fresh, o)
		}
	}
	if err := r.Repository.Save(ctx, d); err != nil {
		return err
	}
	for _, o := range fresh {
		r.events.ObligationSaved(ctx, o)
	}
	r.events.DerivativeSaved(ctx, d)
	return nil
}

func (r *DerivativeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := r.Repository.Delete(ctx, id)
	if ok && err == nil {
		r.events.DerivativeDeleted(ctx, id)
	}
	return ok, err
}

// RiskRepository publishes catalogue events.
type RiskRepository struct {
	risk.Repository
	events *Emitter
}

func NewRiskRepository(inner risk.Repository, events *Emitter) *RiskRepository {
	return &RiskRepository{Repository: inner, events: events}
}

func (r *RiskRepository) Save(ctx context.Context, rk risk.Risk) error {
	if err := r.Repository.Save(ctx, rk); err != nil {
		return err
	}
	r.events.RiskChanged(ctx, EventRiskSaved, rk.Code)
	return nil
}

func (r *RiskRepository) Delete(ctx context.Context, code string) (bool, error) {
	ok, err := r.Repository.Delete(ctx, code)
	if ok && err == nil {
		r.events.RiskChanged(ctx, EventRiskDeleted, code)
	}
	return ok, err
}

func (r *RiskRepository) SeedStandard(ctx context.Context) (int, error) {
	n, err := r.Repository.SeedStandard(ctx)
	if err == nil && n > 0 {
		r.events.RisksSeeded(ctx, n)
	}
	return n, err
}
