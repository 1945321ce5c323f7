package cli

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/turtacn/insurance-derivatives/internal/config"
	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/domain/risk"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/database/postgres"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/storage/minio"
	"github.com/turtacn/insurance-derivatives/internal/testutil"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

type memRisks struct {
	risk.Repository
	byCode map[string]risk.Risk
}

func newMemRisks() *memRisks { return &memRisks{byCode: map[string]risk.Risk{}} }

func (m *memRisks) FindAll(context.Context) ([]risk.Risk, error) {
	out := make([]risk.Risk, 0, len(m.byCode))
	for _, r := range m.byCode {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memRisks) FindByCategory(ctx context.Context, c risk.Category) ([]risk.Risk, error) {
	all, _ := m.FindAll(ctx)
	out := []risk.Risk{}
	for _, r := range all {
		if r.Category == c {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRisks) SeedStandard(context.Context) (int, error) {
	n := 0
	for _, r := range risk.Standard() {
		if _, ok := m.byCode[r.Code]; !ok {
			m.byCode[r.Code] = r
			n++
		}
	}
	return n, nil
}

type memObligations struct {
	list        []obligation.Obligation
	derivatives *memDerivatives
}

func (m *memObligations) Save(_ context.Context, o obligation.Obligation) error {
	o.CalculateValue()
	if o.ID() == 0 {
		o.SetID(int64(len(m.list) + 1))
		m.list = append(m.list, o)
	}
	return nil
}

func (m *memObligations) SaveToDerivative(ctx context.Context, o obligation.Obligation, d *derivative.Derivative) error {
	if err := m.Save(ctx, o); err != nil {
		return err
	}
	d.AddObligation(o)
	return m.derivatives.Save(ctx, d)
}

func (m *memObligations) FindByID(_ context.Context, id int64) (obligation.Obligation, error) {
	for _, o := range m.list {
		if o.ID() == id {
			return o, nil
		}
	}
	return nil, errors.New(errors.ErrCodeObligationNotFound, "obligation not found")
}

func (m *memObligations) FindAll(context.Context) ([]obligation.Obligation, error) {
	return append([]obligation.Obligation{}, m.list...), nil
}

func (m *memObligations) FindByStatus(_ context.Context, s obligation.Status) ([]obligation.Obligation, error) {
	out := []obligation.Obligation{}
	for _, o := range m.list {
		if o.Status() == s {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memObligations) FindByType(_ context.Context, t obligation.Type) ([]obligation.Obligation, error) {
	out := []obligation.Obligation{}
	for _, o := range m.list {
		if o.Type() == t {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memObligations) Delete(_ context.Context, id int64) (bool, error) {
	for i, o := range m.list {
		if o.ID() == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type memDerivatives struct {
	list []*derivative.Derivative
}

func (m *memDerivatives) Save(_ context.Context, d *derivative.Derivative) error {
	d.RecalculateTotal()
	if d.ID() == 0 {
		d.SetID(int64(len(m.list) + 1))
		m.list = append(m.list, d)
	}
	return nil
}

func (m *memDerivatives) FindByID(_ context.Context, id int64) (*derivative.Derivative, error) {
	for _, d := range m.list {
		if d.ID() == id {
			return d, nil
		}
	}
	return nil, errors.New(errors.ErrCodeDerivativeNotFound, "derivative not found")
}

func (m *memDerivatives) FindAll(context.Context) ([]*derivative.Derivative, error) {
	return append([]*derivative.Derivative{}, m.list...), nil
}

func (m *memDerivatives) FindByName(_ context.Context, s string) ([]*derivative.Derivative, error) {
	return derivative.Filter(m.list, derivative.Criteria{NameContains: s}), nil
}

func (m *memDerivatives) FindByTotalValueRange(_ context.Context, lo, hi float64) ([]*derivative.Derivative, error) {
	if lo > hi {
		return nil, errors.NewValidation("min exceeds max")
	}
	out := []*derivative.Derivative{}
	for _, d := range m.list {
		if d.TotalValue() >= lo && d.TotalValue() <= hi {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDerivatives) Delete(_ context.Context, id int64) (bool, error) {
	for i, d := range m.list {
		if d.ID() == id {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type fakeMigrator struct {
	state postgres.MigrationState
	calls []string
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	f.state = postgres.MigrationState{Version: 3}
	return nil
}

func (f *fakeMigrator) Down(steps int) error {
	f.calls = append(f.calls, "down")
	f.state.Version -= uint(steps)
	return nil
}

func (f *fakeMigrator) Status() (postgres.MigrationState, error) { return f.state, nil }

func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.state = postgres.MigrationState{Version: uint(v)}
	return nil
}

type memSnapshots struct {
	byID map[int64][]*minio.DerivativeSnapshot
	now  time.Time
}

func newMemSnapshots() *memSnapshots {
	return &memSnapshots{
		byID: map[int64][]*minio.DerivativeSnapshot{},
		now:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memSnapshots) key(id int64, i int) string {
	return fmt.Sprintf("snapshots/derivatives/%d/%d.json", id, i)
}

func (m *memSnapshots) Save(_ context.Context, d *derivative.Derivative) (*minio.SnapshotInfo, error) {
	m.now = m.now.Add(time.Minute)
	snap, err := minio.NewDerivativeSnapshot(d, m.now)
	if err != nil {
		return nil, err
	}
	m.byID[d.ID()] = append(m.byID[d.ID()], snap)
	return &minio.SnapshotInfo{Key: m.key(d.ID(), len(m.byID[d.ID()])), DerivativeID: d.ID(), Size: 100, TakenAt: m.now}, nil
}

func (m *memSnapshots) List(_ context.Context, id int64) ([]minio.SnapshotInfo, error) {
	out := []minio.SnapshotInfo{}
	for i, s := range m.byID[id] {
		out = append(out, minio.SnapshotInfo{Key: m.key(id, i+1), DerivativeID: id, Size: 100, TakenAt: s.TakenAt})
	}
	return out, nil
}

func (m *memSnapshots) Latest(_ context.Context, id int64) (*minio.DerivativeSnapshot, error) {
	list := m.byID[id]
	if len(list) == 0 {
		return nil, minio.ErrSnapshotNotFound
	}
	return list[len(list)-1], nil
}

func (m *memSnapshots) Load(context.Context, string) (*minio.DerivativeSnapshot, error) {
	return nil, minio.ErrSnapshotNotFound
}

// fakeEventSource replays queued envelopes, then returns.
type fakeEventSource struct {
	opts   kafka.ConsumerOptions
	queue  []kafka.Event
	closed int
}

func (f *fakeEventSource) Consume(ctx context.Context, limit int, fn kafka.Handler) (int, error) {
	n := 0
	for _, ev := range f.queue {
		if limit > 0 && n == limit {
			break
		}
		if err := fn(ctx, ev); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (f *fakeEventSource) Close() error {
	f.closed++
	return nil
}

// testBackend is an in-memory Backend that counts Close calls.
type testBackend struct {
	*Backend
	risks       *memRisks
	obligations *memObligations
	derivatives *memDerivatives
	migrator    *fakeMigrator
	snapshots   *memSnapshots
	events      *fakeEventSource
	closed      int
}

func newTestBackend() *testBackend {
	tb := &testBackend{
		risks:       newMemRisks(),
		derivatives: &memDerivatives{},
		migrator:    &fakeMigrator{},
	}
	tb.obligations = &memObligations{derivatives: tb.derivatives}
	return tb
}

func (tb *testBackend) factory() BackendFactory {
	return func(context.Context, *config.Config, logging.Logger) (*Backend, error) {
		b := &Backend{
			Risks:       tb.risks,
			Obligations: tb.obligations,
			Derivatives: tb.derivatives,
			Migrator:    tb.migrator,
		}
		if tb.snapshots != nil {
			b.Snapshots = tb.snapshots
		}
		b.OnClose(func() error { tb.closed++; return nil })
		tb.Backend = b
		return b, nil
	}
}

func (tb *testBackend) eventSource(_ *config.Config, opts kafka.ConsumerOptions, _ logging.Logger) (EventSource, error) {
	if tb.events == nil {
		return nil, errors.NewValidation("change events are disabled; set events.enabled")
	}
	tb.events.opts = opts
	return tb.events, nil
}

func (tb *testBackend) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DERIV_LOG_LEVEL", "error")
	cmd := NewRootCommand(tb.factory(), WithEventSource(tb.eventSource))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (tb *testBackend) addHealth(t *testing.T, level, amount float64) obligation.Obligation {
	t.Helper()
	h := testutil.Health(t, level, amount, 6)
	require.NoError(t, tb.obligations.Save(context.Background(), h))
	return h
}

func (tb *testBackend) addLife(t *testing.T, level, amount float64) obligation.Obligation {
	t.Helper()
	l := testutil.Life(t, level, amount, 12)
	require.NoError(t, tb.obligations.Save(context.Background(), l))
	return l
}

func (tb *testBackend) addDerivative(t *testing.T, name string, obs ...obligation.Obligation) *derivative.Derivative {
	t.Helper()
	d, err := derivative.New(name)
	require.NoError(t, err)
	for _, o := range obs {
		d.AddObligation(o)
	}
	require.NoError(t, tb.derivatives.Save(context.Background(), d))
	return d
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
