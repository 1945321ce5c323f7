package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/insurance-derivatives/internal/domain/derivative"
	"github.com/turtacn/insurance-derivatives/internal/domain/obligation"
	"github.com/turtacn/insurance-derivatives/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/insurance-derivatives/pkg/errors"
)

// keyTimeLayout sorts lexically in time order.
const keyTimeLayout = "20060102T150405.000000000Z"

var (
	ErrSnapshotNotFound = errors.New(errors.ErrCodeNotFound, "snapshot not found")
	ErrUploadFailed     = errors.New(errors.ErrCodeInternal, "snapshot upload failed")
	ErrDownloadFailed   = errors.New(errors.ErrCodeInternal, "snapshot download failed")
)

// ObligationSnapshot is one obligation as it stood when the snapshot was
// taken.
type ObligationSnapshot struct {
	ID              int64           `json:"id"`
	PolicyNumber    string          `json:"policy_number"`
	Type            obligation.Type `json:"type"`
	Status          string          `json:"status"`
	RiskLevel       float64         `json:"risk_level"`
	Amount          float64         `json:"amount"`
	DurationMonths  int             `json:"duration_months"`
	CalculatedValue float64         `json:"calculated_value"`
	PremiumPerMonth float64         `json:"premium_per_month"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Notes           string          `json:"notes,omitempty"`
	Risks           []string        `json:"risks"`
	Details         json.RawMessage `json:"details"`
}

// DerivativeSnapshot is the archived valuation of one derivative.
type DerivativeSnapshot struct {
	DerivativeID int64                `json:"derivative_id"`
	Name         string               `json:"name"`
	TotalValue   float64              `json:"total_value"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	TakenAt      time.Time            `json:"taken_at"`
	Obligations  []ObligationSnapshot `json:"obligations"`
}

// NewDerivativeSnapshot captures d at takenAt.
func NewDerivativeSnapshot(d *derivative.Derivative, takenAt time.Time) (*DerivativeSnapshot, error) {
	obs := d.Obligations()
	snap := &DerivativeSnapshot{
		DerivativeID: d.ID(),
		Name:         d.Name(),
		TotalValue:   d.TotalValue(),
		CreatedAt:    d.CreatedAt(),
		UpdatedAt:    d.UpdatedAt(),
		TakenAt:      takenAt.UTC(),
		Obligations:  make([]ObligationSnapshot, 0, len(obs)),
	}
	for _, o := range obs {
		details, err := json.Marshal(o.Details())
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode obligation details")
		}
		codes := make([]string, 0, len(o.Risks()))
		for _, r := range o.Risks() {
			codes = append(codes, r.Code)
		}
		snap.Obligations = append(snap.Obligations, ObligationSnapshot{
			ID:              o.ID(),
			PolicyNumber:    o.PolicyNumber(),
			Type:            o.Type(),
			Status:          string(o.Status()),
			RiskLevel:       o.RiskLevel(),
			Amount:          o.Amount(),
			DurationMonths:  o.DurationMonths(),
			CalculatedValue: o.CalculatedValue(),
			PremiumPerMonth: o.PremiumPerMonth(),
			StartDate:       o.StartDate(),
			EndDate:         o.EndDate(),
			Notes:           o.Notes(),
			Risks:           codes,
			Details:         details,
		})
	}
	return snap, nil
}

// SnapshotInfo describes a stored snapshot object.
type SnapshotInfo struct {
	Key          string    `json:"key"`
	DerivativeID int64     `json:"derivative_id"`
	Size         int64     `json:"size"`
	TakenAt      time.Time `json:"taken_at"`
}

// SnapshotStore writes snapshots under
// <prefix>derivatives/<id>/<taken-at>.json.
type SnapshotStore struct {
	client *Client
	logger logging.Logger
	now    func() time.Time
}

func NewSnapshotStore(client *Client, log logging.Logger) *SnapshotStore {
	return &SnapshotStore{client: client, logger: log, now: time.Now}
}

func (s *SnapshotStore) dir(id int64) string {
	return s.client.Prefix() + "derivatives/" + strconv.FormatInt(id, 10) + "/"
}

// Key returns the object key for a snapshot of derivative id taken at t.
func (s *SnapshotStore) Key(id int64, t time.Time) string {
	return s.dir(id) + t.UTC().Format(keyTimeLayout) + ".json"
}

// Save uploads a snapshot of a persisted derivative.
func (s *SnapshotStore) Save(ctx context.Context, d *derivative.Derivative) (*SnapshotInfo, error) {
	if d == nil || d.ID() == 0 {
		return nil, errors.NewValidation("only a saved derivative can be snapshotted")
	}
	api, err := s.client.API()
	if err != nil {
		return nil, err
	}

	takenAt := s.now().UTC()
	snap, err := NewDerivativeSnapshot(d, takenAt)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode snapshot")
	}

	key := s.Key(d.ID(), takenAt)
	_, err = api.PutObject(ctx, s.client.Bucket(), key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"derivative-id": strconv.FormatInt(d.ID(), 10),
			"total-value":   strconv.FormatFloat(d.TotalValue(), 'f', -1, 64),
		},
	})
	if err != nil {
		return nil, ErrUploadFailed.WithCause(err)
	}

	s.logger.Info("Derivative snapshot stored",
		logging.DerivativeID(d.ID()),
		logging.String("key", key),
		logging.Int("obligations", len(snap.Obligations)))
	return &SnapshotInfo{Key: key, DerivativeID: d.ID(), Size: int64(len(body)), TakenAt: takenAt}, nil
}

// List returns the snapshots of derivative id, oldest first.
func (s *SnapshotStore) List(ctx context.Context, id int64) ([]SnapshotInfo, error) {
	api, err := s.client.API()
	if err != nil {
		return nil, err
	}
	var out []SnapshotInfo
	for obj := range api.ListObjects(ctx, s.client.Bucket(), minio.ListObjectsOptions{Prefix: s.dir(id), Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeInternal, "failed to list snapshots")
		}
		takenAt, ok := parseKeyTime(obj.Key)
		if !ok {
			s.logger.Debug("ignoring foreign object", logging.String("key", obj.Key))
			continue
		}
		out = append(out, SnapshotInfo{Key: obj.Key, DerivativeID: id, Size: obj.Size, TakenAt: takenAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Load reads one snapshot by key.
func (s *SnapshotStore) Load(ctx context.Context, key string) (*DerivativeSnapshot, error) {
	api, err := s.client.API()
	if err != nil {
		return nil, err
	}
	r, err := api.GetObject(ctx, s.client.Bucket(), key, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrSnapshotNotFound.WithCause(fmt.Errorf("key %s", key))
		}
		return nil, ErrDownloadFailed.WithCause(err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrDownloadFailed.WithCause(err)
	}
	var snap DerivativeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "malformed snapshot "+key)
	}
	return &snap, nil
}

// Latest loads the newest snapshot of derivative id.
func (s *SnapshotStore) Latest(ctx context.Context, id int64) (*DerivativeSnapshot, error) {
	list, err := s.List(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrSnapshotNotFound.WithCause(fmt.Errorf("derivative %d has no snapshots", id))
	}
	return s.Load(ctx, list[len(list)-1].Key)
}

// Delete removes one snapshot.
func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	api, err := s.client.API()
	if err != nil {
		return err
	}
	if err := api.RemoveObject(ctx, s.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete snapshot")
	}
	return nil
}

func parseKeyTime(key string) (time.Time, bool) {
	name := key[strings.LastIndex(key, "/")+1:]
	if !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	t, err := time.Parse(keyTimeLayout, strings.TrimSuffix(name, ".json"))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
