package client

import (
	"context"
	"net/url"
	"strconv"
)

// RisksClient reads and seeds the risk catalogue.
type RisksClient struct {
	client *Client
}

// List returns the catalogue, optionally restricted to one category.
func (r *RisksClient) List(ctx context.Context, category string) ([]Risk, error) {
	path := apiPrefix + "/risks"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var out []Risk
	if err := r.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RisksClient) Get(ctx context.Context, code string) (*Risk, error) {
	var out Risk
	if err := r.client.get(ctx, apiPrefix+"/risks/"+url.PathEscape(code), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Seed inserts the standard risks that are missing.
func (r *RisksClient) Seed(ctx context.Context) (*SeedResult, error) {
	var out SeedResult
	if err := r.client.post(ctx, apiPrefix+"/risks/seed", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ObligationsClient reads and deletes obligations.
type ObligationsClient struct {
	client *Client
}

// ObligationFilter narrows List. Empty fields are not applied.
type ObligationFilter struct {
	Type   string
	Status string
}

func (o *ObligationsClient) List(ctx context.Context, f ObligationFilter) ([]Obligation, error) {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	path := apiPrefix + "/obligations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Obligation
	if err := o.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *ObligationsClient) Get(ctx context.Context, id int64) (*Obligation, error) {
	var out Obligation
	if err := o.client.get(ctx, idPath("/obligations", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes an obligation and its links to derivatives.
func (o *ObligationsClient) Delete(ctx context.Context, id int64) error {
	return o.client.delete(ctx, idPath("/obligations", id))
}

// DerivativesClient reads derivatives and manages their snapshots.
type DerivativesClient struct {
	client *Client
}

// DerivativeFilter narrows List. Min and Max must be set together.
type DerivativeFilter struct {
	NameContains string
	Min, Max     *float64
}

func (d *DerivativesClient) List(ctx context.Context, f DerivativeFilter) ([]DerivativeSummary, error) {
	q := url.Values{}
	if f.NameContains != "" {
		q.Set("name", f.NameContains)
	}
	if f.Min != nil {
		q.Set("min", strconv.FormatFloat(*f.Min, 'f', -1, 64))
	}
	if f.Max != nil {
		q.Set("max", strconv.FormatFloat(*f.Max, 'f', -1, 64))
	}
	path := apiPrefix + "/derivatives"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []DerivativeSummary
	if err := d.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOptions shape the obligation list of Get.
type GetOptions struct {
	ActiveOnly bool
	SortByRisk bool
}

func (d *DerivativesClient) Get(ctx context.Context, id int64, opts GetOptions) (*Derivative, error) {
	q := url.Values{}
	if opts.ActiveOnly {
		q.Set("active", "true")
	}
	if opts.SortByRisk {
		q.Set("sort", "risk")
	}
	path := idPath("/derivatives", id)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out Derivative
	if err := d.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a derivative; its obligations are kept.
func (d *DerivativesClient) Delete(ctx context.Context, id int64) error {
	return d.client.delete(ctx, idPath("/derivatives", id))
}

// TakeSnapshot archives the derivative's current valuation.
func (d *DerivativesClient) TakeSnapshot(ctx context.Context, id int64) (*SnapshotInfo, error) {
	var out SnapshotInfo
	if err := d.client.post(ctx, idPath("/derivatives", id)+"/snapshots", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *DerivativesClient) Snapshots(ctx context.Context, id int64) ([]SnapshotInfo, error) {
	var out []SnapshotInfo
	if err := d.client.get(ctx, idPath("/derivatives", id)+"/snapshots", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DerivativesClient) LatestSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	var out Snapshot
	if err := d.client.get(ctx, idPath("/derivatives", id)+"/snapshots?latest=true", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
