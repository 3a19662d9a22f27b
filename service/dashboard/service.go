package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brojonat/solpay/service/solana"
)

// Query selects a view of the dashboard. An empty SnapshotID, or one that no
// longer matches the held snapshot, triggers a fresh load.
type Query struct {
	SnapshotID string
	Filter     Filter
	Offset     int
}

// View is one rendered page of the dashboard.
type View struct {
	SnapshotID       string    `json:"snapshot_id"`
	FetchedAt        time.Time `json:"fetched_at"`
	TotalLamports    uint64    `json:"total_lamports"`
	TotalSOL         float64   `json:"total_sol"`
	FilteredCount    int       `json:"filtered_count"`
	FilteredLamports uint64    `json:"filtered_lamports"`
	Shown            int       `json:"shown"`
	Offset           int       `json:"offset"`
	NextOffset       int       `json:"next_offset"`
	HasMore          bool      `json:"has_more"`
	Dropped          int       `json:"dropped"`
	Entries          []Entry   `json:"entries"`
}

// TotalDisplay renders the total with dashboard precision.
func (v *View) TotalDisplay() string {
	return solana.FormatSOL(v.TotalLamports)
}

// Loader produces snapshots. *Aggregator satisfies it.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Service holds the most recent snapshot so that filter and page changes
// are served without another ledger round trip.
type Service struct {
	loader   Loader
	pageSize int
	logger   *slog.Logger

	mu      sync.Mutex
	current *Snapshot
}

// NewService creates a dashboard service.
func NewService(loader Loader, pageSize int, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{loader: loader, pageSize: pageSize, logger: logger}
}

// Snapshot returns the held snapshot when id matches it, otherwise loads a
// new one and makes it current.
func (s *Service) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	s.mu.Lock()
	if id != "" && s.current != nil && s.current.ID == id {
		snap := s.current
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	snap, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return snap, nil
}

// View applies the query's filter and pager to a snapshot.
func (s *Service) View(ctx context.Context, q Query) (*View, error) {
	snap, err := s.Snapshot(ctx, q.SnapshotID)
	if err != nil {
		return nil, err
	}

	if q.SnapshotID != "" && q.SnapshotID != snap.ID {
		s.logger.DebugContext(ctx, "snapshot expired, reloaded",
			"requested", q.SnapshotID,
			"current", snap.ID,
		)
	}

	filtered := q.Filter.Apply(snap.Entries)
	pager := Pager{Offset: q.Offset, PageSize: s.pageSize}
	visible := pager.Visible(filtered)

	return &View{
		SnapshotID:       snap.ID,
		FetchedAt:        snap.FetchedAt,
		TotalLamports:    snap.TotalLamports,
		TotalSOL:         snap.TotalSOL(),
		FilteredCount:    len(filtered),
		FilteredLamports: Sum(filtered),
		Shown:            len(visible),
		Offset:           pager.Offset,
		NextOffset:       pager.Next().Offset,
		HasMore:          pager.HasMore(len(filtered)),
		Dropped:          snap.Dropped,
		Entries:          visible,
	}, nil
}
