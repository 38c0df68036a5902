// Package browser keeps the pick list collection a dispatch station works
// from: fetching, searching, sorting, stats, and packer assignment with a
// local optimistic patch.
package browser

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/internal/gateway"
	"github.com/Mrhamza01/prlabel/pkg/logging"
)

// Gateway is the part of the fulfillment gateway the browser needs
type Gateway interface {
	ListPickLists(ctx context.Context, status domain.ListStatus, entityID string) ([]domain.PickList, error)
	AssignPickList(ctx context.Context, pickListID int64, entityID string) (*gateway.AssignResult, error)
}

// SortKey orders the visible pick lists
type SortKey string

const (
	SortOrderDate   SortKey = "order-date"
	SortOrderNumber SortKey = "order-number"
	SortStatus      SortKey = "status"
)

// ParseSortKey parses a sort flag value. An empty value means order date.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortOrderDate:
		return SortOrderDate, nil
	case SortOrderNumber:
		return SortOrderNumber, nil
	case SortStatus:
		return SortStatus, nil
	default:
		return "", fmt.Errorf("unknown sort %q: must be one of order-date, order-number, status", s)
	}
}

// Stats are the server-side counts per status filter
type Stats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	All       int `json:"all"`
}

// Summary is computed from the loaded collection
type Summary struct {
	Assigned int `json:"assigned"`
	Today    int `json:"today"`
}

// patch is a local assignment the server has not yet been seen to reflect
type patch struct {
	entity    domain.Entity
	version   int64
	patchedAt time.Time
}

// Option configures a Browser
type Option func(*Browser)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(b *Browser) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithOnAssigned registers a callback run after a successful assignment,
// e.g. to patch an open station's header
func WithOnAssigned(fn func(pickListID int64, entity domain.Entity)) Option {
	return func(b *Browser) {
		b.onAssigned = fn
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(b *Browser) {
		b.now = now
	}
}

// Browser holds the fetched pick lists. It is safe for concurrent use.
type Browser struct {
	gw         Gateway
	logger     *logging.Logger
	onAssigned func(int64, domain.Entity)
	now        func() time.Time

	mu       sync.Mutex
	lists    []domain.PickList
	patches  map[int64]patch
	search   string
	sortKey  SortKey
	status   domain.ListStatus
	entityID string
}

// New creates a Browser over the fulfillment gateway
func New(gw Gateway, opts ...Option) *Browser {
	b := &Browser{
		gw:      gw,
		logger:  logging.NewNop(),
		now:     time.Now,
		patches: make(map[int64]patch),
		sortKey: SortOrderDate,
		status:  domain.ListPending,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("browser")
	return b
}

// Fetch replaces the collection with the server's lists for status and
// entityID. Local assignment patches survive when the server copy is older.
func (b *Browser) Fetch(ctx context.Context, status domain.ListStatus, entityID string) error {
	if status == "" {
		status = domain.ListPending
	}

	lists, err := b.gw.ListPickLists(ctx, status, entityID)
	if err != nil {
		return fmt.Errorf("failed to fetch pick lists: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range lists {
		b.applyPatchLocked(&lists[i])
	}
	b.lists = lists
	b.status = status
	b.entityID = entityID

	b.logger.WithContext(ctx).Debug("Pick lists fetched",
		"status", status,
		"entityId", entityID,
		"count", len(lists),
	)
	return nil
}

// applyPatchLocked keeps a local patch over a stale server record and drops
// it once the server has a newer one
func (b *Browser) applyPatchLocked(p *domain.PickList) {
	pt, ok := b.patches[p.ID]
	if !ok {
		return
	}
	if !p.UpdatedAt.Before(pt.patchedAt) || p.Version >= pt.version {
		delete(b.patches, p.ID)
		return
	}
	setPacker(p, pt.entity)
	p.Version = pt.version
}

// Assign makes entity the packer of the pick list and patches the local copy
// without refetching
func (b *Browser) Assign(ctx context.Context, pickListID int64, entity domain.Entity) error {
	if entity.ID == "" {
		return domain.ErrEntityRequired
	}

	res, err := b.gw.AssignPickList(ctx, pickListID, entity.ID)
	if err != nil {
		return fmt.Errorf("failed to assign pick list %d: %w", pickListID, err)
	}

	b.mu.Lock()
	now := b.now()
	var version int64
	for i := range b.lists {
		p := &b.lists[i]
		if p.ID != pickListID {
			continue
		}
		setPacker(p, entity)
		p.Version++
		if res != nil && res.PickList != nil && res.PickList.Version > p.Version {
			p.Version = res.PickList.Version
		}
		version = p.Version
	}
	if version == 0 && res != nil && res.PickList != nil {
		version = res.PickList.Version
	}
	b.patches[pickListID] = patch{entity: entity, version: version, patchedAt: now}
	onAssigned := b.onAssigned
	b.mu.Unlock()

	b.logger.LogBusinessEvent(ctx, logging.BusinessEvent{
		EventType:  "pick_list_assigned",
		EntityType: "pick_list",
		EntityID:   strconv.FormatInt(pickListID, 10),
		Action:     "assign_local",
		RelatedIDs: map[string]string{"entityId": entity.ID},
	})

	if onAssigned != nil {
		onAssigned(pickListID, entity)
	}
	return nil
}

func setPacker(p *domain.PickList, entity domain.Entity) {
	id := entity.ID
	p.PackingPerson = &id
	if entity.Name != "" {
		name := entity.Name
		p.PackingPersonName = &name
	} else {
		p.PackingPersonName = nil
	}
}

// Stats counts pending, completed and all pick lists with three parallel
// calls. The first failure cancels the others.
func (b *Browser) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)

	count := func(status domain.ListStatus, dst *int) func() error {
		return func() error {
			lists, err := b.gw.ListPickLists(gctx, status, "")
			if err != nil {
				return fmt.Errorf("count %s pick lists: %w", status, err)
			}
			*dst = len(lists)
			return nil
		}
	}

	g.Go(count(domain.ListPending, &stats.Pending))
	g.Go(count(domain.ListCompleted, &stats.Completed))
	g.Go(count(domain.ListAll, &stats.All))

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Search sets the search term applied by Visible
func (b *Browser) Search(term string) {
	b.mu.Lock()
	b.search = strings.TrimSpace(term)
	b.mu.Unlock()
}

// Sort sets the order applied by Visible
func (b *Browser) Sort(by SortKey) {
	b.mu.Lock()
	b.sortKey = by
	b.mu.Unlock()
}

// Visible returns a sorted copy of the lists that match the search term.
// The term matches order number, pick list ID and remarks, ignoring case.
func (b *Browser) Visible() []domain.PickList {
	b.mu.Lock()
	defer b.mu.Unlock()

	term := strings.ToLower(b.search)
	out := make([]domain.PickList, 0, len(b.lists))
	for _, p := range b.lists {
		if term == "" || matches(p, term) {
			out = append(out, p)
		}
	}
	sortLists(out, b.sortKey)
	return out
}

func matches(p domain.PickList, term string) bool {
	if strings.Contains(strings.ToLower(p.OrderNumber), term) {
		return true
	}
	if strings.Contains(strconv.FormatInt(p.ID, 10), term) {
		return true
	}
	return p.Remarks != nil && strings.Contains(strings.ToLower(*p.Remarks), term)
}

func sortLists(lists []domain.PickList, by SortKey) {
	newestFirst := func(i, j int) bool {
		if lists[i].OrderDate.Equal(lists[j].OrderDate) {
			return lists[i].ID > lists[j].ID
		}
		return lists[i].OrderDate.After(lists[j].OrderDate)
	}

	switch by {
	case SortOrderNumber:
		sort.SliceStable(lists, func(i, j int) bool {
			return lists[i].OrderNumber < lists[j].OrderNumber
		})
	case SortStatus:
		sort.SliceStable(lists, func(i, j int) bool {
			if lists[i].Status != lists[j].Status {
				return lists[i].Status == domain.StatusPending
			}
			return newestFirst(i, j)
		})
	default:
		sort.SliceStable(lists, newestFirst)
	}
}

// CurrentPickList looks up a loaded pick list by ID
func (b *Browser) CurrentPickList(id int64) (domain.PickList, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range b.lists {
		if p.ID == id {
			return p, true
		}
	}
	return domain.PickList{}, false
}

// Summary counts assigned lists and lists ordered on the same day as now
func (b *Browser) Summary(now time.Time) Summary {
	b.mu.Lock()
	defer b.mu.Unlock()

	var s Summary
	y, m, d := now.Date()
	for _, p := range b.lists {
		if p.AssigneeID != nil {
			s.Assigned++
		}
		py, pm, pd := p.OrderDate.In(now.Location()).Date()
		if py == y && pm == m && pd == d {
			s.Today++
		}
	}
	return s
}

// Filter returns the status and entity of the last fetch
func (b *Browser) Filter() (domain.ListStatus, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status, b.entityID
}
