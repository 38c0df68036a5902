package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Mrhamza01/prlabel/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFulfillment struct {
	mu      sync.Mutex
	calls   []string
	fail    map[string]error
	block   chan struct{}
	started chan string
}

func (f *fakeFulfillment) UpdateShipment(ctx context.Context, shipmentID string) error {
	f.mu.Lock()
	f.calls = append(f.calls, shipmentID)
	err := f.fail[shipmentID]
	block, started := f.block, f.started
	f.mu.Unlock()

	if started != nil {
		started <- shipmentID
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeFulfillment) setFail(shipmentID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[string]error)
	}
	if err == nil {
		delete(f.fail, shipmentID)
		return
	}
	f.fail[shipmentID] = err
}

func (f *fakeFulfillment) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type printCall struct {
	Mode       string
	ShipmentID string
}

type fakePrinter struct {
	mu      sync.Mutex
	calls   []printCall
	fail    map[string]error
	block   chan struct{}
	started chan string
}

func (p *fakePrinter) PrintLabel(ctx context.Context, shipmentID string) error {
	return p.record(ctx, ModeExisting, shipmentID)
}

func (p *fakePrinter) GenerateAndPrintLabel(ctx context.Context, shipmentID string) error {
	return p.record(ctx, ModeGenerated, shipmentID)
}

func (p *fakePrinter) record(ctx context.Context, mode, shipmentID string) error {
	p.mu.Lock()
	p.calls = append(p.calls, printCall{Mode: mode, ShipmentID: shipmentID})
	err := p.fail[shipmentID]
	block, started := p.block, p.started
	p.mu.Unlock()

	if started != nil {
		started <- shipmentID
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *fakePrinter) setFail(shipmentID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail == nil {
		p.fail = make(map[string]error)
	}
	if err == nil {
		delete(p.fail, shipmentID)
		return
	}
	p.fail[shipmentID] = err
}

func (p *fakePrinter) Calls() []printCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]printCall(nil), p.calls...)
}

func newLine(id int64, upc, shipmentID, shipmentNumber string, qty int) domain.Line {
	return domain.Line{
		PickListID:     1,
		ID:             id,
		ShipmentID:     shipmentID,
		ShipmentNumber: shipmentNumber,
		UPC:            upc,
		Quantity:       qty,
	}
}

func shippedLine(id int64, upc, shipmentID, shipmentNumber string, qty int) domain.Line {
	l := newLine(id, upc, shipmentID, shipmentNumber, qty)
	l.MarkShipped()
	return l
}

func newTestSession(t *testing.T, lines ...domain.Line) (*Session, *fakeFulfillment, *fakePrinter) {
	t.Helper()
	f := &fakeFulfillment{}
	p := &fakePrinter{}
	s := NewSession(f, p, WithCallTimeout(time.Second))
	s.Load(1, lines)
	return s, f, p
}

func drainNotices(s *Session) []Notice {
	var out []Notice
	for {
		select {
		case n := <-s.Events():
			out = append(out, n)
		default:
			return out
		}
	}
}

func TestLoadAutoChecksCompleteLines(t *testing.T) {
	s, f, p := newTestSession(t,
		shippedLine(1, "111", "se-1", "SN-1", 2),
		shippedLine(2, "222", "se-2", "SN-2", 1),
	)

	snap := s.Snapshot()
	assert.True(t, snap.IsChecked(1))
	assert.True(t, snap.IsChecked(2))
	assert.True(t, s.AllItemsCompleted())
	assert.Empty(t, f.Calls())
	assert.Empty(t, p.Calls())
}

func TestLoadLeavesIncompleteLinesUnchecked(t *testing.T) {
	partial := newLine(2, "222", "se-2", "SN-2", 3)
	one := 1
	partial.ShippedQty = &one

	s, _, _ := newTestSession(t,
		shippedLine(1, "111", "se-1", "SN-1", 2),
		partial,
		newLine(3, "333", "se-3", "SN-3", 1),
	)

	snap := s.Snapshot()
	assert.True(t, snap.IsChecked(1))
	assert.False(t, snap.IsChecked(2))
	assert.False(t, snap.IsChecked(3))
	assert.False(t, s.AllItemsCompleted())
}

func TestAllItemsCompletedIsFalseWhenEmpty(t *testing.T) {
	s, _, _ := newTestSession(t)
	assert.False(t, s.AllItemsCompleted())
}

func TestResolveScanEmptyInputClearsMatch(t *testing.T) {
	s, f, _ := newTestSession(t, newLine(1, "111", "se-1", "SN-1", 1))

	res := s.ResolveScan(context.Background(), "111")
	require.Equal(t, OutcomePrinted, res.Outcome)
	assert.Equal(t, "111", s.Snapshot().MatchedUPC)

	res = s.ResolveScan(context.Background(), "  \r\n")
	assert.Equal(t, OutcomeCleared, res.Outcome)
	assert.Empty(t, s.Snapshot().MatchedUPC)
	assert.Len(t, f.Calls(), 1)
}

func TestResolveScanNoMatch(t *testing.T) {
	s, f, p := newTestSession(t, newLine(1, "111", "se-1", "SN-1", 1))

	res := s.ResolveScan(context.Background(), "999")

	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Empty(t, f.Calls())
	assert.Empty(t, p.Calls())
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.False(t, s.Snapshot().Checking)
}

func TestResolveScanMatchesUPCIgnoringCaseAndWhitespace(t *testing.T) {
	s, f, _ := newTestSession(t,
		newLine(1, "ABC-111", "se-1", "SN-1", 1),
		newLine(2, "ABC-1111", "se-2", "SN-2", 1),
	)

	res := s.ResolveScan(context.Background(), " abc-111\n")

	require.Equal(t, OutcomePrinted, res.Outcome)
	require.NotNil(t, res.Line)
	assert.Equal(t, int64(1), res.Line.ID)
	assert.Equal(t, []string{"se-1"}, f.Calls())
}

func TestSameUPCOnTwoShipments(t *testing.T) {
	s, f, p := newTestSession(t,
		newLine(1, "111", "S1", "SN-A", 1),
		newLine(2, "111", "S2", "SN-B", 1),
	)
	ctx := context.Background()

	first := s.ResolveScan(ctx, "111")
	require.Equal(t, OutcomePrinted, first.Outcome)
	assert.Equal(t, int64(1), first.Line.ID)
	assert.True(t, s.Snapshot().IsChecked(1))
	assert.False(t, s.Snapshot().IsChecked(2))

	second := s.ResolveScan(ctx, "111")
	require.Equal(t, OutcomePrinted, second.Outcome)
	assert.Equal(t, int64(2), second.Line.ID)

	assert.Equal(t, []string{"S1", "S2"}, f.Calls())
	assert.Equal(t, []printCall{{ModeExisting, "S1"}, {ModeExisting, "S2"}}, p.Calls())
	drainNotices(s)

	third := s.ResolveScan(ctx, "111")
	assert.Equal(t, OutcomeAlreadyComplete, third.Outcome)
	assert.Len(t, f.Calls(), 2)
	assert.Len(t, p.Calls(), 2)

	notices := drainNotices(s)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelError, notices[0].Level)
	assert.Contains(t, notices[0].Message, "already completed")
	assert.True(t, s.AllItemsCompleted())
}

func TestDuplicateShipmentNumberBlocksScanButNotGroupPrint(t *testing.T) {
	s, f, p := newTestSession(t,
		newLine(1, "111", "S1", "SN-1", 1),
		newLine(2, "222", "S2", "SN-1", 1),
		newLine(3, "333", "S3", "SN-3", 1),
	)
	ctx := context.Background()

	for _, upc := range []string{"111", "222"} {
		res := s.ResolveScan(ctx, upc)
		assert.Equal(t, OutcomeBlockedDuplicateShipment, res.Outcome, upc)
	}
	assert.Empty(t, f.Calls())
	assert.Empty(t, p.Calls())
	assert.Equal(t, "222", s.Snapshot().MatchedUPC)

	notices := drainNotices(s)
	require.Len(t, notices, 2)
	assert.Equal(t, LevelWarning, notices[0].Level)
	assert.Contains(t, notices[0].Message, "SN-1")

	ok := s.GroupPrint(ctx, "S1", []int64{1}, false)
	require.True(t, ok)
	assert.Equal(t, []string{"S1"}, f.Calls())
	assert.Equal(t, []printCall{{ModeGenerated, "S1"}}, p.Calls())

	snap := s.Snapshot()
	assert.True(t, snap.IsChecked(1))
	assert.True(t, snap.IsPrinted("S1"))
	assert.False(t, snap.IsLoading("S1"))
}

func TestUpdateLogicalFailureLeavesStateUnchanged(t *testing.T) {
	s, f, p := newTestSession(t, newLine(1, "333", "S3", "SN-3", 2))
	f.setFail("S3", errors.New("No record found with the given SHIPMENT_ID"))
	ctx := context.Background()

	res := s.ResolveScan(ctx, "333")

	assert.Equal(t, OutcomeUpdateFailed, res.Outcome)
	require.Error(t, res.Err)
	snap := s.Snapshot()
	assert.Empty(t, snap.Checked)
	assert.Empty(t, snap.Printed)
	assert.Empty(t, snap.InFlight)
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Checking)
	assert.Empty(t, p.Calls())
	assert.Nil(t, snap.Lines[0].ShippedQty)

	notices := drainNotices(s)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelError, notices[0].Level)
	assert.Contains(t, notices[0].Message, "Failed to update shipment S3")

	f.setFail("S3", nil)
	res = s.ResolveScan(ctx, "333")
	assert.Equal(t, OutcomePrinted, res.Outcome)
	assert.Equal(t, []string{"S3", "S3"}, f.Calls())
	assert.Len(t, p.Calls(), 1)
}

func TestUpdateTimeoutIsAFailure(t *testing.T) {
	f := &fakeFulfillment{block: make(chan struct{})}
	p := &fakePrinter{}
	s := NewSession(f, p, WithCallTimeout(20*time.Millisecond))
	s.Load(1, []domain.Line{newLine(1, "111", "S1", "SN-1", 1)})

	res := s.ResolveScan(context.Background(), "111")

	assert.Equal(t, OutcomeUpdateFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.False(t, s.Snapshot().Checking)
	assert.Empty(t, p.Calls())
}

func TestPrintFailureRollsBackPrintedButKeepsChecked(t *testing.T) {
	s, f, p := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))
	p.setFail("S1", errors.New("printer offline"))
	ctx := context.Background()

	res := s.ResolveScan(ctx, "111")

	assert.Equal(t, OutcomePrintFailed, res.Outcome)
	snap := s.Snapshot()
	assert.True(t, snap.IsChecked(1))
	assert.False(t, snap.IsPrinted("S1"))
	assert.Equal(t, StateIdle, snap.State)

	p.setFail("S1", nil)
	require.True(t, s.GroupPrint(ctx, "S1", []int64{1}, true))
	assert.True(t, s.Snapshot().IsPrinted("S1"))
	assert.Len(t, f.Calls(), 1, "checked lines are not updated again")
	assert.Equal(t, []printCall{{ModeExisting, "S1"}, {ModeExisting, "S1"}}, p.Calls())
}

func TestRescanAfterPrintFailureRetriesPrint(t *testing.T) {
	s, f, p := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))
	p.setFail("S1", errors.New("printer offline"))
	ctx := context.Background()

	res := s.ResolveScan(ctx, "111")
	require.Equal(t, OutcomePrintFailed, res.Outcome)
	require.True(t, s.Snapshot().Lines[0].QuantityComplete())
	drainNotices(s)

	p.setFail("S1", nil)
	res = s.ResolveScan(ctx, "111")

	assert.Equal(t, OutcomePrinted, res.Outcome)
	assert.Equal(t, int64(1), res.Line.ID)
	assert.Equal(t, []string{"S1"}, f.Calls(), "shipped lines are not updated again")
	assert.Equal(t, []printCall{{ModeExisting, "S1"}, {ModeExisting, "S1"}}, p.Calls())
	snap := s.Snapshot()
	assert.True(t, snap.IsPrinted("S1"))
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.Checking)

	notices := drainNotices(s)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelSuccess, notices[0].Level)

	res = s.ResolveScan(ctx, "111")
	assert.Equal(t, OutcomeAlreadyComplete, res.Outcome)
	assert.Len(t, f.Calls(), 1)
	assert.Len(t, p.Calls(), 2)
}

func TestRescanRetriesPrintForSecondShipmentWithSameUPC(t *testing.T) {
	s, f, p := newTestSession(t,
		newLine(1, "111", "S1", "SN-A", 1),
		newLine(2, "111", "S2", "SN-B", 1),
	)
	ctx := context.Background()

	require.Equal(t, OutcomePrinted, s.ResolveScan(ctx, "111").Outcome)
	p.setFail("S2", errors.New("paper jam"))
	require.Equal(t, OutcomePrintFailed, s.ResolveScan(ctx, "111").Outcome)

	p.setFail("S2", nil)
	res := s.ResolveScan(ctx, "111")

	assert.Equal(t, OutcomePrinted, res.Outcome)
	assert.Equal(t, "S2", res.ShipmentID)
	assert.Equal(t, []string{"S1", "S2"}, f.Calls())
	assert.Len(t, p.Calls(), 3)
	assert.True(t, s.Snapshot().IsPrinted("S2"))
}

func TestRescanOfLoadedCompleteLineDoesNotPrint(t *testing.T) {
	s, f, p := newTestSession(t, shippedLine(1, "111", "S1", "SN-1", 1))

	res := s.ResolveScan(context.Background(), "111")

	assert.Equal(t, OutcomeAlreadyComplete, res.Outcome)
	assert.Empty(t, f.Calls())
	assert.Empty(t, p.Calls())
}

func TestAlreadyPrintedShipmentSkipsPrint(t *testing.T) {
	s, f, p := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))
	ctx := context.Background()

	// A reprint with no lines selected needs no update.
	require.True(t, s.GroupPrint(ctx, "S1", nil, true))
	require.True(t, s.Snapshot().IsPrinted("S1"))
	assert.Empty(t, f.Calls())

	res := s.ResolveScan(ctx, "111")

	assert.Equal(t, OutcomePrintSkipped, res.Outcome)
	assert.Equal(t, []string{"S1"}, f.Calls())
	assert.Len(t, p.Calls(), 1)
	assert.True(t, s.Snapshot().IsChecked(1))
}

func TestRapidScansIssueOneUpdateAndOnePrint(t *testing.T) {
	f := &fakeFulfillment{block: make(chan struct{}), started: make(chan string, 4)}
	p := &fakePrinter{}
	s := NewSession(f, p, WithCallTimeout(time.Second))
	s.Load(1, []domain.Line{newLine(1, "111", "S1", "SN-1", 1)})
	ctx := context.Background()

	done := make(chan Result, 1)
	go func() { done <- s.ResolveScan(ctx, "111") }()
	<-f.started

	second := s.ResolveScan(ctx, "111")
	assert.Equal(t, OutcomeBusy, second.Outcome)
	assert.True(t, s.Snapshot().Checking)
	assert.Equal(t, StateUpdating, s.Snapshot().State)

	close(f.block)
	first := <-done

	assert.Equal(t, OutcomePrinted, first.Outcome)
	assert.Equal(t, []string{"S1"}, f.Calls())
	assert.Equal(t, []printCall{{ModeExisting, "S1"}}, p.Calls())
}

func TestScanDuringGroupPrintUpdateIsDuplicateInFlight(t *testing.T) {
	f := &fakeFulfillment{block: make(chan struct{}), started: make(chan string, 4)}
	p := &fakePrinter{}
	s := NewSession(f, p, WithCallTimeout(time.Second))
	s.Load(1, []domain.Line{newLine(1, "111", "S1", "SN-1", 1)})
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() { done <- s.GroupPrint(ctx, "S1", []int64{1}, false) }()
	<-f.started

	res := s.ResolveScan(ctx, "111")
	assert.Equal(t, OutcomeDuplicateInFlight, res.Outcome)
	assert.False(t, s.Snapshot().Checking)

	notices := drainNotices(s)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelWarning, notices[0].Level)
	assert.Equal(t, "Shipment S1 is already being processed", notices[0].Message)

	close(f.block)
	assert.True(t, <-done)
	assert.Equal(t, []string{"S1"}, f.Calls())
	assert.Equal(t, []printCall{{ModeGenerated, "S1"}}, p.Calls())
}

func TestGroupPrintIsReentrancySafePerShipment(t *testing.T) {
	f := &fakeFulfillment{}
	p := &fakePrinter{block: make(chan struct{}), started: make(chan string, 4)}
	s := NewSession(f, p, WithCallTimeout(time.Second))
	s.Load(1, []domain.Line{shippedLine(1, "111", "S1", "SN-1", 1)})
	ctx := context.Background()

	done := make(chan bool, 1)
	go func() { done <- s.GroupPrint(ctx, "S1", []int64{1}, true) }()
	<-p.started

	assert.True(t, s.Snapshot().IsLoading("S1"))
	assert.False(t, s.GroupPrint(ctx, "S1", []int64{1}, true))

	notices := drainNotices(s)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelWarning, notices[0].Level)
	assert.Equal(t, "Label for shipment S1 is already printing", notices[0].Message)

	close(p.block)
	assert.True(t, <-done)
	assert.Len(t, p.Calls(), 1)
	assert.False(t, s.Snapshot().IsLoading("S1"))
}

func TestGroupPrintClearsLoadingOnEveryPath(t *testing.T) {
	tests := []struct {
		name        string
		updateErr   error
		printErr    error
		want        bool
		wantPrinted bool
	}{
		{"success", nil, nil, true, true},
		{"update fails", errors.New("gateway down"), nil, false, false},
		{"print fails", nil, errors.New("no label"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, f, p := newTestSession(t,
				newLine(1, "111", "S1", "SN-1", 1),
				newLine(2, "222", "S1", "SN-1", 1),
			)
			f.setFail("S1", tt.updateErr)
			p.setFail("S1", tt.printErr)

			got := s.GroupPrint(context.Background(), "S1", []int64{1, 2}, false)

			assert.Equal(t, tt.want, got)
			snap := s.Snapshot()
			assert.Empty(t, snap.Loading)
			assert.Empty(t, snap.InFlight)
			assert.Equal(t, tt.wantPrinted, snap.IsPrinted("S1"))
			assert.Equal(t, tt.updateErr == nil, snap.IsChecked(1))
			if tt.updateErr != nil {
				assert.Empty(t, p.Calls())
			} else {
				assert.Len(t, p.Calls(), 1, "one print per group")
			}
		})
	}
}

func TestGroupPrintMarksShipmentSiblingsChecked(t *testing.T) {
	s, f, _ := newTestSession(t,
		newLine(1, "111", "S1", "SN-1", 1),
		newLine(2, "222", "S1", "SN-1", 2),
		newLine(3, "333", "S2", "SN-2", 1),
	)

	require.True(t, s.GroupPrint(context.Background(), "S1", []int64{1}, false))

	snap := s.Snapshot()
	assert.True(t, snap.IsChecked(1))
	assert.True(t, snap.IsChecked(2))
	assert.False(t, snap.IsChecked(3))
	assert.True(t, snap.Lines[1].QuantityComplete())
	assert.Equal(t, []string{"S1"}, f.Calls())
}

func TestFallbackOnlyReachableThroughDrift(t *testing.T) {
	s, f, p := newTestSession(t, newLine(1, "111", "S1", "SN-1", 2))

	// Simulate bookkeeping drift: checked locally without the shipped quantity.
	s.mu.Lock()
	s.checked[1] = struct{}{}
	s.mu.Unlock()

	res := s.ResolveScan(context.Background(), "111")

	assert.Equal(t, OutcomePrinted, res.Outcome)
	assert.Equal(t, int64(1), res.Line.ID)
	assert.Equal(t, []string{"S1"}, f.Calls())
	assert.Len(t, p.Calls(), 1)

	drainNotices(s)

	res = s.ResolveScan(context.Background(), "111")
	assert.Equal(t, OutcomeAlreadyComplete, res.Outcome)
	assert.Len(t, f.Calls(), 1)

	notices := drainNotices(s)
	require.Len(t, notices, 1)
	assert.Equal(t, LevelError, notices[0].Level)
	assert.Equal(t, "All items with UPC 111 are already completed", notices[0].Message)
}

func TestResolveScanStateTransitions(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	hook := func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, fmt.Sprintf("%s>%s", from, to))
	}

	tests := []struct {
		name      string
		lines     []domain.Line
		updateErr error
		want      []string
	}{
		{
			name:  "printed",
			lines: []domain.Line{newLine(1, "111", "S1", "SN-1", 1)},
			want:  []string{"idle>resolving", "resolving>updating", "updating>printing", "printing>settled", "settled>idle"},
		},
		{
			name:  "blocked",
			lines: []domain.Line{newLine(1, "111", "S1", "SN-1", 1), newLine(2, "222", "S2", "SN-1", 1)},
			want:  []string{"idle>resolving", "resolving>blocked", "blocked>idle"},
		},
		{
			name:      "update failed",
			lines:     []domain.Line{newLine(1, "111", "S1", "SN-1", 1)},
			updateErr: errors.New("boom"),
			want:      []string{"idle>resolving", "resolving>updating", "updating>error", "error>idle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mu.Lock()
			transitions = nil
			mu.Unlock()

			f := &fakeFulfillment{}
			f.setFail("S1", tt.updateErr)
			s := NewSession(f, &fakePrinter{}, WithStateHook(hook))
			s.Load(1, tt.lines)

			s.ResolveScan(context.Background(), "111")

			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, tt.want, transitions)
		})
	}
}

func TestResetDuringUpdateDiscardsLateResult(t *testing.T) {
	f := &fakeFulfillment{block: make(chan struct{}), started: make(chan string, 1)}
	p := &fakePrinter{}
	s := NewSession(f, p, WithCallTimeout(time.Second))
	s.Load(1, []domain.Line{newLine(1, "111", "S1", "SN-1", 1)})

	done := make(chan Result, 1)
	go func() { done <- s.ResolveScan(context.Background(), "111") }()
	<-f.started

	s.Reset()
	close(f.block)
	res := <-done

	assert.ErrorIs(t, res.Err, ErrSessionReset)
	snap := s.Snapshot()
	assert.Empty(t, snap.Checked)
	assert.Empty(t, snap.Printed)
	assert.False(t, snap.Checking)
	assert.Empty(t, p.Calls())
}

func TestSearchFiltering(t *testing.T) {
	s, _, _ := newTestSession(t,
		newLine(1, "ABC111", "S1", "SN-1", 1),
		newLine(2, "abc222", "S2", "SN-2", 1),
		newLine(3, "999", "S3", "SN-3", 1),
	)

	assert.Len(t, s.FilteredLines(), 3)

	s.SetSearch(" abc ")
	lines := s.FilteredLines()
	require.Len(t, lines, 2)
	assert.Equal(t, int64(1), lines[0].ID)
	assert.Equal(t, int64(2), lines[1].ID)

	s.SetSearch("222")
	assert.Len(t, s.FilteredLines(), 1)

	s.ClearSearch()
	assert.Len(t, s.FilteredLines(), 3)
	assert.Empty(t, s.Snapshot().Search)
}

func TestClearSearchKeepsSets(t *testing.T) {
	s, _, _ := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))
	require.Equal(t, OutcomePrinted, s.ResolveScan(context.Background(), "111").Outcome)

	s.ClearSearch()

	snap := s.Snapshot()
	assert.Empty(t, snap.MatchedUPC)
	assert.True(t, snap.IsChecked(1))
	assert.True(t, snap.IsPrinted("S1"))
}

func TestResetDiscardsEverything(t *testing.T) {
	s, _, _ := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))
	require.Equal(t, OutcomePrinted, s.ResolveScan(context.Background(), "111").Outcome)

	s.Reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.PickListID)
	assert.Empty(t, snap.Lines)
	assert.Empty(t, snap.Checked)
	assert.Empty(t, snap.Printed)
	assert.False(t, s.AllItemsCompleted())
}

func TestNoticesDropOldestWhenFull(t *testing.T) {
	s, _, _ := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))

	for i := 0; i < noticeBuffer+5; i++ {
		s.ResolveScan(context.Background(), fmt.Sprintf("missing-%d", i))
	}

	notices := drainNotices(s)
	require.Len(t, notices, noticeBuffer)
	assert.Contains(t, notices[0].Message, "missing-5")
	assert.Contains(t, notices[len(notices)-1].Message, fmt.Sprintf("missing-%d", noticeBuffer+4))
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _, _ := newTestSession(t, newLine(1, "111", "S1", "SN-1", 1))

	snap := s.Snapshot()
	snap.Checked[1] = true
	snap.Lines[0].UPC = "changed"

	fresh := s.Snapshot()
	assert.False(t, fresh.IsChecked(1))
	assert.Equal(t, "111", fresh.Lines[0].UPC)
}

func TestShipmentLineIDs(t *testing.T) {
	s, _, _ := newTestSession(t,
		newLine(1, "111", "S1", "SN-1", 1),
		newLine(2, "222", "S2", "SN-2", 1),
		newLine(3, "333", "S1", "SN-1", 1),
	)

	assert.Equal(t, []int64{1, 3}, s.ShipmentLineIDs("S1"))
	assert.Nil(t, s.ShipmentLineIDs("S9"))
	assert.Equal(t, int64(1), s.PickListID())
}
