// Package dispatch reconciles barcode scans with the remote "shipped" update
// and label print calls for one loaded pick list.
//
// A Session only records a line as checked, or a shipment as printed, after
// the corresponding remote call succeeded. Rapid or repeated scanner input is
// absorbed by two guards: a coarse checking flag that drops scans while one
// is being resolved, and a per-shipment single-flight set around the update
// call. The session lock is never held across a remote call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mrhamza01/prlabel/internal/domain"
	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
	"github.com/Mrhamza01/prlabel/pkg/tracing"
)

// DefaultCallTimeout bounds every remote call made by a Session
const DefaultCallTimeout = 10 * time.Second

const noticeBuffer = 32

// Print modes, as recorded in metrics and logs
const (
	ModeExisting  = "existing"
	ModeGenerated = "generated"
)

// ErrSessionReset is reported when the session was reset or reloaded while a
// remote call was outstanding. The late result is discarded.
var ErrSessionReset = errors.New("session was reset while the call was in flight")

// Option configures a Session
type Option func(*Session)

// WithCallTimeout overrides DefaultCallTimeout
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithLogger sets the session logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records scan outcomes and gateway calls
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTracer sets the tracer used for scan and print spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Session) { s.tracer = t }
}

// WithStateHook registers fn to observe every state transition. fn runs with
// the session lock held and must not call back into the Session.
func WithStateHook(fn func(from, to State)) Option {
	return func(s *Session) { s.onState = fn }
}

// Session holds the scan state of one loaded pick list
type Session struct {
	fulfillment FulfillmentGateway
	printer     PrintGateway
	logger      *logging.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	callTimeout time.Duration
	onState     func(from, to State)

	mu         sync.Mutex
	gen        uint64
	pickListID int64
	lines      []domain.Line
	search     string
	matchedUPC string
	checked    map[int64]struct{}
	printed    map[string]struct{}
	shipped    map[string]struct{}
	inFlight   map[string]struct{}
	loading    map[string]struct{}
	checking   bool
	state      State

	notices chan Notice
}

// NewSession creates an empty session. Call Load before scanning.
func NewSession(fulfillment FulfillmentGateway, printer PrintGateway, opts ...Option) *Session {
	s := &Session{
		fulfillment: fulfillment,
		printer:     printer,
		logger:      logging.NewNop(),
		tracer:      otel.Tracer("github.com/Mrhamza01/prlabel/internal/dispatch"),
		callTimeout: DefaultCallTimeout,
		checked:     make(map[int64]struct{}),
		printed:     make(map[string]struct{}),
		shipped:     make(map[string]struct{}),
		inFlight:    make(map[string]struct{}),
		loading:     make(map[string]struct{}),
		state:       StateIdle,
		notices:     make(chan Notice, noticeBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("dispatch")
	return s
}

// Load replaces the session contents with a freshly fetched pick list. Lines
// that are already quantity-complete start out checked.
func (s *Session) Load(pickListID int64, lines []domain.Line) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.pickListID = pickListID
	s.lines = make([]domain.Line, len(lines))
	for i, l := range lines {
		s.lines[i] = cloneLine(l)
		if l.QuantityComplete() {
			s.checked[l.ID] = struct{}{}
		}
	}

	s.logger.Info("Pick list loaded",
		"pickListId", pickListID,
		"lines", len(lines),
		"autoChecked", len(s.checked),
	)
}

// Reset discards everything, as when the operator leaves the pick list.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.gen++
	s.pickListID = 0
	s.lines = nil
	s.search = ""
	s.matchedUPC = ""
	s.checked = make(map[int64]struct{})
	s.printed = make(map[string]struct{})
	s.shipped = make(map[string]struct{})
	s.inFlight = make(map[string]struct{})
	s.loading = make(map[string]struct{})
	s.checking = false
	s.state = StateIdle
}

// ResolveScan resolves one raw scanner string to a line, marks its shipment
// shipped and prints the label the first time the shipment is seen.
func (s *Session) ResolveScan(ctx context.Context, raw string) Result {
	upc := strings.TrimSpace(raw)

	ctx, span := s.tracer.Start(withCorrelationID(ctx), "dispatch.resolve_scan",
		trace.WithAttributes(attribute.String("dispatch.upc", upc)))
	defer span.End()

	res := s.resolve(ctx, upc)

	span.SetAttributes(attribute.String("dispatch.outcome", res.Outcome.String()))
	if res.ShipmentID != "" {
		span.SetAttributes(tracing.ShipmentAttributes(res.ShipmentID)...)
	}
	if res.Err != nil {
		span.RecordError(res.Err)
	}

	lineID := ""
	if res.Line != nil {
		lineID = strconv.FormatInt(res.Line.ID, 10)
	}
	s.metrics.RecordScan(res.Outcome.String())
	s.logger.ScanOutcome(ctx, upc, res.Outcome.String(), lineID, res.ShipmentID)
	return res
}

func (s *Session) resolve(ctx context.Context, upc string) Result {
	s.mu.Lock()
	if upc == "" {
		s.matchedUPC = ""
		s.mu.Unlock()
		return Result{Outcome: OutcomeCleared}
	}
	if s.checking {
		s.mu.Unlock()
		return Result{Outcome: OutcomeBusy, UPC: upc}
	}

	s.checking = true
	gen := s.gen
	s.setStateLocked(StateResolving)

	res, next := s.selectLocked(upc)
	switch next {
	case stepNone:
		s.checking = false
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		return res
	case stepPrint:
		s.printed[res.ShipmentID] = struct{}{}
		s.setStateLocked(StatePrinting)
		s.mu.Unlock()
		s.logger.Info("Retrying label print for shipped shipment", "shipmentId", res.ShipmentID)
		return s.finishPrint(ctx, gen, res)
	}

	shipmentID := res.ShipmentID
	s.inFlight[shipmentID] = struct{}{}
	s.setStateLocked(StateUpdating)
	s.mu.Unlock()

	err := s.update(ctx, shipmentID)

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		res.Outcome = OutcomeCleared
		res.Err = ErrSessionReset
		return res
	}
	delete(s.inFlight, shipmentID)

	if err != nil {
		s.setStateLocked(StateError)
		s.setStateLocked(StateIdle)
		s.checking = false
		s.notifyLocked(LevelError, "Failed to update shipment %s: %v", shipmentID, err)
		s.mu.Unlock()
		res.Outcome = OutcomeUpdateFailed
		res.Err = err
		return res
	}

	s.markShippedLocked(shipmentID, []int64{res.Line.ID})

	if _, done := s.printed[shipmentID]; done {
		s.setStateLocked(StateSettled)
		s.setStateLocked(StateIdle)
		s.checking = false
		s.notifyLocked(LevelInfo, "Shipment %s already printed, label skipped", shipmentID)
		s.mu.Unlock()
		res.Outcome = OutcomePrintSkipped
		return res
	}
	s.printed[shipmentID] = struct{}{}
	s.setStateLocked(StatePrinting)
	s.mu.Unlock()

	return s.finishPrint(ctx, gen, res)
}

// finishPrint prints the label of res.ShipmentID, already reserved in the
// printed set, and settles the scan.
func (s *Session) finishPrint(ctx context.Context, gen uint64, res Result) Result {
	shipmentID := res.ShipmentID
	ok := s.groupPrint(ctx, gen, shipmentID, []int64{res.Line.ID}, true)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		res.Outcome = OutcomeCleared
		res.Err = ErrSessionReset
		return res
	}
	if ok {
		res.Outcome = OutcomePrinted
	} else {
		delete(s.printed, shipmentID)
		res.Outcome = OutcomePrintFailed
	}
	s.setStateLocked(StateSettled)
	s.setStateLocked(StateIdle)
	s.checking = false
	return res
}

// scanStep is the remote work a selected scan still needs
type scanStep int

const (
	stepNone scanStep = iota
	stepUpdate
	stepPrint
)

// selectLocked runs the local resolution steps and reports which remote
// calls the scan still needs.
func (s *Session) selectLocked(upc string) (Result, scanStep) {
	var matches []int
	for i := range s.lines {
		if strings.EqualFold(s.lines[i].UPC, upc) {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		s.matchedUPC = ""
		s.notifyLocked(LevelWarning, "No item found with UPC %s", upc)
		return Result{Outcome: OutcomeNoMatch, UPC: upc}, stepNone
	}

	idx := -1
	for _, i := range matches {
		if !s.isCheckedLocked(s.lines[i].ID) {
			idx = i
			break
		}
	}
	if idx < 0 {
		for _, i := range matches {
			if s.needsPrintLocked(s.lines[i].ShipmentID) {
				line := cloneLine(s.lines[i])
				s.matchedUPC = line.UPC
				return Result{UPC: upc, Line: &line, ShipmentID: line.ShipmentID}, stepPrint
			}
		}
		first := s.lines[matches[0]]
		if first.QuantityComplete() {
			s.matchedUPC = upc
			s.notifyLocked(LevelError, "All items with UPC %s are already completed", upc)
			line := cloneLine(first)
			return Result{Outcome: OutcomeAlreadyComplete, UPC: upc, Line: &line, ShipmentID: first.ShipmentID}, stepNone
		}
		idx = matches[0]
		s.logger.Warn("Every match is checked but the first is not quantity-complete, resolving it again",
			"upc", upc,
			"lineId", first.ID,
			"shipmentId", first.ShipmentID,
		)
	}

	line := cloneLine(s.lines[idx])
	res := Result{UPC: upc, Line: &line, ShipmentID: line.ShipmentID}

	if s.shipmentNumberCountLocked(line.ShipmentNumber) > 1 {
		s.matchedUPC = line.UPC
		s.setStateLocked(StateBlocked)
		s.notifyLocked(LevelWarning,
			"Cannot scan/update: multiple items found with shipment number %s. Printing is still allowed.",
			line.ShipmentNumber)
		res.Outcome = OutcomeBlockedDuplicateShipment
		return res, stepNone
	}

	if line.QuantityComplete() && s.isCheckedLocked(line.ID) {
		s.matchedUPC = line.UPC
		if s.needsPrintLocked(line.ShipmentID) {
			return res, stepPrint
		}
		s.notifyLocked(LevelWarning, "Line %d of shipment %s is already completed", line.ID, line.ShipmentID)
		res.Outcome = OutcomeAlreadyComplete
		return res, stepNone
	}

	if _, busy := s.inFlight[line.ShipmentID]; busy {
		s.notifyLocked(LevelWarning, "Shipment %s is already being processed", line.ShipmentID)
		res.Outcome = OutcomeDuplicateInFlight
		return res, stepNone
	}

	s.matchedUPC = line.UPC
	return res, stepUpdate
}

// needsPrintLocked reports whether the shipment was shipped in this session
// but its label has not printed yet
func (s *Session) needsPrintLocked(shipmentID string) bool {
	_, shipped := s.shipped[shipmentID]
	_, printed := s.printed[shipmentID]
	return shipped && !printed
}

// GroupPrint prints one label for a shipment on explicit operator request.
// Lines not yet checked are first marked shipped remotely. It returns true
// only if every remote call it made succeeded.
func (s *Session) GroupPrint(ctx context.Context, shipmentID string, lineIDs []int64, labelAlreadyGenerated bool) bool {
	ids := make([]string, len(lineIDs))
	for i, id := range lineIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	ctx, span := s.tracer.Start(withCorrelationID(ctx), "dispatch.group_print",
		trace.WithAttributes(tracing.ShipmentAttributes(shipmentID, ids...)...))
	defer span.End()

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	ok := s.groupPrint(ctx, gen, shipmentID, lineIDs, labelAlreadyGenerated)
	span.SetAttributes(attribute.Bool("dispatch.printed", ok))
	return ok
}

func (s *Session) groupPrint(ctx context.Context, gen uint64, shipmentID string, lineIDs []int64, labelAlreadyGenerated bool) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	if _, busy := s.loading[shipmentID]; busy {
		s.notifyLocked(LevelWarning, "Label for shipment %s is already printing", shipmentID)
		s.mu.Unlock()
		return false
	}
	needUpdate := !s.allCheckedLocked(lineIDs)
	if needUpdate {
		if _, busy := s.inFlight[shipmentID]; busy {
			s.notifyLocked(LevelWarning, "Shipment %s is already being updated", shipmentID)
			s.mu.Unlock()
			return false
		}
		s.inFlight[shipmentID] = struct{}{}
	}
	s.loading[shipmentID] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.gen == gen {
			delete(s.loading, shipmentID)
		}
		s.mu.Unlock()
	}()

	if needUpdate {
		err := s.update(ctx, shipmentID)

		s.mu.Lock()
		if s.gen == gen {
			delete(s.inFlight, shipmentID)
			if err == nil {
				s.markShippedLocked(shipmentID, lineIDs)
			}
		}
		if err != nil {
			s.notifyLocked(LevelError, "Failed to update shipment %s: %v", shipmentID, err)
		}
		s.mu.Unlock()

		if err != nil {
			return false
		}
	}

	err := s.print(ctx, shipmentID, labelAlreadyGenerated)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.notifyLocked(LevelError, "Print job failed for shipment %s: %v", shipmentID, err)
		return false
	}
	if s.gen == gen {
		s.printed[shipmentID] = struct{}{}
	}
	s.notifyLocked(LevelSuccess, "Label printed for shipment %s", shipmentID)
	return true
}

func (s *Session) update(ctx context.Context, shipmentID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	start := time.Now()
	err := s.fulfillment.UpdateShipment(ctx, shipmentID)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("update timed out after %s: %w", s.callTimeout, err)
	}
	duration := time.Since(start)

	s.metrics.RecordGatewayCall("update_shipment", err == nil, duration)
	s.logger.GatewayCall(ctx, "update_shipment", shipmentID, duration, err)
	return err
}

func (s *Session) print(ctx context.Context, shipmentID string, labelAlreadyGenerated bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	op, mode := "print_label", ModeExisting
	call := s.printer.PrintLabel
	if !labelAlreadyGenerated {
		op, mode = "generate_and_print", ModeGenerated
		call = s.printer.GenerateAndPrintLabel
	}

	start := time.Now()
	err := call(ctx, shipmentID)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("print timed out after %s: %w", s.callTimeout, err)
	}
	duration := time.Since(start)

	s.metrics.RecordGatewayCall(op, err == nil, duration)
	s.metrics.RecordPrintJob(mode, err == nil)
	s.logger.GatewayCall(ctx, op, shipmentID, duration, err)
	return err
}

// markShippedLocked mirrors a confirmed shipment update: the given lines and
// every loaded line of the same shipment become checked and quantity-complete.
func (s *Session) markShippedLocked(shipmentID string, lineIDs []int64) {
	wanted := make(map[int64]bool, len(lineIDs))
	for _, id := range lineIDs {
		wanted[id] = true
	}
	s.shipped[shipmentID] = struct{}{}
	for i := range s.lines {
		l := &s.lines[i]
		if l.ShipmentID == shipmentID || wanted[l.ID] {
			s.checked[l.ID] = struct{}{}
			l.MarkShipped()
		}
	}
}

func (s *Session) isCheckedLocked(lineID int64) bool {
	_, ok := s.checked[lineID]
	return ok
}

func (s *Session) allCheckedLocked(lineIDs []int64) bool {
	for _, id := range lineIDs {
		if !s.isCheckedLocked(id) {
			return false
		}
	}
	return true
}

func (s *Session) shipmentNumberCountLocked(number string) int {
	n := 0
	for _, l := range s.lines {
		if l.ShipmentNumber == number {
			n++
		}
	}
	return n
}

func (s *Session) setStateLocked(to State) {
	from := s.state
	s.state = to
	if s.onState != nil {
		s.onState(from, to)
	}
}

// notifyLocked queues a notice, dropping the oldest one when the buffer is full
func (s *Session) notifyLocked(level Level, format string, args ...any) {
	n := Notice{Level: level, Message: fmt.Sprintf(format, args...), At: time.Now()}
	for {
		select {
		case s.notices <- n:
			return
		default:
		}
		select {
		case <-s.notices:
		default:
		}
	}
}

// Events returns the operator notice stream
func (s *Session) Events() <-chan Notice {
	return s.notices
}

// SetSearch updates the live filter text
func (s *Session) SetSearch(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = strings.TrimSpace(text)
}

// ClearSearch resets the filter text and matched UPC. Checked and printed
// state is kept.
func (s *Session) ClearSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = ""
	s.matchedUPC = ""
}

// FilteredLines returns the lines whose UPC contains the search text,
// ignoring case. An empty search returns every line.
func (s *Session) FilteredLines() []domain.Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(s.search)
	out := make([]domain.Line, 0, len(s.lines))
	for _, l := range s.lines {
		if needle == "" || strings.Contains(strings.ToLower(l.UPC), needle) {
			out = append(out, cloneLine(l))
		}
	}
	return out
}

// AllItemsCompleted reports whether every loaded line is quantity-complete.
// It is false when nothing is loaded.
func (s *Session) AllItemsCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return false
	}
	for _, l := range s.lines {
		if !l.QuantityComplete() {
			return false
		}
	}
	return true
}

// ShipmentLineIDs returns the loaded line IDs of a shipment in list order
func (s *Session) ShipmentLineIDs(shipmentID string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []int64
	for _, l := range s.lines {
		if l.ShipmentID == shipmentID {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// PickListID returns the loaded pick list, or zero
func (s *Session) PickListID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pickListID
}

// Snapshot copies the current state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		PickListID: s.pickListID,
		State:      s.state,
		Checking:   s.checking,
		Search:     s.search,
		MatchedUPC: s.matchedUPC,
		Lines:      make([]domain.Line, len(s.lines)),
		Checked:    make(map[int64]bool, len(s.checked)),
		Printed:    make(map[string]bool, len(s.printed)),
		InFlight:   sortedKeys(s.inFlight),
		Loading:    sortedKeys(s.loading),
	}
	for i, l := range s.lines {
		snap.Lines[i] = cloneLine(l)
	}
	for id := range s.checked {
		snap.Checked[id] = true
	}
	for id := range s.printed {
		snap.Printed[id] = true
	}
	return snap
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func cloneLine(l domain.Line) domain.Line {
	if l.ShippedQty != nil {
		v := *l.ShippedQty
		l.ShippedQty = &v
	}
	if l.PickedQty != nil {
		v := *l.PickedQty
		l.PickedQty = &v
	}
	if l.StoreID != nil {
		v := *l.StoreID
		l.StoreID = &v
	}
	return l
}

// withCorrelationID tags ctx with a fresh correlation ID unless one is set,
// so the update and print calls of one scan share it.
func withCorrelationID(ctx context.Context) context.Context {
	if _, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		return ctx
	}
	return logging.ContextWithCorrelationID(ctx, uuid.NewString())
}
