package configurator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/purchase-configurator/internal/orderline"
	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/metrics"
	"github.com/angelmondragon/purchase-configurator/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubVariantEndpoint struct {
	resp  SingleVariantResponse
	err   error
	calls int
}

func (s *stubVariantEndpoint) SingleProductVariant(ctx context.Context, templateID int64, reqCtx RequestContext) (SingleVariantResponse, error) {
	s.calls++
	return s.resp, s.err
}

type stubConfigure struct {
	markup string
	err    error
	reqs   []ConfigureRequest
}

func (s *stubConfigure) Configure(ctx context.Context, req ConfigureRequest) (string, error) {
	s.reqs = append(s.reqs, req)
	return s.markup, s.err
}

type stubNames struct {
	err error
}

func (s *stubNames) NameGet(ctx context.Context, ids []int64, reqCtx RequestContext) ([]types.Many2One, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]types.Many2One, 0, len(ids))
	for _, id := range ids {
		out = append(out, types.Many2One{ID: id, Name: fmt.Sprintf("Product %d", id)})
	}
	return out, nil
}

type stubCreator struct {
	mu    sync.Mutex
	id    int64
	err   error
	calls int
}

func (s *stubCreator) CreateProductVariant(ctx context.Context, templateID int64, combination []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.id, s.err
}

type stubForm struct {
	productID  int64
	variants   []int64
	noVariants []NoVariantValue
	qty        decimal.Decimal
}

func (f *stubForm) ProductID() int64       { return f.productID }
func (f *stubForm) SetProductID(id int64)  { f.productID = id }
func (f *stubForm) VariantValues() []int64 { return append([]int64(nil), f.variants...) }
func (f *stubForm) NoVariantValues() []NoVariantValue {
	return append([]NoVariantValue(nil), f.noVariants...)
}
func (f *stubForm) Quantity() decimal.Decimal { return f.qty }
func (f *stubForm) Render() (string, error) {
	return fmt.Sprintf(`<form data-product-id="%d"></form>`, f.productID), nil
}

type stubExtractor struct {
	form *stubForm
	err  error
}

func (s *stubExtractor) Extract(markup string) (ConfigurationForm, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.form, nil
}

// chanModal is driven by the test through its buffered event channel.
type chanModal struct {
	opts    ModalOptions
	events  chan ModalEvent
	result  ConfiguratorResult
	err     error
	gate    chan struct{}
	entered chan struct{}
	openErr error
}

func (m *chanModal) Element() string                { return "modal-" + m.opts.SessionID }
func (m *chanModal) Events() <-chan ModalEvent      { return m.events }
func (m *chanModal) Open(ctx context.Context) error { return m.openErr }

func (m *chanModal) SelectedProducts(ctx context.Context) (ConfiguratorResult, error) {
	if m.entered != nil {
		close(m.entered)
	}
	if m.gate != nil {
		<-m.gate
	}
	return m.result, m.err
}

func (m *chanModal) send(signals ...ModalSignal) {
	for _, sig := range signals {
		m.events <- ModalEvent{Signal: sig}
	}
}

type modalFactory struct {
	mu      sync.Mutex
	next    *chanModal
	created []*chanModal
}

func (f *modalFactory) NewModal(ctx context.Context, opts ModalOptions) (Modal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.next
	if m == nil {
		m = &chanModal{}
	}
	f.next = nil
	m.opts = opts
	if m.events == nil {
		m.events = make(chan ModalEvent, 8)
	}
	f.created = append(f.created, m)
	return m, nil
}

func (f *modalFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

// trace records focus and yield calls in order.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (t *trace) add(step string) {
	t.mu.Lock()
	t.steps = append(t.steps, step)
	t.mu.Unlock()
}

func (t *trace) all() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.steps...)
}

func (t *trace) Activate(element string)   { t.add("activate:" + element) }
func (t *trace) Deactivate(element string) { t.add("deactivate:" + element) }
func (t *trace) yield()                    { t.add("yield") }

type gridRecorder struct {
	fetchErr error
	fetched  []GridRequest
	opened   []GridRequest
}

func (g *gridRecorder) Fetch(ctx context.Context, req GridRequest) (json.RawMessage, error) {
	g.fetched = append(g.fetched, req)
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return json.RawMessage(`{"header":[],"matrix":[]}`), nil
}

func (g *gridRecorder) Open(ctx context.Context, req GridRequest, grid json.RawMessage) error {
	g.opened = append(g.opened, req)
	return nil
}

// expiringLocker hands out locks whose refresh fails once lost is set, as when a
// store TTL ran out and another session claimed the line.
type expiringLocker struct {
	mu       sync.Mutex
	lost     bool
	refresh  int
	released int
}

func (l *expiringLocker) Lock(ctx context.Context, orderID, lineID int64) (LineLock, error) {
	return &expiringLock{owner: l}, nil
}

func (l *expiringLocker) expire() {
	l.mu.Lock()
	l.lost = true
	l.mu.Unlock()
}

func (l *expiringLocker) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refresh, l.released
}

type expiringLock struct {
	owner *expiringLocker
}

func (l *expiringLock) Refresh(ctx context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	l.owner.refresh++
	if l.owner.lost {
		return pkgerrors.New(pkgerrors.CodeConflict, "line lock expired or taken over")
	}
	return nil
}

func (l *expiringLock) Release(ctx context.Context) error {
	l.owner.mu.Lock()
	l.owner.released++
	l.owner.mu.Unlock()
	return nil
}

type reporterRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *reporterRecorder) Report(ctx context.Context, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

type countingBase struct {
	*BaseEditor
	productUpdates int
}

func (b *countingBase) OnProductUpdate(ctx context.Context, order OrderRecord, lineID int64) error {
	b.productUpdates++
	return nil
}

type harness struct {
	order      *orderline.Order
	endpoint   *stubVariantEndpoint
	configure  *stubConfigure
	names      *stubNames
	creator    *stubCreator
	extractor  *stubExtractor
	modals     *modalFactory
	trace      *trace
	grid       *gridRecorder
	reporter   *reporterRecorder
	base       *countingBase
	reconciler *Reconciler
	bridge     *GridBridge
	controller *Controller
	editor     *Configurable
	registry   *prometheus.Registry
}

func newHarness(t *testing.T, tweaks ...func(*ControllerParams)) *harness {
	t.Helper()

	h := &harness{
		order:     orderline.NewOrder(1, 7),
		endpoint:  &stubVariantEndpoint{},
		configure: &stubConfigure{markup: "<form></form>"},
		names:     &stubNames{},
		creator:   &stubCreator{id: 500},
		extractor: &stubExtractor{form: &stubForm{productID: 100, variants: []int64{11, 12}, qty: decimal.NewFromInt(1)}},
		modals:    &modalFactory{},
		trace:     &trace{},
		grid:      &gridRecorder{},
		reporter:  &reporterRecorder{},
		registry:  prometheus.NewRegistry(),
	}
	m := metrics.NewConfiguratorMetrics(h.registry)

	var err error
	h.reconciler, err = NewReconciler(h.names, nil, m)
	require.NoError(t, err)
	h.bridge, err = NewGridBridge(h.grid, h.reconciler, nil, m)
	require.NoError(t, err)
	selector, err := NewVariantSelector(h.creator)
	require.NoError(t, err)
	params := ControllerParams{
		Configure:  h.configure,
		Extractor:  h.extractor,
		Selector:   selector,
		Modals:     h.modals,
		Focus:      h.trace,
		Reconciler: h.reconciler,
		Grid:       h.bridge,
		Reporter:   h.reporter,
		Metrics:    m,
		Yield:      h.trace.yield,
	}
	for _, tweak := range tweaks {
		tweak(&params)
	}
	h.controller, err = NewController(params)
	require.NoError(t, err)
	resolver, err := NewResolver(h.endpoint, true, m)
	require.NoError(t, err)
	h.base = &countingBase{BaseEditor: NewBaseEditor(h.bridge)}
	h.editor, err = NewConfigurable(h.base, resolver, h.controller, h.bridge, h.reconciler, nil)
	require.NoError(t, err)
	return h
}

// templateLine appends a configurable line that was just given template 10.
func (h *harness) templateLine(placeholder bool) orderline.Line {
	return h.order.AppendLine(orderline.Line{
		ProductTemplate: types.Ref(10),
		IsConfigurable:  true,
		ConfigMode:      enums.ConfigModeConfigurator,
		Placeholder:     placeholder,
	})
}

func (h *harness) lastModal(t *testing.T) *chanModal {
	t.Helper()
	h.modals.mu.Lock()
	defer h.modals.mu.Unlock()
	require.NotEmpty(t, h.modals.created)
	return h.modals.created[len(h.modals.created)-1]
}

func selected(productID, templateID int64, qty int64) SelectedProduct {
	return SelectedProduct{
		ProductID:         productID,
		ProductTemplateID: templateID,
		Quantity:          decimal.NewFromInt(qty),
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	require.NotNil(t, s)
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session %s did not close", s.ID())
	}
}
