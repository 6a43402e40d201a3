package configurator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/angelmondragon/purchase-configurator/pkg/enums"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"github.com/angelmondragon/purchase-configurator/pkg/metrics"
	"github.com/google/uuid"
)

const (
	outcomeConfirmed = "confirmed"
	outcomeCancelled = "cancelled"
	outcomeAborted   = "aborted"
	outcomeFailed    = "failed"
)

// ControllerParams wires the dialog controller.
type ControllerParams struct {
	Configure  ConfigureEndpoint
	Extractor  MarkupExtractor
	Selector   ProductSelector
	Modals     ModalFactory
	Focus      FocusTrap
	Locker     LineLocker
	Reconciler *Reconciler
	Grid       *GridBridge
	Reporter   ErrorReporter
	Logger     *logger.Logger
	Metrics    *metrics.ConfiguratorMetrics
	Labels     Labels
	// IdleTTL aborts sessions that receive no signal for that long. Zero disables it.
	IdleTTL time.Duration
	// Yield gives other goroutines one turn before the focus trap is released.
	Yield func()
}

// Controller opens configurator dialogs and drives each one through its session FSM.
type Controller struct {
	configure  ConfigureEndpoint
	extractor  MarkupExtractor
	selector   ProductSelector
	modals     ModalFactory
	focus      FocusTrap
	locker     LineLocker
	reconciler *Reconciler
	grid       *GridBridge
	reporter   ErrorReporter
	logg       *logger.Logger
	metrics    *metrics.ConfiguratorMetrics
	labels     Labels
	idleTTL    time.Duration
	yield      func()

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewController(p ControllerParams) (*Controller, error) {
	switch {
	case p.Configure == nil:
		return nil, fmt.Errorf("configure endpoint required")
	case p.Extractor == nil:
		return nil, fmt.Errorf("markup extractor required")
	case p.Selector == nil:
		return nil, fmt.Errorf("product selector required")
	case p.Modals == nil:
		return nil, fmt.Errorf("modal factory required")
	case p.Focus == nil:
		return nil, fmt.Errorf("focus trap required")
	case p.Reconciler == nil:
		return nil, fmt.Errorf("reconciler required")
	case p.Grid == nil:
		return nil, fmt.Errorf("grid bridge required")
	}
	if p.Locker == nil {
		p.Locker = NewLocalLocker()
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Reporter == nil {
		p.Reporter = NewLogReporter(p.Logger)
	}
	if p.Yield == nil {
		p.Yield = runtime.Gosched
	}
	return &Controller{
		configure:  p.Configure,
		extractor:  p.Extractor,
		selector:   p.Selector,
		modals:     p.Modals,
		focus:      p.Focus,
		locker:     p.Locker,
		reconciler: p.Reconciler,
		grid:       p.Grid,
		reporter:   p.Reporter,
		logg:       p.Logger,
		metrics:    p.Metrics,
		labels:     p.Labels.withDefaults(),
		idleTTL:    p.IdleTTL,
		yield:      p.Yield,
		sessions:   map[string]*Session{},
	}, nil
}

// OpenConfigurator renders the configuration form for the line and shows the dialog.
// Edit requests on matrix lines go to the grid instead and return a nil session.
func (c *Controller) OpenConfigurator(ctx context.Context, order OrderRecord, lineID int64, mode enums.ConfiguratorMode) (*Session, error) {
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown configurator mode %q", mode))
	}
	line, err := order.Line(lineID)
	if err != nil {
		return nil, err
	}
	if mode == enums.ConfiguratorModeEdit && line.ConfigMode == enums.ConfigModeMatrix {
		return nil, c.grid.OpenGrid(ctx, order, lineID, mode)
	}
	if !line.ProductTemplate.IsSet() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product template is required to configure a line")
	}

	lock, err := c.locker.Lock(ctx, order.ID(), lineID)
	if err != nil {
		return nil, err
	}
	opened := false
	defer func() {
		if !opened {
			if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
				c.logg.Error(ctx, "release line lock", relErr)
			}
		}
	}()

	reqCtx := RequestContextFrom(ctx)
	templateID := line.ProductTemplate.ID
	markup, err := c.configure.Configure(ctx, ConfigureRequest{
		ProductTemplateID: templateID,
		Quantity:          quantityOrDefault(line.ProductQty),
		PricelistID:       order.PricelistID(),
		VariantValueIDs:   append([]int64{}, line.VariantAttributeValueIDs...),
		NoVariantValueIDs: append([]int64{}, line.NoVariantAttributeValueIDs...),
		Context:           reqCtx,
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render configuration form")
	}

	form, err := c.extractor.Extract(markup)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse configuration form").
			WithDetails(map[string]any{"step": "extract"})
	}
	productID, err := c.selector.SelectOrCreate(ctx, SelectRequest{
		CandidateID: form.ProductID(),
		TemplateID:  templateID,
		Combination: form.VariantValues(),
	})
	if err != nil {
		return nil, err
	}
	form.SetProductID(productID)
	rendered, err := form.Render()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render configuration form")
	}

	root := RootProduct{
		ProductID:                productID,
		ProductTemplateID:        templateID,
		Quantity:                 quantityOrDefault(form.Quantity()),
		VariantValues:            form.VariantValues(),
		CustomAttributeValues:    append(line.CustomAttributeValues[:0:0], line.CustomAttributeValues...),
		NoVariantAttributeValues: form.NoVariantValues(),
	}

	sessionID := uuid.NewString()
	modal, err := c.modals.NewModal(ctx, ModalOptions{
		SessionID:        sessionID,
		OrderID:          order.ID(),
		LineID:           lineID,
		RootProduct:      root,
		PricelistID:      order.PricelistID(),
		OKButtonText:     c.labels.Confirm,
		CancelButtonText: c.labels.Back,
		Title:            c.labels.Title,
		Context:          reqCtx,
		Mode:             mode,
		Markup:           rendered,
	})
	if err != nil {
		return nil, err
	}

	s := c.newSession(ctx, sessionID, order, lineID, mode, root, modal, lock, reqCtx)
	// Events are buffered by the modal, so subscribing before Open is enough to catch
	// anything it emits while opening.
	events := modal.Events()
	if err := modal.Open(ctx); err != nil {
		s.cancel()
		c.focus.Deactivate(modal.Element())
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open configurator dialog")
	}
	opened = true

	c.track(s)
	c.metrics.SessionOpened()
	c.logg.Info(s.logCtx, fmt.Sprintf("configurator opened in %s mode", mode))
	go c.run(s, events)
	return s, nil
}

// Guard runs fn while holding the line lock, so direct edits cannot interleave with a
// dialog open on the same line. It fails with a conflict error, without calling fn,
// when the line is held.
func (c *Controller) Guard(ctx context.Context, order OrderRecord, lineID int64, fn func() error) error {
	lock, err := c.locker.Lock(ctx, order.ID(), lineID)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			c.logg.Error(ctx, "release line lock", relErr)
		}
	}()
	return fn()
}

// Session looks up an open session.
func (c *Controller) Session(id string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[id]
	return s, ok
}

// Shutdown aborts every open session and waits for each to finish its close branch.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	open := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		open = append(open, s)
	}
	c.mu.Unlock()

	for _, s := range open {
		s.Abort()
	}
	for _, s := range open {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *Controller) track(s *Session) {
	c.mu.Lock()
	c.sessions[s.id] = s
	c.mu.Unlock()
}

func (c *Controller) untrack(s *Session) {
	c.mu.Lock()
	delete(c.sessions, s.id)
	c.mu.Unlock()
}

func (c *Controller) run(s *Session, events <-chan ModalEvent) {
	defer close(s.done)
	defer c.untrack(s)

	var idle <-chan time.Time
	var timer *time.Timer
	if c.idleTTL > 0 {
		timer = time.NewTimer(c.idleTTL)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				c.onClosed(s)
				return
			}
			if timer != nil {
				timer.Reset(c.idleTTL)
			}
			if !c.refreshLock(s) {
				c.onClosed(s)
				return
			}
			switch ev.Signal {
			case SignalOpened:
				c.onOpened(s)
			case SignalConfirm:
				c.onConfirm(s)
			case SignalClosed:
				c.onClosed(s)
				return
			default:
				c.logg.Warn(s.logCtx, fmt.Sprintf("ignoring unknown dialog signal %q", ev.Signal))
			}
		case <-idle:
			c.logg.Warn(s.logCtx, "configurator session idle, aborting")
			idle = nil
			s.Abort()
		case <-s.teardown.Done():
			c.onClosed(s)
			return
		}
	}
}

func (c *Controller) onOpened(s *Session) {
	s.mu.Lock()
	if s.state != enums.DialogStateIdle {
		state := s.state
		s.mu.Unlock()
		c.logg.Warn(s.logCtx, fmt.Sprintf("ignoring opened signal in state %s", state))
		return
	}
	s.state = enums.DialogStateAwaitingSelection
	s.mu.Unlock()
	c.focus.Activate(s.modal.Element())
}

// refreshLock keeps the line lock alive while the dialog is in use. It reports false
// once the lock was lost to someone else; a failing store only gets logged.
func (c *Controller) refreshLock(s *Session) bool {
	err := s.lock.Refresh(s.logCtx)
	if err == nil {
		return true
	}
	if !pkgerrors.Is(err, pkgerrors.CodeConflict) {
		c.logg.Warn(s.logCtx, fmt.Sprintf("line lock refresh failed: %v", err))
		return true
	}
	s.mu.Lock()
	s.lockLost = true
	s.mu.Unlock()
	c.fail(s, err)
	return false
}

type confirmOutcome struct {
	confirmation Confirmation
	err          error
}

func (c *Controller) onConfirm(s *Session) {
	if !s.markConfirmed() {
		c.logg.Warn(s.logCtx, "ignoring repeated confirm signal")
		return
	}

	// Remote work runs detached from teardown; an abort only stops us from waiting.
	detached := context.WithoutCancel(s.logCtx)
	results := make(chan confirmOutcome, 1)
	go func() {
		selected, err := s.modal.SelectedProducts(detached)
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "materialize selected products")
			}
			results <- confirmOutcome{err: err}
			return
		}
		confirmation, err := c.reconciler.Prepare(detached, selected, s.reqCtx)
		results <- confirmOutcome{confirmation: confirmation, err: err}
	}()

	var out confirmOutcome
	select {
	case out = <-results:
	case <-s.teardown.Done():
		c.discard(s)
		return
	}
	if s.tornDown() {
		c.discard(s)
		return
	}
	if out.err != nil {
		c.fail(s, out.err)
		return
	}
	if err := c.reconciler.Apply(s.logCtx, s.order, s.lineID, out.confirmation); err != nil {
		c.fail(s, err)
		return
	}
	c.logg.Info(s.logCtx, "configurator confirmed")
}

func (c *Controller) onClosed(s *Session) {
	s.mu.Lock()
	confirmed := s.confirmed
	discarded := s.discarded
	failed := s.err != nil
	aborted := s.teardown.Err() != nil
	lockLost := s.lockLost
	s.mu.Unlock()

	outcome := outcomeConfirmed
	switch {
	case failed:
		outcome = outcomeFailed
	case discarded || (aborted && !confirmed):
		outcome = outcomeAborted
	case !confirmed:
		outcome = outcomeCancelled
	}

	// a lost lock means the line may belong to another dialog now
	if !confirmed && !lockLost {
		if err := c.reconciler.ApplyCancelled(s.logCtx, s.order, s.lineID, s.mode); err != nil {
			c.fail(s, err)
			outcome = outcomeFailed
		}
	}

	// Let whatever triggered the close finish before the focus trap goes away.
	c.yield()
	c.focus.Deactivate(s.modal.Element())
	if err := s.lock.Release(context.WithoutCancel(s.logCtx)); err != nil {
		c.logg.Error(s.logCtx, "release line lock", err)
	}

	s.mu.Lock()
	s.state = enums.DialogStateClosed
	s.mu.Unlock()
	s.cancel()

	c.metrics.SessionFinished(string(s.mode), outcome, time.Since(s.startedAt))
	c.logg.Info(c.logg.WithField(s.logCtx, "outcome", outcome), "configurator closed")
}

func (c *Controller) discard(s *Session) {
	s.mu.Lock()
	s.discarded = true
	s.mu.Unlock()
	c.metrics.IncDiscarded()
	c.logg.Warn(s.logCtx, "configurator torn down before its selection arrived, result discarded")
}

func (c *Controller) fail(s *Session, err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
	c.reporter.Report(s.logCtx, err)
}

// Session is one open configurator dialog.
type Session struct {
	id        string
	order     OrderRecord
	lineID    int64
	mode      enums.ConfiguratorMode
	root      RootProduct
	modal     Modal
	lock      LineLock
	reqCtx    RequestContext
	startedAt time.Time
	logCtx    context.Context

	teardown context.Context
	cancel   context.CancelFunc
	done     chan struct{}

	mu        sync.Mutex
	state     enums.DialogState
	confirmed bool
	discarded bool
	lockLost  bool
	err       error
}

func (c *Controller) newSession(ctx context.Context, id string, order OrderRecord, lineID int64, mode enums.ConfiguratorMode, root RootProduct, modal Modal, lock LineLock, reqCtx RequestContext) *Session {
	logCtx := context.WithoutCancel(ctx)
	logCtx = c.logg.WithSessionID(logCtx, id)
	logCtx = c.logg.WithOrderID(logCtx, order.ID())
	logCtx = c.logg.WithLineID(logCtx, lineID)
	logCtx = WithRequestContext(logCtx, reqCtx)

	teardown, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        id,
		order:     order,
		lineID:    lineID,
		mode:      mode,
		root:      root,
		modal:     modal,
		lock:      lock,
		reqCtx:    reqCtx,
		startedAt: time.Now(),
		logCtx:    logCtx,
		teardown:  teardown,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     enums.DialogStateIdle,
	}
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) OrderID() int64               { return s.order.ID() }
func (s *Session) LineID() int64                { return s.lineID }
func (s *Session) Mode() enums.ConfiguratorMode { return s.mode }
func (s *Session) RootProduct() RootProduct     { return s.root }

// Done is closed once the close branch has run.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() enums.DialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure of the confirm branch, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Abort tears the dialog down. Remote calls in flight still complete but their
// results are not applied.
func (s *Session) Abort() {
	s.cancel()
}

// markConfirmed flips the confirmed flag before anything else can observe the
// confirm. It reports false when the session was already confirmed or closed.
func (s *Session) markConfirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed || s.state.IsTerminal() {
		return false
	}
	s.confirmed = true
	s.state = enums.DialogStateConfirmed
	return true
}

func (s *Session) tornDown() bool {
	return s.teardown.Err() != nil
}

// LogReporter reports asynchronous failures through the logger.
type LogReporter struct {
	logg *logger.Logger
}

func NewLogReporter(logg *logger.Logger) *LogReporter {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogReporter{logg: logg}
}

func (r *LogReporter) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	ctx = r.logg.WithFields(ctx, map[string]any{
		"error_code": dump.Code,
		"step":       dump.Step,
	})
	r.logg.Error(ctx, "configurator flow failed", err)
}
