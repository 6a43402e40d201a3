package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
	"github.com/angelmondragon/purchase-configurator/pkg/logger"
	"go.uber.org/multierr"
)

type gridFetcher interface {
	Grid(ctx context.Context, req configurator.GridRequest) (json.RawMessage, error)
}

// GridView is the last matrix shown for an order.
type GridView struct {
	Request configurator.GridRequest `json:"request"`
	Grid    json.RawMessage          `json:"grid"`
}

// Registry holds the dialogs, focus stack and grids the browser UI polls for. It is the
// modal factory, focus trap and grid surface of the configurator.
type Registry struct {
	selector configurator.ProductSelector
	grids    gridFetcher
	logg     *logger.Logger

	mu     sync.Mutex
	modals map[string]*remoteModal
	focus  []string
	last   map[int64]GridView
}

func NewRegistry(selector configurator.ProductSelector, grids gridFetcher, logg *logger.Logger) (*Registry, error) {
	if selector == nil {
		return nil, errors.New("product selector required")
	}
	if grids == nil {
		return nil, errors.New("grid fetcher required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Registry{
		selector: selector,
		grids:    grids,
		logg:     logg,
		modals:   map[string]*remoteModal{},
		last:     map[int64]GridView{},
	}, nil
}

func (r *Registry) NewModal(ctx context.Context, opts configurator.ModalOptions) (configurator.Modal, error) {
	if opts.SessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.modals[opts.SessionID]; exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("session %s already exists", opts.SessionID))
	}
	m := newRemoteModal(opts, r.selector)
	r.modals[opts.SessionID] = m
	return m, nil
}

// View returns the dialog of an open session.
func (r *Registry) View(sessionID string) (View, error) {
	m, err := r.modal(sessionID)
	if err != nil {
		return View{}, err
	}
	return m.view(), nil
}

// Opened reports that the browser has shown the dialog.
func (r *Registry) Opened(ctx context.Context, sessionID string) error {
	m, err := r.modal(sessionID)
	if err != nil {
		return err
	}
	return m.shown()
}

// Confirm stores the products picked in the dialog, main product first.
func (r *Registry) Confirm(ctx context.Context, sessionID string, products configurator.ConfiguratorResult) error {
	if len(products) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one product must be confirmed")
	}
	m, err := r.modal(sessionID)
	if err != nil {
		return err
	}
	if err := m.confirm(products); err != nil {
		return err
	}
	r.logg.Info(r.logg.WithSessionID(ctx, sessionID), fmt.Sprintf("dialog confirmed with %d products", len(products)))
	return nil
}

// Close dismisses the dialog without confirming.
func (r *Registry) Close(ctx context.Context, sessionID string) error {
	m, err := r.modal(sessionID)
	if err != nil {
		return err
	}
	return m.close()
}

// Activate pushes element on the focus stack.
func (r *Registry) Activate(element string) {
	r.mu.Lock()
	r.focus = append(r.focus, element)
	r.mu.Unlock()
}

// Deactivate pops element from the focus stack and forgets its dialog. The session has
// finished by then, whether the dialog was closed or the session aborted.
func (r *Registry) Deactivate(element string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.focus) - 1; i >= 0; i-- {
		if r.focus[i] == element {
			r.focus = append(r.focus[:i], r.focus[i+1:]...)
			break
		}
	}
	for id, m := range r.modals {
		if m.Element() == element {
			m.discard()
			delete(r.modals, id)
		}
	}
}

// ActiveElement is the element currently holding focus, empty when none.
func (r *Registry) ActiveElement() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.focus) == 0 {
		return ""
	}
	return r.focus[len(r.focus)-1]
}

func (r *Registry) Fetch(ctx context.Context, req configurator.GridRequest) (json.RawMessage, error) {
	return r.grids.Grid(ctx, req)
}

func (r *Registry) Open(ctx context.Context, req configurator.GridRequest, grid json.RawMessage) error {
	r.mu.Lock()
	r.last[req.OrderID] = GridView{Request: req, Grid: grid}
	r.mu.Unlock()
	return nil
}

// LastGrid returns the most recent grid opened for the order.
func (r *Registry) LastGrid(orderID int64) (GridView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	view, ok := r.last[orderID]
	return view, ok
}

// Shutdown closes every dialog still open so their sessions run the close branch.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	open := make([]*remoteModal, 0, len(r.modals))
	for _, m := range r.modals {
		open = append(open, m)
	}
	r.mu.Unlock()

	var errs error
	for _, m := range open {
		switch m.currentStatus() {
		case statusClosed:
			continue
		case statusCreated:
			// never shown; nothing listens for its events
			r.forget(m.opts.SessionID)
			continue
		}
		if err := m.close(); err != nil && !m.isClosed() {
			errs = multierr.Append(errs, fmt.Errorf("close session %s: %w", m.opts.SessionID, err))
		}
	}
	if errs != nil {
		r.logg.Error(ctx, "registry shutdown", errs)
	}
	return errs
}

func (r *Registry) forget(sessionID string) {
	r.mu.Lock()
	delete(r.modals, sessionID)
	r.mu.Unlock()
}

func (r *Registry) modal(sessionID string) (*remoteModal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.modals[sessionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("session %s not found", sessionID))
	}
	return m, nil
}
