package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/purchase-configurator/internal/configurator"
	pkgerrors "github.com/angelmondragon/purchase-configurator/pkg/errors"
)

type modalStatus string

const (
	statusCreated   modalStatus = "created"
	statusOpen      modalStatus = "open"
	statusShown     modalStatus = "shown"
	statusConfirmed modalStatus = "confirmed"
	statusClosed    modalStatus = "closed"
)

// opened, confirm and closed are the most a modal ever emits.
const eventBuffer = 4

// View is what the browser UI needs to render a dialog.
type View struct {
	SessionID   string                   `json:"session_id"`
	OrderID     int64                    `json:"order_id"`
	LineID      int64                    `json:"line_id"`
	Element     string                   `json:"element"`
	Mode        string                   `json:"mode"`
	Status      string                   `json:"status"`
	Markup      string                   `json:"markup"`
	RootProduct configurator.RootProduct `json:"root_product"`
	PricelistID int64                    `json:"pricelist_id"`
	Labels      Labels                   `json:"labels"`
}

type Labels struct {
	Confirm string `json:"confirm"`
	Back    string `json:"back"`
	Title   string `json:"title"`
}

// remoteModal is a dialog rendered by the browser and driven by HTTP signals.
type remoteModal struct {
	opts     configurator.ModalOptions
	selector configurator.ProductSelector
	events   chan configurator.ModalEvent

	mu        sync.Mutex
	status    modalStatus
	selection configurator.ConfiguratorResult
}

func newRemoteModal(opts configurator.ModalOptions, selector configurator.ProductSelector) *remoteModal {
	return &remoteModal{
		opts:     opts,
		selector: selector,
		events:   make(chan configurator.ModalEvent, eventBuffer),
		status:   statusCreated,
	}
}

func (m *remoteModal) Element() string {
	return "configurator-" + m.opts.SessionID
}

func (m *remoteModal) Events() <-chan configurator.ModalEvent {
	return m.events
}

func (m *remoteModal) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != statusCreated {
		return m.illegal("open")
	}
	m.status = statusOpen
	return nil
}

// SelectedProducts materializes the posted selection. Products posted without a variant
// id are resolved through the selector from their attribute values.
func (m *remoteModal) SelectedProducts(ctx context.Context) (configurator.ConfiguratorResult, error) {
	m.mu.Lock()
	selection := append(configurator.ConfiguratorResult(nil), m.selection...)
	m.mu.Unlock()
	if len(selection) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no products were confirmed")
	}

	for i := range selection {
		if selection[i].ProductID > 0 {
			continue
		}
		id, err := m.selector.SelectOrCreate(ctx, configurator.SelectRequest{
			TemplateID:  selection[i].ProductTemplateID,
			Combination: selection[i].VariantValues,
		})
		if err != nil {
			return nil, err
		}
		selection[i].ProductID = id
	}
	return selection, nil
}

func (m *remoteModal) shown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != statusOpen {
		return m.illegal(string(configurator.SignalOpened))
	}
	m.status = statusShown
	m.emit(configurator.SignalOpened)
	return nil
}

// confirm stores the selection and closes the dialog, as the browser does on confirm.
func (m *remoteModal) confirm(products configurator.ConfiguratorResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != statusOpen && m.status != statusShown {
		return m.illegal(string(configurator.SignalConfirm))
	}
	m.selection = append(configurator.ConfiguratorResult(nil), products...)
	m.status = statusClosed
	m.emit(configurator.SignalConfirm)
	m.emit(configurator.SignalClosed)
	return nil
}

func (m *remoteModal) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == statusClosed || m.status == statusCreated {
		return m.illegal(string(configurator.SignalClosed))
	}
	m.status = statusClosed
	m.emit(configurator.SignalClosed)
	return nil
}

// discard marks the dialog closed without emitting anything.
func (m *remoteModal) discard() {
	m.mu.Lock()
	m.status = statusClosed
	m.mu.Unlock()
}

func (m *remoteModal) currentStatus() modalStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *remoteModal) isClosed() bool {
	return m.currentStatus() == statusClosed
}

// emit never blocks: the status checks bound the number of events below the buffer.
func (m *remoteModal) emit(signal configurator.ModalSignal) {
	m.events <- configurator.ModalEvent{Signal: signal}
}

func (m *remoteModal) illegal(signal string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s a dialog that is %s", signal, m.status))
}

func (m *remoteModal) view() View {
	status := m.currentStatus()
	return View{
		SessionID:   m.opts.SessionID,
		OrderID:     m.opts.OrderID,
		LineID:      m.opts.LineID,
		Element:     m.Element(),
		Mode:        m.opts.Mode.String(),
		Status:      string(status),
		Markup:      m.opts.Markup,
		RootProduct: m.opts.RootProduct,
		PricelistID: m.opts.PricelistID,
		Labels: Labels{
			Confirm: m.opts.OKButtonText,
			Back:    m.opts.CancelButtonText,
			Title:   m.opts.Title,
		},
	}
}
