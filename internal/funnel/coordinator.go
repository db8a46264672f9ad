package funnel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jk-autos/storefront/internal/auth"
	"github.com/jk-autos/storefront/internal/domain"
	"github.com/jk-autos/storefront/internal/orders"
	"github.com/jk-autos/storefront/internal/payments"
)

// State enumerates the stages of a purchase traversal. Exactly one traversal
// is active per coordinator at a time.
type State string

const (
	// StateBrowsing is the rest state: no vehicle committed, no draft held.
	StateBrowsing State = "browsing"
	// StateSelected means a vehicle is resolved and quoted.
	StateSelected State = "selected"
	// StateFillingContact means checkout has begun and buyer details are being captured.
	StateFillingContact State = "filling-contact"
	// StateAwaitingPayment means the draft is valid and the gateway handoff is live.
	StateAwaitingPayment State = "awaiting-payment"
	// StateSubmitting means payment (if any) is confirmed and the order write is in flight.
	StateSubmitting State = "submitting"
	// StateCompleted means the write API acknowledged the order.
	StateCompleted State = "completed"
	// StateFailed is terminal for payment failures. A failed order write also
	// lands here, with the draft retained so the write can be retried.
	StateFailed State = "failed"
)

var (
	// ErrInvalidTransition is returned when an operation is called outside the
	// state that permits it.
	ErrInvalidTransition = errors.New("funnel: invalid transition")
	// ErrPaymentCancelled is returned when the buyer dismissed the gateway
	// without paying. The draft survives and payment can be reattempted.
	ErrPaymentCancelled = errors.New("funnel: payment cancelled")
	// ErrPaymentFailed is returned when the gateway reports a terminal failure.
	ErrPaymentFailed = errors.New("funnel: payment failed")
	// ErrPaymentConfirmedSubmissionFailed is returned when money moved but the
	// order write did not land. The confirmed reference is retained so the
	// submission can be retried without charging again.
	ErrPaymentConfirmedSubmissionFailed = errors.New("funnel: payment confirmed but submission failed")
	// ErrSubmissionInFlight is returned when a duplicate confirmation arrives
	// while the order write is already running.
	ErrSubmissionInFlight = errors.New("funnel: submission already in flight")
)

// VehicleResolver resolves catalog entries by id.
type VehicleResolver interface {
	Resolve(ctx context.Context, id string) (domain.Vehicle, error)
}

// Gateway abstracts the payment manager for the coordinator.
type Gateway interface {
	Initialize(ctx context.Context, paymentCtx payments.PaymentContext, req payments.HandoffRequest) (payments.Handoff, error)
	Verify(ctx context.Context, paymentCtx payments.PaymentContext, req payments.VerifyRequest) (payments.PaymentDetails, error)
}

// PurchaseSubmitter posts completed purchases to the write API.
type PurchaseSubmitter interface {
	SubmitPurchase(ctx context.Context, draft domain.OrderDraft, paymentReference string) (orders.PurchaseReceipt, error)
}

// CoordinatorDeps wires the dependencies required by the Coordinator.
type CoordinatorDeps struct {
	Catalog   VehicleResolver
	Gateway   Gateway
	Submitter PurchaseSubmitter
	// Token yields the current session bearer token, empty once the session
	// has lapsed. Checkout transitions require a live session.
	Token      func() string
	Currency   string
	SuccessURL string
	CancelURL  string
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

// Coordinator owns the purchase traversal: one draft, one state, advanced only
// through guarded transitions. All methods are safe for concurrent use.
type Coordinator struct {
	catalog    VehicleResolver
	gateway    Gateway
	submitter  PurchaseSubmitter
	token      func() string
	currency   string
	successURL string
	cancelURL  string
	clock      func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)

	mu    sync.Mutex
	state State
	draft domain.OrderDraft
	// reference is the live gateway attempt; confirmedRef survives a failed
	// submission so retries never mint a second charge.
	reference    string
	confirmedRef string
	submitting   bool
	// failedSubmission distinguishes a retryable write failure from a
	// terminal payment failure once the state is Failed.
	failedSubmission bool
	receipt          orders.PurchaseReceipt
}

// NewCoordinator constructs a Coordinator validating required dependencies.
func NewCoordinator(deps CoordinatorDeps) (*Coordinator, error) {
	if deps.Catalog == nil {
		return nil, errors.New("funnel: catalog resolver is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("funnel: payment gateway is required")
	}
	if deps.Submitter == nil {
		return nil, errors.New("funnel: order submitter is required")
	}
	token := deps.Token
	if token == nil {
		token = func() string { return "" }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "NGN"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Coordinator{
		catalog:    deps.Catalog,
		gateway:    deps.Gateway,
		submitter:  deps.Submitter,
		token:      token,
		currency:   currency,
		successURL: deps.SuccessURL,
		cancelURL:  deps.CancelURL,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
		state:      StateBrowsing,
	}, nil
}

// State returns the current traversal state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the in-progress order.
func (c *Coordinator) Draft() domain.OrderDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Receipt returns the write API acknowledgement once the traversal completed.
func (c *Coordinator) Receipt() orders.PurchaseReceipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt
}

// Select resolves a vehicle, computes its quote, and moves to Selected.
// Starting a new selection discards any prior uncommitted draft; only an
// in-flight or terminal traversal rejects it.
func (c *Coordinator) Select(ctx context.Context, vehicleID string) (domain.Quote, error) {
	c.mu.Lock()
	if !selectable(c.state) {
		state := c.state
		c.mu.Unlock()
		return domain.Quote{}, fmt.Errorf("%w: select from %s", ErrInvalidTransition, state)
	}
	c.mu.Unlock()

	vehicle, err := c.catalog.Resolve(ctx, vehicleID)
	if err != nil {
		return domain.Quote{}, err
	}
	quote := domain.QuoteFor(vehicle.Price)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !selectable(c.state) {
		return domain.Quote{}, fmt.Errorf("%w: select from %s", ErrInvalidTransition, c.state)
	}
	c.draft = domain.OrderDraft{
		Vehicle: vehicle,
		Service: domain.ServicePurchase,
		Quote:   quote,
	}
	c.state = StateSelected
	c.reference = ""
	c.confirmedRef = ""
	c.failedSubmission = false

	c.logger(ctx, "funnel.selected", map[string]any{
		"vehicleId": vehicle.ID,
		"total":     quote.Total,
	})
	return quote, nil
}

func selectable(s State) bool {
	switch s {
	case StateBrowsing, StateSelected, StateFillingContact, StateAwaitingPayment:
		return true
	}
	return false
}

// BeginCheckout moves Selected to FillingContact. Requires a live session.
func (c *Coordinator) BeginCheckout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSelected {
		return fmt.Errorf("%w: begin checkout from %s", ErrInvalidTransition, c.state)
	}
	if strings.TrimSpace(c.token()) == "" {
		return auth.ErrSessionExpired
	}
	c.state = StateFillingContact
	c.logger(ctx, "funnel.checkout_started", map[string]any{
		"vehicleId": c.draft.Vehicle.ID,
	})
	return nil
}

// SetContact records buyer details on the draft while filling contact. The
// fields are not validated until ProceedToPayment so partial saves are fine.
func (c *Coordinator) SetContact(contact domain.Contact, address domain.Address, method domain.PaymentMethod) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateFillingContact {
		return fmt.Errorf("%w: set contact from %s", ErrInvalidTransition, c.state)
	}
	c.draft.Contact = contact
	c.draft.Address = address
	c.draft.Method = method
	return nil
}

// ProceedToPayment validates the draft and leaves FillingContact. Gateway
// methods receive a fresh handoff and wait in AwaitingPayment; out-of-band
// methods skip the gateway and submit immediately.
func (c *Coordinator) ProceedToPayment(ctx context.Context) (*payments.Handoff, error) {
	c.mu.Lock()
	if c.state != StateFillingContact {
		if c.draft.Vehicle.ID == "" {
			c.state = StateBrowsing
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: no order in progress", auth.ErrSessionExpired)
		}
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: proceed from %s", ErrInvalidTransition, state)
	}
	if strings.TrimSpace(c.token()) == "" {
		c.mu.Unlock()
		return nil, auth.ErrSessionExpired
	}
	if err := c.draft.Validate(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	if !c.draft.Method.RequiresGateway() {
		c.state = StateSubmitting
		c.submitting = true
		draft := c.draft
		c.mu.Unlock()
		return nil, c.submit(ctx, draft, "")
	}

	reference := payments.NewReference()
	c.reference = reference
	c.state = StateAwaitingPayment
	draft := c.draft
	c.mu.Unlock()

	handoff, err := c.gateway.Initialize(ctx, c.paymentContext(), payments.HandoffRequest{
		Reference:  reference,
		Email:      draft.Contact.Email,
		Amount:     payments.MinorUnits(draft.Quote.Total),
		Currency:   c.currency,
		SuccessURL: c.successURL,
		CancelURL:  c.cancelURL,
		Metadata: map[string]string{
			"vehicle":   draft.Vehicle.Brand + " " + draft.Vehicle.Model,
			"vehicleId": draft.Vehicle.ID,
		},
	})
	if err != nil {
		c.mu.Lock()
		if c.state == StateAwaitingPayment && c.reference == reference {
			c.state = StateFillingContact
			c.reference = ""
		}
		c.mu.Unlock()
		return nil, err
	}

	c.logger(ctx, "funnel.payment_started", map[string]any{
		"vehicleId": draft.Vehicle.ID,
		"reference": reference,
		"amount":    payments.MinorUnits(draft.Quote.Total),
	})
	return &handoff, nil
}

// RetryPayment abandons the current attempt and starts a fresh one with a new
// reference. Valid only while awaiting payment.
func (c *Coordinator) RetryPayment(ctx context.Context) (*payments.Handoff, error) {
	c.mu.Lock()
	if c.state != StateAwaitingPayment {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: retry payment from %s", ErrInvalidTransition, state)
	}
	c.state = StateFillingContact
	c.reference = ""
	c.mu.Unlock()
	return c.ProceedToPayment(ctx)
}

// ConfirmPayment handles the gateway success callback: the attempt is verified
// server-side before the order write runs. A duplicate callback while the
// write is in flight is rejected without side effects.
func (c *Coordinator) ConfirmPayment(ctx context.Context, reference string) error {
	c.mu.Lock()
	switch {
	case c.state == StateSubmitting && c.submitting:
		c.mu.Unlock()
		return ErrSubmissionInFlight
	case c.state == StateCompleted:
		c.mu.Unlock()
		return nil
	case c.state != StateAwaitingPayment:
		if c.draft.Vehicle.ID == "" {
			c.state = StateBrowsing
			c.mu.Unlock()
			return fmt.Errorf("%w: no order in progress", auth.ErrSessionExpired)
		}
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: confirm payment from %s", ErrInvalidTransition, state)
	}
	if strings.TrimSpace(reference) == "" || reference != c.reference {
		expected := c.reference
		c.mu.Unlock()
		return fmt.Errorf("%w: reference %q does not match attempt %q", ErrInvalidTransition, reference, expected)
	}
	c.mu.Unlock()

	details, err := c.gateway.Verify(ctx, c.paymentContext(), payments.VerifyRequest{Reference: reference})
	if err != nil {
		return err
	}

	switch details.Status {
	case payments.StatusSucceeded:
	case payments.StatusCancelled:
		return c.cancelAttempt(ctx, reference)
	case payments.StatusFailed:
		c.mu.Lock()
		c.state = StateFailed
		c.mu.Unlock()
		c.logger(ctx, "funnel.payment_failed", map[string]any{"reference": reference})
		return ErrPaymentFailed
	default:
		return fmt.Errorf("funnel: payment %s still %s", reference, details.Status)
	}

	c.mu.Lock()
	if c.state != StateAwaitingPayment || c.reference != reference {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	c.state = StateSubmitting
	c.submitting = true
	c.confirmedRef = reference
	draft := c.draft
	c.mu.Unlock()

	c.logger(ctx, "funnel.payment_confirmed", map[string]any{
		"reference": reference,
		"amount":    details.Amount,
	})
	return c.submit(ctx, draft, reference)
}

// CancelPayment handles the gateway close callback: the attempt is abandoned,
// the draft survives, and the buyer lands back in FillingContact.
func (c *Coordinator) CancelPayment(ctx context.Context) error {
	c.mu.Lock()
	reference := c.reference
	c.mu.Unlock()
	return c.cancelAttempt(ctx, reference)
}

func (c *Coordinator) cancelAttempt(ctx context.Context, reference string) error {
	c.mu.Lock()
	if c.state != StateAwaitingPayment {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cancel payment from %s", ErrInvalidTransition, state)
	}
	c.state = StateFillingContact
	c.reference = ""
	c.mu.Unlock()

	c.logger(ctx, "funnel.payment_cancelled", map[string]any{"reference": reference})
	return ErrPaymentCancelled
}

// RetrySubmission re-runs the order write from Failed after a write failure.
// The draft is reused as-is; when payment was already confirmed the confirmed
// reference is reused too, so no new charge occurs.
func (c *Coordinator) RetrySubmission(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if c.state != StateFailed || !c.failedSubmission {
		if c.draft.Vehicle.ID == "" {
			c.state = StateBrowsing
			c.mu.Unlock()
			return fmt.Errorf("%w: no order in progress", auth.ErrSessionExpired)
		}
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: retry submission from %s", ErrInvalidTransition, state)
	}
	c.state = StateSubmitting
	c.submitting = true
	c.failedSubmission = false
	draft := c.draft
	reference := c.confirmedRef
	c.mu.Unlock()
	return c.submit(ctx, draft, reference)
}

func (c *Coordinator) submit(ctx context.Context, draft domain.OrderDraft, reference string) error {
	receipt, err := c.submitter.SubmitPurchase(ctx, draft, reference)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if err != nil {
		c.state = StateFailed
		c.failedSubmission = true
		if reference != "" {
			c.logger(ctx, "funnel.submission_failed_after_payment", map[string]any{
				"reference": reference,
				"error":     err.Error(),
			})
			return fmt.Errorf("%w: %v", ErrPaymentConfirmedSubmissionFailed, err)
		}
		c.logger(ctx, "funnel.submission_failed", map[string]any{"error": err.Error()})
		return err
	}

	c.state = StateCompleted
	c.receipt = receipt
	c.reference = ""
	c.confirmedRef = ""
	c.logger(ctx, "funnel.completed", map[string]any{
		"vehicleId": draft.Vehicle.ID,
		"orderId":   receipt.OrderID,
	})
	return nil
}

// Cancel abandons the traversal from any non-terminal state and discards the
// draft. Cancelling after completion or failure is a no-op.
func (c *Coordinator) Cancel(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateCompleted || c.state == StateFailed {
		return
	}
	vehicleID := c.draft.Vehicle.ID
	c.draft = domain.OrderDraft{}
	c.reference = ""
	c.confirmedRef = ""
	c.submitting = false
	c.state = StateBrowsing
	c.logger(ctx, "funnel.cancelled", map[string]any{"vehicleId": vehicleID})
}

// Reset returns a terminal coordinator to Browsing so a new traversal can start.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = domain.OrderDraft{}
	c.receipt = orders.PurchaseReceipt{}
	c.reference = ""
	c.confirmedRef = ""
	c.submitting = false
	c.failedSubmission = false
	c.state = StateBrowsing
}

func (c *Coordinator) paymentContext() payments.PaymentContext {
	return payments.PaymentContext{Currency: c.currency}
}
