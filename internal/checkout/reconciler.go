// Package checkout reconciles partial payments against an order total and
// decides when a register sale may be completed or parked.
package checkout

import (
	"errors"
	"strings"

	"tokodesk/backend/internal/domain"
)

type State string

const (
	StateIdle            State = "idle"
	StateAddingPayments  State = "adding_payments"
	StateReadyToComplete State = "ready_to_complete"
	StateReadyToPark     State = "ready_to_park"
	StateSubmitting      State = "submitting"
	StateCompleted       State = "completed"
	StateParked          State = "parked"
	StateFailed          State = "failed"
)

var (
	ErrOverpayment       = errors.New("payment splits exceed order total")
	ErrInvalidSplit      = errors.New("invalid payment split")
	ErrNetworkUnselected = errors.New("niftipay network and asset must be selected")
	ErrNotReady          = errors.New("remaining balance must be zero to complete")
	ErrSessionSettled    = errors.New("checkout session already settled")
)

// Session tracks one register checkout. Splits accumulate until the
// remaining balance reaches zero (complete) or the sale is parked with
// whatever has been paid so far. Submission is two-phase: BeginComplete or
// BeginPark freezes the session in Submitting, then Confirm lands the
// terminal state or Fail records the rejection.
type Session struct {
	TotalCents int64
	Payments   []domain.PaymentSplit
	state      State
	pending    State
}

func NewSession(totalCents int64) *Session {
	if totalCents < 0 {
		totalCents = 0
	}
	return &Session{TotalCents: totalCents, state: StateIdle}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) PaidCents() int64 {
	var paid int64
	for _, p := range s.Payments {
		paid += p.AmountCents
	}
	return paid
}

func (s *Session) RemainingCents() int64 {
	return s.TotalCents - s.PaidCents()
}

// AddPayment appends one split. The invariant that the paid sum never
// exceeds the total is enforced here, not at submission. Adjusting splits
// after a failed submission moves the session out of Failed.
func (s *Session) AddPayment(split domain.PaymentSplit) error {
	if s.locked() {
		return ErrSessionSettled
	}
	split.MethodID = strings.ToLower(strings.TrimSpace(split.MethodID))
	if split.MethodID == "" || split.AmountCents < 1 {
		return ErrInvalidSplit
	}
	if split.AmountCents > s.RemainingCents() {
		return ErrOverpayment
	}

	s.Payments = append(s.Payments, split)
	s.advance()
	return nil
}

// RemovePayment drops the split at index i, returning to AddingPayments.
func (s *Session) RemovePayment(i int) error {
	if s.locked() {
		return ErrSessionSettled
	}
	if i < 0 || i >= len(s.Payments) {
		return ErrInvalidSplit
	}
	s.Payments = append(s.Payments[:i], s.Payments[i+1:]...)
	s.advance()
	return nil
}

// CanComplete reports whether the balance is exactly zero and every
// niftipay split carries a selected network and asset.
func (s *Session) CanComplete() bool {
	if s.RemainingCents() != 0 {
		return false
	}
	return s.cryptoSelected()
}

// CanPark is true from the first state change on: parking intentionally
// tolerates a non-zero remaining balance, saving a pending-payment order.
func (s *Session) CanPark() bool {
	return !s.locked()
}

// BeginComplete validates the splits and freezes the session in Submitting
// while the order is persisted. Confirm or Fail ends the submission.
func (s *Session) BeginComplete() error {
	if s.locked() {
		return ErrSessionSettled
	}
	if s.RemainingCents() != 0 {
		return ErrNotReady
	}
	if !s.cryptoSelected() {
		return ErrNetworkUnselected
	}
	s.state = StateSubmitting
	s.pending = StateCompleted
	return nil
}

// BeginPark freezes the session in Submitting ahead of saving a
// pending-payment order.
func (s *Session) BeginPark() error {
	if s.locked() {
		return ErrSessionSettled
	}
	s.state = StateSubmitting
	s.pending = StateParked
	return nil
}

// Confirm lands a submission on its terminal state.
func (s *Session) Confirm() {
	if s.state != StateSubmitting {
		return
	}
	s.state = s.pending
	s.pending = ""
}

// Complete runs a full submission in one call. Callers that need the order
// persisted in between use BeginComplete, Confirm and Fail directly.
func (s *Session) Complete() error {
	if err := s.BeginComplete(); err != nil {
		return err
	}
	s.Confirm()
	return nil
}

func (s *Session) Park() error {
	if err := s.BeginPark(); err != nil {
		return err
	}
	s.Confirm()
	return nil
}

// Fail records a rejected submission. The session stays in Failed until
// the operator adjusts a split, which recomputes the state.
func (s *Session) Fail() {
	if s.settled() {
		return
	}
	s.state = StateFailed
	s.pending = ""
}

func (s *Session) settled() bool {
	return s.state == StateCompleted || s.state == StateParked
}

// locked covers the states in which the split list must not change.
func (s *Session) locked() bool {
	return s.state == StateSubmitting || s.settled()
}

func (s *Session) cryptoSelected() bool {
	for _, p := range s.Payments {
		if p.MethodID != domain.PaymentMethodNiftipay {
			continue
		}
		if strings.TrimSpace(p.Network) == "" || strings.TrimSpace(p.Asset) == "" {
			return false
		}
	}
	return true
}

func (s *Session) advance() {
	switch {
	case len(s.Payments) == 0:
		s.state = StateIdle
	case s.CanComplete():
		s.state = StateReadyToComplete
	default:
		s.state = StateReadyToPark
	}
}

// ValidateSplits runs the session invariants over a one-shot split list, as
// submitted to the checkout endpoint. forComplete additionally requires the
// paid sum to equal the total exactly.
func ValidateSplits(totalCents int64, splits []domain.PaymentSplit, forComplete bool) error {
	session := NewSession(totalCents)
	for _, split := range splits {
		if err := session.AddPayment(split); err != nil {
			return err
		}
	}
	if forComplete && !session.CanComplete() {
		if session.RemainingCents() != 0 {
			return ErrNotReady
		}
		return ErrNetworkUnselected
	}
	if !forComplete && !session.cryptoSelected() {
		return ErrNetworkUnselected
	}
	return nil
}
