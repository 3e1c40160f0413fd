package policies

import (
	"context"
	"errors"

	"staybook/internal/domain/shared/money"
)

var (
	// ErrGateway marks a failed or malformed payment-provider call.
	ErrGateway = errors.New("gateway: payment provider call failed")
	// ErrGatewayTimeout marks a timed-out provider call; callers may retry
	// the same request.
	ErrGatewayTimeout = errors.New("gateway: payment provider timed out")
)

// SessionRequest asks the gateway for a hosted payment page. The
// reservation id rides along as correlation metadata so webhook events can
// be traced back.
type SessionRequest struct {
	ReservationID string
	Amount        money.Money
	CustomerEmail string
	Description   string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	SessionID string
	URL       string
}

// RefundRequest issues a (possibly partial) refund against a charge.
type RefundRequest struct {
	ChargeID string
	IntentID string
	Amount   money.Money
	Reason   string
}

type RefundResult struct {
	RefundID string
}

// GatewayPort is the outbound payment-gateway boundary.
type GatewayPort interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
}
