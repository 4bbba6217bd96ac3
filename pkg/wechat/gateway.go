package wechat

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// TradeState mirrors the gateway's transaction states.
type TradeState string

const (
	TradeStateSuccess    TradeState = "SUCCESS"
	TradeStateNotPaid    TradeState = "NOTPAY"
	TradeStateClosed     TradeState = "CLOSED"
	TradeStateRefund     TradeState = "REFUND"
	TradeStateRevoked    TradeState = "REVOKED"
	TradeStateUserPaying TradeState = "USERPAYING"
	TradeStatePayError   TradeState = "PAYERROR"
)

// Paid reports whether the state represents a settled payment.
func (s TradeState) Paid() bool {
	return s == TradeStateSuccess
}

// PrepayParams describes the charge to create.
type PrepayParams struct {
	OutTradeNo  string
	Description string
	Amount      decimal.Decimal
	ExpiresAt   time.Time
}

// PaymentEvent is a verified settlement notification from the gateway.
type PaymentEvent struct {
	OutTradeNo    string
	TransactionID string
	State         TradeState
	SuccessTime   *time.Time
}

// OrderState is the gateway's answer to an active status query.
type OrderState struct {
	OutTradeNo    string
	TransactionID string
	State         TradeState
}

// Gateway is the narrow payment-gateway surface the storefront consumes.
// Implementations must be idempotent on OutTradeNo: a retried prepay for the
// same trade reference never creates a second charge.
type Gateway interface {
	CreateNativeOrder(ctx context.Context, params PrepayParams) (codeURL string, err error)
	QueryOrder(ctx context.Context, outTradeNo string) (*OrderState, error)
	VerifyNotify(ctx context.Context, req *http.Request) (*PaymentEvent, error)
}
