package wechat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wechatpay-apiv3/wechatpay-go/core"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/core/downloader"
	"github.com/wechatpay-apiv3/wechatpay-go/core/notify"
	"github.com/wechatpay-apiv3/wechatpay-go/core/option"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments"
	"github.com/wechatpay-apiv3/wechatpay-go/services/payments/native"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"

	"github.com/kamishop/kamishop-backend/pkg/config"
	pkgerrors "github.com/kamishop/kamishop-backend/pkg/errors"
	"github.com/kamishop/kamishop-backend/pkg/retry"
)

// Client implements Gateway on top of the WeChat Pay v3 Native API.
type Client struct {
	cfg     config.WeChatPayConfig
	native  native.NativeApiService
	handler *notify.Handler
	policy  retry.Policy
}

// NewClient validates the merchant credentials, registers the platform
// certificate downloader, and builds the signed API client.
func NewClient(ctx context.Context, cfg config.WeChatPayConfig) (*Client, error) {
	if cfg.MchID == "" || cfg.AppID == "" || cfg.CertSerialNo == "" || cfg.APIv3Key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wechat pay merchant credentials incomplete")
	}

	privateKey, err := utils.LoadPrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wechat merchant private key")
	}

	apiClient, err := core.NewClient(ctx, option.WithWechatPayAutoAuthCipher(
		cfg.MchID, cfg.CertSerialNo, privateKey, cfg.APIv3Key,
	))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build wechat pay client")
	}

	if err := downloader.MgrInstance().RegisterDownloaderWithPrivateKey(
		ctx, privateKey, cfg.CertSerialNo, cfg.MchID, cfg.APIv3Key,
	); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "register platform certificate downloader")
	}

	handler := notify.NewNotifyHandler(
		cfg.APIv3Key,
		verifiers.NewSHA256WithRSAVerifier(downloader.MgrInstance().GetCertificateVisitor(cfg.MchID)),
	)

	policy := retry.DefaultPolicy
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}

	return &Client{
		cfg:     cfg,
		native:  native.NativeApiService{Client: apiClient},
		handler: handler,
		policy:  policy,
	}, nil
}

// CreateNativeOrder creates a scan-to-pay charge and returns the QR payload.
// The gateway deduplicates on OutTradeNo, so the retry loop is safe.
func (c *Client) CreateNativeOrder(ctx context.Context, params PrepayParams) (string, error) {
	totalCents := params.Amount.Mul(decimal.NewFromInt(100)).IntPart()
	if totalCents <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "charge amount must be positive")
	}

	var codeURL string
	err := retry.Do(ctx, c.policy, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		resp, _, err := c.native.Prepay(callCtx, native.PrepayRequest{
			Appid:       core.String(c.cfg.AppID),
			Mchid:       core.String(c.cfg.MchID),
			Description: core.String(params.Description),
			OutTradeNo:  core.String(params.OutTradeNo),
			TimeExpire:  core.Time(params.ExpiresAt),
			NotifyUrl:   core.String(c.cfg.NotifyURL),
			Amount:      &native.Amount{Total: core.Int64(totalCents)},
		})
		if err != nil {
			return classify(err)
		}
		if resp == nil || resp.CodeUrl == nil || *resp.CodeUrl == "" {
			return retry.Permanent(pkgerrors.New(pkgerrors.CodeDependency, "gateway returned no code_url"))
		}
		codeURL = *resp.CodeUrl
		return nil
	})
	if err != nil {
		return "", wrapGatewayErr(err, "create native order")
	}
	return codeURL, nil
}

// QueryOrder asks the gateway for the current state of a charge.
func (c *Client) QueryOrder(ctx context.Context, outTradeNo string) (*OrderState, error) {
	if outTradeNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "out trade no required")
	}

	var state *OrderState
	err := retry.Do(ctx, c.policy, func() error {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		txn, _, err := c.native.QueryOrderByOutTradeNo(callCtx, native.QueryOrderByOutTradeNoRequest{
			OutTradeNo: core.String(outTradeNo),
			Mchid:      core.String(c.cfg.MchID),
		})
		if err != nil {
			return classify(err)
		}
		state = transactionState(txn)
		return nil
	})
	if err != nil {
		return nil, wrapGatewayErr(err, "query order")
	}
	return state, nil
}

// VerifyNotify authenticates a push callback (signature over headers + body
// against the platform certificate) and decrypts the carried transaction.
func (c *Client) VerifyNotify(ctx context.Context, req *http.Request) (*PaymentEvent, error) {
	transaction := new(payments.Transaction)
	if _, err := c.handler.ParseNotifyRequest(ctx, req, transaction); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify gateway callback signature")
	}

	event := &PaymentEvent{}
	if transaction.OutTradeNo != nil {
		event.OutTradeNo = *transaction.OutTradeNo
	}
	if transaction.TransactionId != nil {
		event.TransactionID = *transaction.TransactionId
	}
	if transaction.TradeState != nil {
		event.State = TradeState(*transaction.TradeState)
	}
	if transaction.SuccessTime != nil {
		if parsed, err := time.Parse(time.RFC3339, *transaction.SuccessTime); err == nil {
			event.SuccessTime = &parsed
		}
	}
	if event.OutTradeNo == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback carries no out_trade_no")
	}
	return event, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func transactionState(txn *payments.Transaction) *OrderState {
	state := &OrderState{}
	if txn == nil {
		return state
	}
	if txn.OutTradeNo != nil {
		state.OutTradeNo = *txn.OutTradeNo
	}
	if txn.TransactionId != nil {
		state.TransactionID = *txn.TransactionId
	}
	if txn.TradeState != nil {
		state.State = TradeState(*txn.TradeState)
	}
	return state
}

// classify separates transient gateway failures (worth retrying) from
// merchant-side mistakes the retry loop can never fix.
func classify(err error) error {
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
	}
	return err
}

func wrapGatewayErr(err error, op string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
