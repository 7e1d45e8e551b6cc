package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crowdfund-platform/pkg/config"
	"crowdfund-platform/pkg/errutil"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment", fx.Provide(New))

// PendingPayment is the opaque reference handed back by a gateway that
// settles asynchronously. The donor completes payment out-of-band at
// RedirectURL.
type PendingPayment struct {
	Reference   string
	RedirectURL string
}

// Gateway initiates collection of a donation amount. A nil PendingPayment
// with nil error means the gateway settled instantly.
type Gateway interface {
	Initiate(ctx context.Context, amount decimal.Decimal) (*PendingPayment, error)
}

func New(cfg *config.Config) Gateway {
	if cfg.Gateway.Simulated || cfg.Gateway.Addr == "" {
		zap.L().Info("[Payment] Using simulated gateway (instant settlement)")
		return &Simulated{}
	}

	timeout := cfg.Gateway.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &HTTPGateway{
		addr:         cfg.Gateway.Addr,
		redirectBase: cfg.Gateway.RedirectBase,
		client:       &http.Client{Timeout: timeout},
	}
}

// Simulated settles every payment instantly; used as the fallback when no
// external gateway is configured.
type Simulated struct{}

func (s *Simulated) Initiate(ctx context.Context, amount decimal.Decimal) (*PendingPayment, error) {
	return nil, nil
}

// HTTPGateway defers settlement to the external payment service.
type HTTPGateway struct {
	addr         string
	redirectBase string
	client       *http.Client
}

type initiateRequest struct {
	Amount string `json:"amount"`
}

type initiateResponse struct {
	PaymentID string `json:"payment_id"`
}

func (g *HTTPGateway) Initiate(ctx context.Context, amount decimal.Decimal) (*PendingPayment, error) {
	body, err := json.Marshal(initiateRequest{Amount: amount.StringFixed(2)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.addr+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errutil.BadGateway("payment gateway unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errutil.BadGateway(fmt.Sprintf("payment gateway returned %d", resp.StatusCode), nil)
	}

	var out initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errutil.BadGateway("payment gateway response unreadable", err)
	}

	if out.PaymentID == "" {
		// Gateway chose to settle instantly.
		return nil, nil
	}

	return &PendingPayment{
		Reference:   out.PaymentID,
		RedirectURL: fmt.Sprintf("%s/pay/%s", g.redirectBase, out.PaymentID),
	}, nil
}
