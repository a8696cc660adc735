// Package payment provides payment provider implementations for the order
// engine's PAY and PAY_DIRECT transitions.
package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/prontolabs/pronto/internal/domain"
)

// CashProvider settles payments taken at the table or the counter. There is
// no external processor to call: it mints a reference so the order carries
// an auditable receipt like any other method.
type CashProvider struct {
	logger *slog.Logger
}

// NewCashProvider creates a provider for in-person settlement.
func NewCashProvider(logger *slog.Logger) *CashProvider {
	return &CashProvider{logger: logger}
}

// Process settles the order and returns a minted reference.
func (p *CashProvider) Process(ctx context.Context, order domain.Order, method string) (domain.PaymentResult, error) {
	ref, err := generateReference()
	if err != nil {
		return domain.PaymentResult{}, fmt.Errorf("generating payment reference: %w", err)
	}

	p.logger.InfoContext(ctx, "payment settled",
		"order_id", order.ID,
		"method", method,
		"reference", ref,
	)

	return domain.PaymentResult{
		Reference: ref,
		Meta: map[string]any{
			"method":     method,
			"settled_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}, nil
}

// generateReference produces a random hex payment reference.
// Isolated here so the reference strategy can evolve independently.
func generateReference() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	const hex = "0123456789abcdef"
	out := make([]byte, 32)
	for i, v := range b {
		out[i*2] = hex[v>>4]
		out[i*2+1] = hex[v&0x0f]
	}
	return "pay_" + string(out), nil
}
