package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-wisata/internal/pricing"
	"github.com/noah-isme/backend-wisata/internal/resilience"
)

// VaultClient talks to a vault node's JSON gateway. All amounts on the wire
// are stable-unit cents. The client is explicitly constructed and injectable;
// there is no shared connection state between instances.
type VaultClient struct {
	NodeURL      string
	ContractAddr string
	HTTP         resilience.HTTPClient
}

// BalanceOf reads the wallet's vault balance.
func (v *VaultClient) BalanceOf(ctx context.Context, wallet string) (pricing.Money, error) {
	var out struct {
		Balance pricing.Money `json:"balance"`
	}
	q := url.Values{"wallet": {wallet}, "contract": {v.ContractAddr}}
	if err := v.get(ctx, "/v1/vault/balance?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return out.Balance, nil
}

// Allowance reads how much the contract may currently spend from the wallet.
func (v *VaultClient) Allowance(ctx context.Context, wallet string) (pricing.Money, error) {
	var out struct {
		Allowance pricing.Money `json:"allowance"`
	}
	q := url.Values{"wallet": {wallet}, "contract": {v.ContractAddr}}
	if err := v.get(ctx, "/v1/vault/allowance?"+q.Encode(), &out); err != nil {
		return 0, err
	}
	return out.Allowance, nil
}

// Approve raises the spending allowance. Returns the approval tx hash.
func (v *VaultClient) Approve(ctx context.Context, wallet string, amount pricing.Money) (string, error) {
	ctx, span := otel.Tracer("payment.VaultClient").Start(ctx, "VaultClient.Approve")
	defer span.End()
	span.SetAttributes(attribute.Int64("vault.amount", int64(amount)))
	var out struct {
		TxHash string `json:"txHash"`
	}
	err := v.post(ctx, "/v1/vault/approve", map[string]any{
		"wallet":   wallet,
		"contract": v.ContractAddr,
		"amount":   amount,
	}, &out)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return out.TxHash, nil
}

// Transfer executes the balance transfer. The returned hash identifies a
// transaction that is still awaiting confirmation; callers must poll
// TransactionStatus before treating the settlement as final.
func (v *VaultClient) Transfer(ctx context.Context, wallet string, amount pricing.Money) (string, error) {
	ctx, span := otel.Tracer("payment.VaultClient").Start(ctx, "VaultClient.Transfer")
	defer span.End()
	span.SetAttributes(attribute.Int64("vault.amount", int64(amount)))
	var out struct {
		TxHash string `json:"txHash"`
	}
	err := v.post(ctx, "/v1/vault/transfer", map[string]any{
		"wallet":   wallet,
		"contract": v.ContractAddr,
		"amount":   amount,
	}, &out)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	if strings.TrimSpace(out.TxHash) == "" {
		return "", errors.New("vault: transfer returned no tx hash")
	}
	return out.TxHash, nil
}

// TransactionStatus reports pending, confirmed or failed for a tx hash.
func (v *VaultClient) TransactionStatus(ctx context.Context, txHash string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	q := url.Values{"txHash": {txHash}}
	if err := v.get(ctx, "/v1/vault/tx?"+q.Encode(), &out); err != nil {
		return "", err
	}
	switch status := strings.ToLower(strings.TrimSpace(out.Status)); status {
	case VaultTxPending, VaultTxConfirmed, VaultTxFailed:
		return status, nil
	default:
		return "", fmt.Errorf("vault: unknown tx status %q", out.Status)
	}
}

func (v *VaultClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint(path), nil)
	if err != nil {
		return err
	}
	return v.do(ctx, req, out)
}

func (v *VaultClient) post(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint(path), bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return v.do(ctx, req, out)
}

func (v *VaultClient) do(ctx context.Context, req *http.Request, out any) error {
	if strings.TrimSpace(v.NodeURL) == "" {
		return errors.New("vault: node url not configured")
	}
	resp, err := v.HTTP.Do(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vault: unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (v *VaultClient) endpoint(path string) string {
	return strings.TrimRight(v.NodeURL, "/") + path
}
