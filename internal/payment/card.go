package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-wisata/internal/resilience"
)

// CardProcessor calls the external card processor over JSON/HTTP.
type CardProcessor struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
}

// Charge submits a charge request. A declined card is a normal CardResult
// with Approved=false, not an error; errors mean the collaborator itself
// failed.
func (c *CardProcessor) Charge(ctx context.Context, req CardCharge) (CardResult, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return CardResult{}, errors.New("card: base url not configured")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return CardResult{}, errors.New("card: reference is required")
	}
	body, err := json.Marshal(map[string]any{
		"reference": req.Reference,
		"userId":    req.UserID,
		"amount":    req.Amount,
		"currency":  req.Currency,
	})
	if err != nil {
		return CardResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.BaseURL, "/")+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return CardResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(ctx, httpReq)
	if err != nil {
		return CardResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return CardResult{}, fmt.Errorf("card: unexpected status %s", resp.Status)
	}
	var decoded struct {
		Data struct {
			ChargeID string `json:"chargeId"`
			Status   string `json:"status"`
			Reason   string `json:"reason"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CardResult{}, err
	}
	return CardResult{
		ProviderRef: decoded.Data.ChargeID,
		Approved:    strings.EqualFold(decoded.Data.Status, "approved"),
		Reason:      decoded.Data.Reason,
	}, nil
}
