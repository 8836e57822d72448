package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-wisata/internal/payment"
	"github.com/noah-isme/backend-wisata/internal/resilience"
)

func newVaultServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *payment.VaultClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := &payment.VaultClient{
		NodeURL:      srv.URL,
		ContractAddr: "0xcontract",
		HTTP:         resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1},
	}
	return srv, client
}

func TestVaultBalanceOf(t *testing.T) {
	_, client := newVaultServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/vault/balance", r.URL.Path)
		require.Equal(t, "0xwallet", r.URL.Query().Get("wallet"))
		require.Equal(t, "0xcontract", r.URL.Query().Get("contract"))
		_ = json.NewEncoder(w).Encode(map[string]any{"balance": 2600})
	})

	balance, err := client.BalanceOf(context.Background(), "0xwallet")
	require.NoError(t, err)
	require.EqualValues(t, 2600, balance)
}

func TestVaultTransferReturnsTxHash(t *testing.T) {
	_, client := newVaultServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/vault/transfer", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.EqualValues(t, 2600, body["amount"])
		_ = json.NewEncoder(w).Encode(map[string]any{"txHash": "0xdeadbeef"})
	})

	hash, err := client.Transfer(context.Background(), "0xwallet", 2600)
	require.NoError(t, err)
	require.Equal(t, "0xdeadbeef", hash)
}

func TestVaultTransferWithoutHashFails(t *testing.T) {
	_, client := newVaultServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"txHash": ""})
	})

	_, err := client.Transfer(context.Background(), "0xwallet", 2600)
	require.Error(t, err)
}

func TestVaultTransactionStatusNormalised(t *testing.T) {
	status := "CONFIRMED"
	_, client := newVaultServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status})
	})

	got, err := client.TransactionStatus(context.Background(), "0xdeadbeef")
	require.NoError(t, err)
	require.Equal(t, payment.VaultTxConfirmed, got)

	status = "reorged"
	_, err = client.TransactionStatus(context.Background(), "0xdeadbeef")
	require.Error(t, err)
}
