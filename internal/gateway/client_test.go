package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Charge(t *testing.T) {
	t.Run("successful charge", func(t *testing.T) {
		var gotReq *http.Request
		var gotBody map[string]interface{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotReq = r
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "ch_1", "status": "succeeded"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		result, err := client.Charge(context.Background(), ChargeRequest{
			AmountCents:      3000,
			Currency:         "USD",
			PaymentMethodRef: "pm_1",
			CustomerRef:      "user-1",
			IdempotencyKey:   "installment-1-attempt-1",
			Description:      "Installment 1 of invoice 1",
		})
		require.NoError(t, err)

		assert.Equal(t, ChargeSucceeded, result.Status)
		assert.Equal(t, "ch_1", result.TransactionRef)

		assert.Equal(t, http.MethodPost, gotReq.Method)
		assert.Equal(t, "/v1/charges", gotReq.URL.Path)
		assert.Equal(t, "Bearer test-key", gotReq.Header.Get("Authorization"))
		assert.Equal(t, "installment-1-attempt-1", gotReq.Header.Get("Idempotency-Key"))
		assert.Equal(t, float64(3000), gotBody["amount"])
		assert.Equal(t, "pm_1", gotBody["payment_method"])
		assert.Equal(t, "user-1", gotBody["customer"])
	})

	t.Run("decline is a result, not an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]string{
				"id": "ch_2", "status": "failed", "failure_reason": "card_declined",
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		result, err := client.Charge(context.Background(), ChargeRequest{AmountCents: 3000, IdempotencyKey: "k"})
		require.NoError(t, err)

		assert.Equal(t, ChargeFailed, result.Status)
		assert.Equal(t, "card_declined", result.FailureReason)
	})

	t.Run("server error means the outcome is unknown", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		_, err := client.Charge(context.Background(), ChargeRequest{AmountCents: 3000, IdempotencyKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("rejected request without a charge object", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "missing payment_method"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		_, err := client.Charge(context.Background(), ChargeRequest{AmountCents: 3000, IdempotencyKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rejected")
	})
}

func TestClient_LookupCharge(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/charges/by-key/installment-7-attempt-2", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"id": "ch_7", "status": "succeeded"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		result, err := client.LookupCharge(context.Background(), "installment-7-attempt-2")
		require.NoError(t, err)
		assert.Equal(t, "ch_7", result.TransactionRef)
	})

	t.Run("unknown key", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		_, err := client.LookupCharge(context.Background(), "never-sent")
		assert.ErrorIs(t, err, ErrChargeNotFound)
	})
}

func TestClient_DefaultMethod(t *testing.T) {
	t.Run("resolves the saved method", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/customers/user-42/default-method", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"payment_method": "pm_42"})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		method, err := client.DefaultMethod(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, "pm_42", method)
	})

	t.Run("no method on file", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		_, err := client.DefaultMethod(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNoSavedMethod)
	})

	t.Run("empty method answers like none", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"payment_method": ""})
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-key")
		_, err := client.DefaultMethod(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNoSavedMethod)
	})
}
