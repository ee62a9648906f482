package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhatsApp_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "relay-token", r.Header.Get("Authorization"))

		var body relayMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "62895123456", body.Target)
		assert.Equal(t, "halo", body.Message)
		assert.Equal(t, "62", body.CountryCode)

		_, _ = w.Write([]byte(`{"status":true,"id":["1"]}`))
	}))
	defer srv.Close()

	svc := NewWhatsAppService(srv.URL, "relay-token", "", nil)
	data, err := svc.Send(context.Background(), "0895-1234-56", "halo")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true,"id":["1"]}`, string(data))
}

func TestWhatsApp_FailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		to      string
		message string
		status  int
		target  any
	}{
		{"no token", "", "0812", "hi", http.StatusInternalServerError, new(*ConfigurationError)},
		{"no recipient", "t", "  ", "hi", http.StatusBadRequest, new(*ValidationError)},
		{"no message", "t", "0812", " ", http.StatusBadRequest, new(*ValidationError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewWhatsAppService("http://127.0.0.1:1", tt.token, "62", nil)
			_, err := svc.Send(context.Background(), tt.to, tt.message)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestWhatsApp_RelayRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"reason":"invalid token"}`))
	}))
	defer srv.Close()

	_, err := NewWhatsAppService(srv.URL, "bad", "62", nil).Send(context.Background(), "0812", "hi")
	require.Error(t, err)
	assert.Equal(t, "invalid token", err.Error())
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}
