package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCreatePreference(t *testing.T) {
	var gotAuth string
	var gotReq PreferenceRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/preferences" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Preference{ID: "pref-1", InitPoint: "https://pay.example/init"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	pref, err := client.CreatePreference(context.Background(), "APP_USR-token", PreferenceRequest{
		Items:             []PreferenceItem{{Title: "X-Burger", Quantity: 2, UnitPrice: 20, CurrencyID: "BRL"}},
		ExternalReference: "cart-uuid",
		BinaryMode:        true,
	})
	if err != nil {
		t.Fatalf("CreatePreference failed: %v", err)
	}
	if pref.InitPoint != "https://pay.example/init" {
		t.Errorf("init point = %q", pref.InitPoint)
	}
	if gotAuth != "Bearer APP_USR-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.ExternalReference != "cart-uuid" || !gotReq.BinaryMode {
		t.Errorf("request not forwarded faithfully: %+v", gotReq)
	}
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/12345" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Payment{ID: 12345, Status: StatusApproved, ExternalReference: "cart-uuid"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	p, err := client.GetPayment(context.Background(), "key", "12345")
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if p.Status != StatusApproved || p.ExternalReference != "cart-uuid" {
		t.Errorf("payment = %+v", p)
	}
}

func TestGatewayErrorSurfacesMessageAndCause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"invalid access token","cause":[{"code":2002}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.CreatePreference(context.Background(), "bad-key", PreferenceRequest{})
	if err == nil {
		t.Fatal("want error for 400 response")
	}

	var ge *GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("err type = %T, want *GatewayError", err)
	}
	if ge.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", ge.StatusCode)
	}
	if ge.Message != "invalid access token" {
		t.Errorf("message = %q", ge.Message)
	}
	if !strings.Contains(ge.Error(), "2002") {
		t.Errorf("cause detail missing from message: %s", ge.Error())
	}
}

func TestGatewayErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	_, err := client.GetPayment(context.Background(), "key", "1")

	var ge *GatewayError
	if !errors.As(err, &ge) {
		t.Fatalf("err type = %T, want *GatewayError", err)
	}
	if ge.Message != "unknown error" {
		t.Errorf("message = %q, want fallback", ge.Message)
	}
}
