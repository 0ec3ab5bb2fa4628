package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFXRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"USD":1,"KRW":1352.5,"JPY":150.1}}`))
	}))
	defer srv.Close()

	fx := NewFXRate(srv.URL, "krw", srv.Client())
	if fx.Currency() != "KRW" {
		t.Errorf("Currency() = %q, want KRW", fx.Currency())
	}
	rate, err := fx.USDRate(context.Background())
	if err != nil {
		t.Fatalf("USDRate() error: %v", err)
	}
	if rate != 1352.5 {
		t.Errorf("USDRate() = %v, want 1352.5", rate)
	}
}

func TestFXRateMissingCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"base":"USD","rates":{"USD":1}}`))
	}))
	defer srv.Close()

	fx := NewFXRate(srv.URL, "KRW", srv.Client())
	rate, err := fx.USDRate(context.Background())
	if !errors.Is(err, ErrRateMissing) {
		t.Fatalf("error = %v, want ErrRateMissing", err)
	}
	if rate != 0 {
		t.Errorf("rate = %v, want 0", rate)
	}
}

func TestFXRateFallbackPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/json", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<div class="rate"><span class="value">₩1,348.20 KRW</span></div>
			<div class="rate"><span class="value">999</span></div>
		</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fx := NewFXRate(srv.URL+"/json", "KRW", srv.Client(), WithFallback(srv.URL+"/page", ".rate .value"))
	rate, err := fx.USDRate(context.Background())
	if err != nil {
		t.Fatalf("USDRate() error: %v", err)
	}
	if rate != 1348.20 {
		t.Errorf("USDRate() = %v, want 1348.20", rate)
	}
}

func TestFXRateFallbackFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/page" {
			w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
			return
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	fx := NewFXRate(srv.URL+"/json", "KRW", srv.Client(), WithFallback(srv.URL+"/page", "#rate"))
	_, err := fx.USDRate(context.Background())
	if err == nil {
		t.Fatal("expected error when both sources fail")
	}
	var httpErr *ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Errorf("joined error should keep the JSON failure, got %v", err)
	}
	if !errors.Is(err, ErrRateMissing) {
		t.Errorf("joined error should keep the fallback failure, got %v", err)
	}
}

func TestParseRateText(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"1,352.50", 1352.5, false},
		{"₩1,348.20 KRW", 1348.2, false},
		{"1352", 1352, false},
		{"N/A", 0, true},
		{"0.00", 0, true},
	}
	for _, tt := range tests {
		got, err := parseRateText(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRateText(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRateText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
