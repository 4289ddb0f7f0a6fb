package ddns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRefresh(t *testing.T) {
	var gotUpdate map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/getip":
			w.Write([]byte("203.0.113.7\n"))
		case "/update":
			gotUpdate = map[string]string{
				"host":     r.URL.Query().Get("host"),
				"domain":   r.URL.Query().Get("domain"),
				"password": r.URL.Query().Get("password"),
				"ip":       r.URL.Query().Get("ip"),
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("pw")
	c.baseURL = srv.URL

	ip, err := c.Refresh(context.Background(), "www", "example.com")
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if ip != "203.0.113.7" {
		t.Errorf("ip = %q, want 203.0.113.7", ip)
	}
	want := map[string]string{"host": "www", "domain": "example.com", "password": "pw", "ip": "203.0.113.7"}
	for k, v := range want {
		if gotUpdate[k] != v {
			t.Errorf("update param %s = %q, want %q", k, gotUpdate[k], v)
		}
	}
}

func TestPublicIP_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient("pw")
	c.baseURL = srv.URL

	if _, err := c.PublicIP(context.Background()); err == nil {
		t.Error("expected error for empty ip response")
	}
}

func TestUpdate_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("pw")
	c.baseURL = srv.URL

	if err := c.Update(context.Background(), "www", "example.com", "203.0.113.7"); err == nil {
		t.Error("expected error for non-200 status")
	}
}
