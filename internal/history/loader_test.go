package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emilabos/scrappy-chat/internal/domain"
)

func TestFetchMapsLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/history" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":true,"data":{"lines":["bob:first","joe:second: with colon","garbage without delimiter","ann:third"]}}`)
	}))
	defer srv.Close()

	msgs, err := NewLoader(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// The malformed line is dropped, the rest keep their order.
	if len(msgs) != 3 {
		t.Fatalf("len = %d, want 3", len(msgs))
	}
	want := []struct{ sender, body string }{
		{"bob", "first"},
		{"joe", "second: with colon"},
		{"ann", "third"},
	}
	for i, w := range want {
		if msgs[i].Sender != w.sender || msgs[i].Body != w.body {
			t.Fatalf("msgs[%d] = %+v, want {%s %s}", i, msgs[i], w.sender, w.body)
		}
		if msgs[i].Origin != domain.OriginHistorical {
			t.Fatalf("msgs[%d].Origin = %s", i, msgs[i].Origin)
		}
		if msgs[i].Timestamp == "" {
			t.Fatalf("msgs[%d] missing timestamp", i)
		}
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewLoader(srv.URL).Fetch(context.Background()); !errors.Is(err, domain.ErrHistoryFetch) {
		t.Fatalf("err = %v, want ErrHistoryFetch", err)
	}
}

func TestFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	if _, err := NewLoader(url).Fetch(context.Background()); !errors.Is(err, domain.ErrHistoryFetch) {
		t.Fatalf("err = %v, want ErrHistoryFetch", err)
	}
}

func TestFetchEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"success":false,"error":"transcript unavailable"}`)
	}))
	defer srv.Close()

	if _, err := NewLoader(srv.URL).Fetch(context.Background()); !errors.Is(err, domain.ErrHistoryFetch) {
		t.Fatalf("err = %v, want ErrHistoryFetch", err)
	}
}
