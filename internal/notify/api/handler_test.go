package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cheamigo/cheamigo/internal/notify"
)

type fixture struct {
	server *httptest.Server
	store  *notify.MemoryStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := notify.NewMemoryStore()
	check := notify.URLChecker{AllowPrivate: true}
	d := notify.NewDispatcher(store, notify.DispatcherConfig{MaxAttempts: 1, Timeout: 5 * time.Second}, nil, check)

	mux := http.NewServeMux()
	NewHandler(store, d, check).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &fixture{server: server, store: store}
}

func (f *fixture) do(t *testing.T, method, path string, body any, dst any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestSubscriptionLifecycle(t *testing.T) {
	f := setup(t)

	var created SubscriptionResponse
	code := f.do(t, http.MethodPost, "/api/v1/subscriptions", map[string]any{
		"name":   "familia",
		"url":    "http://127.0.0.1:9/hook",
		"events": []string{"detection.completed"},
	}, &created)
	if code != http.StatusCreated {
		t.Fatalf("create status = %d", code)
	}
	if created.ID == "" || created.Secret == "" || !created.Active || created.Breaker != "closed" {
		t.Errorf("created = %+v", created)
	}

	var got SubscriptionResponse
	if code := f.do(t, http.MethodGet, "/api/v1/subscriptions/"+created.ID, nil, &got); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if got.Secret != "" {
		t.Error("secret returned outside create and rotate")
	}

	var updated SubscriptionResponse
	code = f.do(t, http.MethodPatch, "/api/v1/subscriptions/"+created.ID, map[string]any{
		"active": false,
		"events": []string{"notice", "detection.failed"},
	}, &updated)
	if code != http.StatusOK || updated.Active || len(updated.Events) != 2 {
		t.Errorf("update = %d %+v", code, updated)
	}

	var rotated SubscriptionResponse
	f.do(t, http.MethodPost, "/api/v1/subscriptions/"+created.ID+"/rotate-secret", nil, &rotated)
	if rotated.Secret == "" || rotated.Secret == created.Secret {
		t.Error("secret not rotated")
	}

	var list []SubscriptionResponse
	f.do(t, http.MethodGet, "/api/v1/subscriptions", nil, &list)
	if len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	if code := f.do(t, http.MethodDelete, "/api/v1/subscriptions/"+created.ID, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete status = %d", code)
	}
	if code := f.do(t, http.MethodGet, "/api/v1/subscriptions/"+created.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete = %d", code)
	}
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)

	tests := []map[string]any{
		{"url": "http://127.0.0.1/hook", "events": []string{"notice"}},
		{"name": "x", "url": "http://127.0.0.1/hook"},
		{"name": "x", "url": "http://127.0.0.1/hook", "events": []string{"made.up"}},
		{"name": "x", "url": "gopher://127.0.0.1/hook", "events": []string{"notice"}},
	}
	for _, body := range tests {
		var e ErrorResponse
		if code := f.do(t, http.MethodPost, "/api/v1/subscriptions", body, &e); code != http.StatusBadRequest || e.Error == "" {
			t.Errorf("create %v = %d %q", body, code, e.Error)
		}
	}
}

func TestTestDelivery(t *testing.T) {
	f := setup(t)

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(notify.EventHeader) != "notify.test" {
			t.Errorf("event header = %q", r.Header.Get(notify.EventHeader))
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer endpoint.Close()

	var created SubscriptionResponse
	f.do(t, http.MethodPost, "/api/v1/subscriptions", map[string]any{
		"name":   "panel",
		"url":    endpoint.URL,
		"events": []string{"notice"},
	}, &created)

	var res DeliveryResponse
	if code := f.do(t, http.MethodPost, "/api/v1/subscriptions/"+created.ID+"/test", nil, &res); code != http.StatusOK {
		t.Fatalf("test status = %d", code)
	}
	if res.Outcome != notify.OutcomeDelivered || res.StatusCode != http.StatusAccepted {
		t.Errorf("test delivery = %+v", res)
	}

	var deliveries []DeliveryResponse
	f.do(t, http.MethodGet, "/api/v1/subscriptions/"+created.ID+"/deliveries?limit=10", nil, &deliveries)
	if len(deliveries) != 1 || deliveries[0].EventType != "notify.test" {
		t.Errorf("deliveries = %+v", deliveries)
	}

	if code := f.do(t, http.MethodGet, "/api/v1/subscriptions/"+created.ID+"/deliveries?limit=x", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}
}
