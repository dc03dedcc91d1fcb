package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bcnelson/support-portal/internal/api"
	"github.com/bcnelson/support-portal/internal/domain"
	"github.com/bcnelson/support-portal/internal/metrics"
	"github.com/bcnelson/support-portal/internal/service"
	"github.com/bcnelson/support-portal/internal/storage/memory"
	"go.uber.org/zap"
)

// testServer creates a test server with in-memory storage
type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer() *testServer {
	store := memory.New()
	m := metrics.New()
	svcs := service.New(store, zap.NewNop(), m, time.UTC)

	handler := api.NewRouter(svcs, zap.NewNop(), api.Options{
		AllowedOrigins: []string{"*"},
		Metrics:        m,
	})

	return &testServer{
		handler: handler,
		store:   store,
	}
}

func (ts *testServer) request(method, path string, body any, customerID string) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if customerID != "" {
		req.Header.Set("X-Customer-ID", customerID)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) createKey(t *testing.T, customerID string) domain.IssuedAPIKey {
	t.Helper()
	rr := ts.request("POST", "/api/keys/create", map[string]any{"customer_id": customerID}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Failed to create key: %d - %s", rr.Code, rr.Body.String())
	}
	var issued domain.IssuedAPIKey
	if err := json.Unmarshal(rr.Body.Bytes(), &issued); err != nil {
		t.Fatalf("Failed to decode key: %v", err)
	}
	return issued
}

func (ts *testServer) listKeys(t *testing.T, customerID string) []map[string]any {
	t.Helper()
	rr := ts.request("GET", "/api/keys/list", nil, customerID)
	if rr.Code != http.StatusOK {
		t.Fatalf("Failed to list keys: %d - %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode key list: %v", err)
	}
	return resp.Keys
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/health", nil, "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestCustomerIDRequired(t *testing.T) {
	ts := newTestServer()

	routes := []struct {
		method string
		path   string
	}{
		{"POST", "/api/keys/rotate"},
		{"GET", "/api/keys/list"},
		{"DELETE", "/api/keys/1"},
		{"GET", "/api/usage/stats"},
		{"GET", "/api/billing/history"},
		{"POST", "/api/tickets/create"},
		{"GET", "/api/tickets/list"},
		{"GET", "/api/tickets/1/responses"},
	}

	for _, route := range routes {
		rr := ts.request(route.method, route.path, nil, "")
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected status 401, got %d", route.method, route.path, rr.Code)
		}
	}

	// Whitespace-only header counts as missing
	req := httptest.NewRequest("GET", "/api/keys/list", nil)
	req.Header.Set("X-Customer-ID", "   ")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for blank header, got %d", rr.Code)
	}

	var apiErr domain.APIError
	_ = json.Unmarshal(rr.Body.Bytes(), &apiErr)
	if apiErr.Code != http.StatusUnauthorized {
		t.Errorf("Expected error code 401 in body, got %d", apiErr.Code)
	}
}

func TestCreateAPIKey(t *testing.T) {
	ts := newTestServer()

	issued := ts.createKey(t, "cust_1")

	if !strings.HasPrefix(issued.Key, "sk_") {
		t.Errorf("Expected key with sk_ prefix, got %s", issued.Key)
	}
	if issued.Name != domain.DefaultAPIKeyName {
		t.Errorf("Expected name %q, got %q", domain.DefaultAPIKeyName, issued.Name)
	}
	if issued.Warning == "" {
		t.Error("Expected a warning about the key being shown once")
	}

	// Named key
	rr := ts.request("POST", "/api/keys/create", map[string]any{"customer_id": "cust_1", "name": "CI"}, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var named domain.IssuedAPIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &named)
	if named.Name != "CI" {
		t.Errorf("Expected name CI, got %s", named.Name)
	}
	if named.Key == issued.Key {
		t.Error("Expected distinct keys")
	}

	// Missing customer id
	rr = ts.request("POST", "/api/keys/create", map[string]any{"name": "x"}, "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestListAPIKeysHidesSecrets(t *testing.T) {
	ts := newTestServer()

	first := ts.createKey(t, "cust_1")
	second := ts.createKey(t, "cust_1")

	rr := ts.request("GET", "/api/keys/list", nil, "cust_1")
	body := rr.Body.String()
	if strings.Contains(body, first.Key) || strings.Contains(body, domain.HashAPIKey(first.Key)) {
		t.Error("Key list must not expose key material")
	}

	keys := ts.listKeys(t, "cust_1")
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(keys))
	}
	// Newest first
	if int64(keys[0]["key_id"].(float64)) != second.ID {
		t.Errorf("Expected newest key %d first, got %v", second.ID, keys[0]["key_id"])
	}
	if keys[0]["last_used"] != nil {
		t.Errorf("Expected null last_used, got %v", keys[0]["last_used"])
	}
	if keys[0]["revoked"] != false {
		t.Errorf("Expected revoked false, got %v", keys[0]["revoked"])
	}
}

func TestRotateAPIKey(t *testing.T) {
	ts := newTestServer()

	old := ts.createKey(t, "cust_1")

	rr := ts.request("POST", "/api/keys/rotate", map[string]string{"old_key": old.Key}, "cust_1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d - %s", rr.Code, rr.Body.String())
	}
	var rotated domain.IssuedAPIKey
	_ = json.Unmarshal(rr.Body.Bytes(), &rotated)
	if rotated.Key == old.Key || !strings.HasPrefix(rotated.Key, "sk_") {
		t.Errorf("Expected a fresh key, got %s", rotated.Key)
	}
	if rotated.Warning != "Old key has been revoked" {
		t.Errorf("Unexpected warning %q", rotated.Warning)
	}

	keys := ts.listKeys(t, "cust_1")
	if len(keys) != 2 {
		t.Fatalf("Expected 2 keys after rotation, got %d", len(keys))
	}
	for _, k := range keys {
		id := int64(k["key_id"].(float64))
		switch id {
		case old.ID:
			if k["revoked"] != true {
				t.Error("Expected old key to be revoked")
			}
		case rotated.ID:
			if k["revoked"] != false {
				t.Error("Expected new key to be active")
			}
			if k["name"] != domain.RotatedAPIKeyName {
				t.Errorf("Expected name %q, got %v", domain.RotatedAPIKeyName, k["name"])
			}
		default:
			t.Errorf("Unexpected key id %d", id)
		}
	}

	// Rotating the revoked key again fails
	rr = ts.request("POST", "/api/keys/rotate", map[string]string{"old_key": old.Key}, "cust_1")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}

	// Another customer cannot rotate the new key
	rr = ts.request("POST", "/api/keys/rotate", map[string]string{"old_key": rotated.Key}, "cust_2")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for foreign key, got %d", rr.Code)
	}
	if len(ts.listKeys(t, "cust_2")) != 0 {
		t.Error("Failed rotation must not create keys")
	}

	// Missing old_key
	rr = ts.request("POST", "/api/keys/rotate", map[string]string{}, "cust_1")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestRevokeAPIKey(t *testing.T) {
	ts := newTestServer()

	key := ts.createKey(t, "cust_1")
	path := "/api/keys/" + strconv.FormatInt(key.ID, 10)

	// Another customer's revoke reports success but changes nothing
	rr := ts.request("DELETE", path, nil, "cust_2")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if ts.listKeys(t, "cust_1")[0]["revoked"] != false {
		t.Fatal("Foreign revoke must not revoke the key")
	}

	rr = ts.request("DELETE", path, nil, "cust_1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["message"] != "API key revoked" {
		t.Errorf("Unexpected message %q", resp["message"])
	}
	if ts.listKeys(t, "cust_1")[0]["revoked"] != true {
		t.Error("Expected key to be revoked")
	}

	// Repeating is not an error
	rr = ts.request("DELETE", path, nil, "cust_1")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 on repeat, got %d", rr.Code)
	}

	// Unknown id
	rr = ts.request("DELETE", "/api/keys/9999", nil, "cust_1")
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 for unknown id, got %d", rr.Code)
	}

	// Non-numeric id
	rr = ts.request("DELETE", "/api/keys/abc", nil, "cust_1")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestUsageStatsEmpty(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("GET", "/api/usage/stats", nil, "cust_1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)

	expected := map[string]float64{
		"today":              0,
		"this_month":         0,
		"all_time":           0,
		"current_rate_limit": 1000,
	}
	for field, want := range expected {
		if got, ok := resp[field].(float64); !ok || got != want {
			t.Errorf("Expected %s = %v, got %v", field, want, resp[field])
		}
	}
	if v, ok := resp["rate_limit_reset"]; !ok || v != nil {
		t.Errorf("Expected rate_limit_reset null, got %v", v)
	}
}

func TestUsageStatsCountsEvents(t *testing.T) {
	ts := newTestServer()
	ctx := testContext(t)

	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := ts.store.CreateUsageEvent(ctx, &domain.UsageEvent{
			CustomerID: "cust_1",
			APIKeyHash: "h",
			Timestamp:  now,
			Endpoint:   "/v1/query",
			Success:    true,
		}); err != nil {
			t.Fatalf("Failed to create usage event: %v", err)
		}
	}
	// Older than this month
	if err := ts.store.CreateUsageEvent(ctx, &domain.UsageEvent{
		CustomerID: "cust_1",
		APIKeyHash: "h",
		Timestamp:  now.AddDate(0, -2, 0),
		Endpoint:   "/v1/query",
	}); err != nil {
		t.Fatalf("Failed to create usage event: %v", err)
	}

	rr := ts.request("GET", "/api/usage/stats", nil, "cust_1")
	var stats domain.UsageStats
	_ = json.Unmarshal(rr.Body.Bytes(), &stats)

	if stats.Today != 3 || stats.ThisMonth != 3 || stats.AllTime != 4 {
		t.Errorf("Unexpected counts: %+v", stats)
	}
	if stats.CurrentRateLimit != 997 {
		t.Errorf("Expected rate limit 997, got %d", stats.CurrentRateLimit)
	}
	if stats.RateLimitReset == nil || !stats.RateLimitReset.After(now) {
		t.Errorf("Expected reset after now, got %v", stats.RateLimitReset)
	}

	// Other customers see nothing
	rr = ts.request("GET", "/api/usage/stats", nil, "cust_2")
	var other domain.UsageStats
	_ = json.Unmarshal(rr.Body.Bytes(), &other)
	if other.AllTime != 0 {
		t.Errorf("Expected no usage for cust_2, got %d", other.AllTime)
	}
}

func TestBillingHistory(t *testing.T) {
	ts := newTestServer()
	ctx := testContext(t)

	rr := ts.request("GET", "/api/billing/history", nil, "cust_1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("Expected empty array, got %s", rr.Body.String())
	}

	base := time.Now().UTC().AddDate(-2, 0, 0)
	for i := 0; i < 14; i++ {
		if err := ts.store.CreateBillingRecord(ctx, &domain.BillingRecord{
			CustomerID: "cust_1",
			InvoiceID:  "inv_" + strconv.Itoa(i),
			Amount:     float64(i) + 0.5,
			Status:     "paid",
			CreatedAt:  base.AddDate(0, i, 0),
		}); err != nil {
			t.Fatalf("Failed to create billing record: %v", err)
		}
	}

	rr = ts.request("GET", "/api/billing/history", nil, "cust_1")
	var items []domain.BillingHistoryItem
	if err := json.Unmarshal(rr.Body.Bytes(), &items); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(items) != domain.BillingHistoryLimit {
		t.Fatalf("Expected %d items, got %d", domain.BillingHistoryLimit, len(items))
	}
	if items[0].InvoiceID != "inv_13" {
		t.Errorf("Expected newest invoice first, got %s", items[0].InvoiceID)
	}
	if items[0].Description != domain.DefaultBillingDescription {
		t.Errorf("Expected default description, got %q", items[0].Description)
	}

	rr = ts.request("GET", "/api/billing/history", nil, "cust_2")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("Expected empty array for cust_2, got %s", rr.Body.String())
	}
}

func TestTicketWithAutoResponse(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("POST", "/api/tickets/create", map[string]string{
		"subject": "Need to reset key",
		"message": "My API key was leaked",
	}, "cust_1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d - %s", rr.Code, rr.Body.String())
	}

	var created domain.CreateTicketResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if !created.AIResponded {
		t.Error("Expected ai_responded true")
	}
	if created.Status != domain.TicketStatusOpen {
		t.Errorf("Expected status open, got %s", created.Status)
	}
	if created.Message != "Ticket created successfully" {
		t.Errorf("Unexpected message %q", created.Message)
	}

	rr = ts.request("GET", "/api/tickets/"+strconv.FormatInt(created.TicketID, 10)+"/responses", nil, "cust_1")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var thread domain.TicketResponseList
	_ = json.Unmarshal(rr.Body.Bytes(), &thread)
	if len(thread.Responses) != 1 {
		t.Fatalf("Expected 1 response, got %d", len(thread.Responses))
	}
	if thread.Responses[0].FromAgent {
		t.Error("Expected automated response to have from_agent false")
	}
	if !strings.Contains(thread.Responses[0].Message, "Rotate Key") {
		t.Errorf("Expected key rotation guidance, got %q", thread.Responses[0].Message)
	}

	rr = ts.request("GET", "/api/tickets/list", nil, "cust_1")
	var list domain.TicketList
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list.Tickets) != 1 {
		t.Fatalf("Expected 1 ticket, got %d", len(list.Tickets))
	}
	if list.Tickets[0].Category != domain.DefaultTicketCategory {
		t.Errorf("Expected default category, got %s", list.Tickets[0].Category)
	}
	if !list.Tickets[0].AIResponded {
		t.Error("Expected listed ticket to be ai_responded")
	}
}

func TestTicketWithoutAutoResponse(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("POST", "/api/tickets/create", map[string]string{
		"subject":  "Hello",
		"message":  "Just saying hi",
		"category": "feedback",
	}, "cust_1")
	var created domain.CreateTicketResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	if created.AIResponded {
		t.Error("Expected ai_responded false")
	}

	rr = ts.request("GET", "/api/tickets/"+strconv.FormatInt(created.TicketID, 10)+"/responses", nil, "cust_1")
	var thread domain.TicketResponseList
	_ = json.Unmarshal(rr.Body.Bytes(), &thread)
	if thread.Responses == nil || len(thread.Responses) != 0 {
		t.Errorf("Expected empty responses array, got %s", rr.Body.String())
	}
}

func TestTicketIsolation(t *testing.T) {
	ts := newTestServer()

	rr := ts.request("POST", "/api/tickets/create", map[string]string{
		"subject": "Billing question",
		"message": "Where is my invoice?",
	}, "cust_1")
	var created domain.CreateTicketResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &created)
	path := "/api/tickets/" + strconv.FormatInt(created.TicketID, 10) + "/responses"

	rr = ts.request("GET", path, nil, "cust_2")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for foreign ticket, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/tickets/9999/responses", nil, "cust_1")
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown ticket, got %d", rr.Code)
	}

	rr = ts.request("GET", "/api/tickets/list", nil, "cust_2")
	var list domain.TicketList
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if list.Tickets == nil || len(list.Tickets) != 0 {
		t.Errorf("Expected empty tickets array, got %s", rr.Body.String())
	}
}

func TestTicketValidation(t *testing.T) {
	ts := newTestServer()

	tests := []struct {
		name string
		body any
	}{
		{"missing subject", map[string]string{"message": "m"}},
		{"missing message", map[string]string{"subject": "s"}},
		{"subject too long", map[string]string{"subject": strings.Repeat("a", 201), "message": "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request("POST", "/api/tickets/create", tt.body, "cust_1")
			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
		})
	}

	// Malformed JSON
	req := httptest.NewRequest("POST", "/api/tickets/create", strings.NewReader("{"))
	req.Header.Set("X-Customer-ID", "cust_1")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed JSON, got %d", rr.Code)
	}
}

func TestRequestIDAndMetrics(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	if rr.Header().Get("X-Request-ID") != "req-123" {
		t.Errorf("Expected request id to be echoed, got %q", rr.Header().Get("X-Request-ID"))
	}

	ts.createKey(t, "cust_1")

	rr = ts.request("GET", "/metrics", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "support_portal_http_requests_total") {
		t.Error("Expected request counter in metrics output")
	}
	if !strings.Contains(body, `route="/api/keys/create"`) {
		t.Error("Expected route label in metrics output")
	}
}

// testContext mirrors testing.T.Context (Go 1.24+): canceled when the test ends.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
