package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carbontracker/internal/core"

	goption "google.golang.org/api/option"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromEnv(context.Background(), "", "")
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background(), "sheet-id", "")
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")

	_, err := NewFromEnv(context.Background(), "sheet-id", "")
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Purchases", 2025, "2025 Purchases"},
		{"Carbon Log", 2024, "2024 Carbon Log"},
		{"", 2023, ""},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestAppendPurchase(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotBody struct {
		Values [][]any `json:"values"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"'2024 Purchases'!A7:H7","updatedRows":1}}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), "sheet-id", "",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.loc = time.UTC

	ref, err := c.AppendPurchase(context.Background(), core.Purchase{
		ID:                  "p-9",
		ProductName:         "Bike",
		PurchaseDate:        "2024-11-02",
		Weight:              core.NewQuantity(12),
		ShippingDistance:    core.NewQuantity(30),
		CarbonEmissionValue: core.NewQuantity(36),
		Category:            core.Travel,
	})
	if err != nil {
		t.Fatalf("AppendPurchase: %v", err)
	}
	if ref != "'2024 Purchases'!A7:H7" {
		t.Errorf("ref = %q", ref)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-id/values/") || !strings.Contains(gotPath, "2024 Purchases") || !strings.HasSuffix(gotPath, ":append") {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotQuery["valueInputOption"][0] != "USER_ENTERED" || gotQuery["insertDataOption"][0] != "INSERT_ROWS" {
		t.Errorf("unexpected query %v", gotQuery)
	}
	if len(gotBody.Values) != 1 || len(gotBody.Values[0]) != 8 || gotBody.Values[0][1] != "Bike" || gotBody.Values[0][7] != "p-9" {
		t.Errorf("unexpected values %v", gotBody.Values)
	}
}

func TestAppendPurchase_UndatedUsesCurrentYear(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), "sheet-id", "Log",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.loc = time.UTC
	c.now = func() time.Time { return time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC) }

	ref, err := c.AppendPurchase(context.Background(), core.Purchase{ID: "x", ProductName: "Tea"})
	if err != nil {
		t.Fatalf("AppendPurchase: %v", err)
	}
	if !strings.Contains(gotPath, "2031 Log") {
		t.Errorf("expected the current year sheet, got %q", gotPath)
	}
	if ref != "'2031 Log'!A:H" {
		t.Errorf("ref should fall back to the requested range, got %q", ref)
	}
}

func TestAppendPurchase_Errors(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetBase: "Purchases", loc: time.UTC, now: time.Now}
	if _, err := c.AppendPurchase(context.Background(), core.Purchase{ProductName: "x"}); err == nil {
		t.Error("expected error without a service")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	}))
	defer srv.Close()
	c, err := New(context.Background(), "sheet-id", "", goption.WithEndpoint(srv.URL+"/"), goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.AppendPurchase(context.Background(), core.Purchase{ProductName: ""}); err == nil {
		t.Error("expected validation error for empty product name")
	}
	if _, err := c.AppendPurchase(context.Background(), core.Purchase{ProductName: "x"}); err == nil {
		t.Error("expected API error to surface")
	}
}
