package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fambudget/internal/core"
	"fambudget/internal/services"
	"fambudget/internal/storage"
)

// testServer wires a full server against a throwaway database.
func testServer(t *testing.T) (*httptest.Server, *storage.SQLiteRepository) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	catalog := services.NewCachedCatalog(repo, 100, time.Minute)
	ruleService := services.NewRuleService(repo, catalog)
	ledgerService := services.NewLedgerService(repo, catalog)
	processor := services.NewRecurringProcessor(repo, services.NewDirectNotifier(repo))

	srv := NewServer(":0", repo, ruleService, ledgerService, processor, 10000)
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return ts, repo
}

func doJSON(t *testing.T, method, url string, userID int64, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

// setup creates a user, their family and an expense category over the API.
func setup(t *testing.T, ts *httptest.Server) (userID, familyID, categoryID int64) {
	t.Helper()

	resp := doJSON(t, http.MethodPost, ts.URL+"/users", 0, map[string]string{"name": "Ada", "email": "ada@example.com"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user: status %d", resp.StatusCode)
	}
	user := decode[core.User](t, resp)

	resp = doJSON(t, http.MethodPost, ts.URL+"/families", user.ID, map[string]string{"name": "Testers"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create family: status %d", resp.StatusCode)
	}
	family := decode[core.Family](t, resp)

	resp = doJSON(t, http.MethodPost, ts.URL+"/categories", user.ID, map[string]any{
		"family_id": family.ID, "name": "Rent", "kind": "expense",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create category: status %d", resp.StatusCode)
	}
	category := decode[core.Category](t, resp)

	return user.ID, family.ID, category.ID
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := testServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}

func TestMissingIdentityRejected(t *testing.T) {
	ts, _ := testServer(t)
	resp := doJSON(t, http.MethodPost, ts.URL+"/families", 0, map[string]string{"name": "X"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRuleLifecycle(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/recurring", uid, map[string]any{
		"family_id": fid, "category_id": cid, "kind": "expense",
		"amount": "1200.00", "description": "rent",
		"frequency": "monthly", "start_date": "2024-01-01", "day_of_month": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rule: status %d", resp.StatusCode)
	}
	rule := decode[core.RecurringRule](t, resp)
	if !rule.Active {
		t.Error("rule not created active")
	}
	if !rule.NextOccurrence.Equal(core.NewDate(2024, 2, 1)) {
		t.Errorf("next occurrence = %s, want 2024-02-01", rule.NextOccurrence)
	}
	if rule.Amount.Cents != 120000 {
		t.Errorf("amount = %d cents, want 120000", rule.Amount.Cents)
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/recurring?family_id=%d", ts.URL, fid), uid, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list rules: status %d", resp.StatusCode)
	}
	if rules := decode[[]core.RecurringRule](t, resp); len(rules) != 1 {
		t.Fatalf("listed %d rules, want 1", len(rules))
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/recurring/active", uid, map[string]any{
		"family_id": fid, "id": rule.ID, "is_active": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pause rule: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/recurring?family_id=%d&id=%d", ts.URL, fid, rule.ID), uid, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete rule: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/recurring?family_id=%d&id=%d", ts.URL, fid, rule.ID), uid, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted rule: status %d, want 404", resp.StatusCode)
	}
}

func TestRuleUpdateKeepsRuleActive(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/recurring", uid, map[string]any{
		"family_id": fid, "category_id": cid, "kind": "expense",
		"amount": "1200.00", "description": "rent",
		"frequency": "monthly", "start_date": "2024-01-01", "day_of_month": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rule: status %d", resp.StatusCode)
	}
	rule := decode[core.RecurringRule](t, resp)

	// An amount-only edit carries no is_active field; the rule must stay
	// active and keep materializing.
	resp = doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/recurring?id=%d", ts.URL, rule.ID), uid, map[string]any{
			"family_id": fid, "category_id": cid, "kind": "expense",
			"amount": "1300.00", "description": "rent",
			"frequency": "monthly", "day_of_month": 1,
		})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update rule: status %d", resp.StatusCode)
	}
	updated := decode[core.RecurringRule](t, resp)
	if !updated.Active {
		t.Fatal("rule was deactivated by the update")
	}
	if updated.Amount.Cents != 130000 {
		t.Errorf("amount = %d cents, want 130000", updated.Amount.Cents)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/recurring/process", uid, map[string]any{
		"family_id": fid, "as_of": "2024-02-15",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process: status %d", resp.StatusCode)
	}
	if result := decode[services.ProcessResult](t, resp); result.CreatedCount != 1 {
		t.Errorf("edited rule did not materialize: created %d, want 1", result.CreatedCount)
	}
}

func TestRuleCategoryMismatch(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/recurring", uid, map[string]any{
		"family_id": fid, "category_id": cid, "kind": "income",
		"amount": "2500.00", "description": "salary against expense category",
		"frequency": "monthly", "start_date": "2024-01-01",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRuleValidationErrors(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{
			name: "zero amount",
			body: map[string]any{
				"family_id": fid, "category_id": cid, "kind": "expense",
				"amount": "0", "frequency": "monthly", "start_date": "2024-01-01",
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad frequency",
			body: map[string]any{
				"family_id": fid, "category_id": cid, "kind": "expense",
				"amount": "10.00", "frequency": "hourly", "start_date": "2024-01-01",
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad date",
			body: map[string]any{
				"family_id": fid, "category_id": cid, "kind": "expense",
				"amount": "10.00", "frequency": "daily", "start_date": "01/01/2024",
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown category",
			body: map[string]any{
				"family_id": fid, "category_id": 9999, "kind": "expense",
				"amount": "10.00", "frequency": "daily", "start_date": "2024-01-01",
			},
			want: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.URL+"/recurring", uid, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestNonMemberForbidden(t *testing.T) {
	ts, _ := testServer(t)
	_, fid, _ := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/users", 0, map[string]string{"name": "Eve", "email": "eve@example.com"})
	outsider := decode[core.User](t, resp)

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/recurring?family_id=%d", ts.URL, fid), outsider.ID, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestProcessEndpoint(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/recurring", uid, map[string]any{
		"family_id": fid, "category_id": cid, "kind": "expense",
		"amount": "1200.00", "description": "rent",
		"frequency": "monthly", "start_date": "2024-01-01", "day_of_month": 1,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rule: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/recurring/process", uid, map[string]any{
		"family_id": fid, "as_of": "2024-02-15",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process: status %d", resp.StatusCode)
	}
	result := decode[services.ProcessResult](t, resp)
	if result.CreatedCount != 1 {
		t.Fatalf("created %d, want 1", result.CreatedCount)
	}

	// The materialized transaction lands in February dated 2024-02-01
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/transactions?family_id=%d&year=2024&month=2", ts.URL, fid), uid, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list transactions: status %d", resp.StatusCode)
	}
	txs := decode[[]core.Transaction](t, resp)
	if len(txs) != 1 || !txs[0].Date.Equal(core.NewDate(2024, 2, 1)) {
		t.Fatalf("transactions = %+v", txs)
	}

	// Second call at the same date is a no-op: next occurrence moved to March
	resp = doJSON(t, http.MethodPost, ts.URL+"/recurring/process", uid, map[string]any{
		"family_id": fid, "as_of": "2024-02-15",
	})
	result = decode[services.ProcessResult](t, resp)
	if result.CreatedCount != 0 {
		t.Errorf("second call created %d, want 0", result.CreatedCount)
	}

	// The direct notifier left a notification row
	resp = doJSON(t, http.MethodGet,
		fmt.Sprintf("%s/notifications?family_id=%d&unread=true", ts.URL, fid), uid, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list notifications: status %d", resp.StatusCode)
	}
	if notes := decode[[]core.Notification](t, resp); len(notes) != 1 {
		t.Errorf("notifications = %d, want 1", len(notes))
	}
}

func TestTransactionsEndpoint(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/transactions", uid, map[string]any{
		"family_id": fid, "category_id": cid, "kind": "expense",
		"amount": "45,99", "description": "groceries", "date": "2024-03-10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create transaction: status %d", resp.StatusCode)
	}
	tx := decode[core.Transaction](t, resp)
	if tx.Amount.Cents != 4599 {
		t.Errorf("amount = %d cents, want 4599", tx.Amount.Cents)
	}

	resp = doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/transactions?family_id=%d&id=%d", ts.URL, fid, tx.ID), uid, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete transaction: status %d", resp.StatusCode)
	}
}

func TestBudgetAndGoalEndpoints(t *testing.T) {
	ts, _ := testServer(t)
	uid, fid, cid := setup(t, ts)

	resp := doJSON(t, http.MethodPost, ts.URL+"/budgets", uid, map[string]any{
		"family_id": fid, "category_id": cid, "year": 2024, "month": 3, "limit": "500.00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create budget: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/goals", uid, map[string]any{
		"family_id": fid, "name": "Vacation", "target": "3000.00",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create goal: status %d", resp.StatusCode)
	}
	goal := decode[core.Goal](t, resp)

	resp = doJSON(t, http.MethodPost, ts.URL+"/goals/contribute", uid, map[string]any{
		"family_id": fid, "id": goal.ID, "amount": "250.00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("contribute: status %d", resp.StatusCode)
	}
	updated := decode[core.Goal](t, resp)
	if updated.Saved.Cents != 25000 {
		t.Errorf("saved = %d cents, want 25000", updated.Saved.Cents)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := testServer(t)
	uid, _, _ := setup(t, ts)

	resp := doJSON(t, http.MethodPut, ts.URL+"/notifications", uid, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
