package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"expensed/internal/auth"
	"expensed/internal/cache"
	"expensed/internal/core"
	"expensed/internal/services"
	"expensed/internal/storage/jsonfile"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)

	authSvc := auth.NewService(store, "test-secret", time.Hour, bcrypt.MinCost, nil)
	expenseSvc := services.NewExpenseService(store, nil, cache.NewLRUCache[core.Summary](16, time.Minute), nil)

	srv := NewServer(authSvc, expenseSvc, Options{RateLimitPerMinute: 1000})
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), "body: %s", rec.Body.String())
	return m
}

func registerAndLogin(t *testing.T, srv *Server, username string) string {
	t.Helper()
	creds := map[string]string{"username": username, "password": "hunter22"}
	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, srv, http.MethodPost, "/api/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	token, _ := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestRegister(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User created successfully", decodeBody(t, rec)["message"])

	t.Run("duplicate username", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "pw"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "already exists")
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{"username": "bob"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString("{nope"))
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{"username": "alice", "password": "pw"})

	rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "alice", body["username"])

	t.Run("padded username echoes back in stored form", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{"username": " alice ", "password": "pw"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "alice", decodeBody(t, rec)["username"])
	})

	t.Run("wrong password and unknown user look identical", func(t *testing.T) {
		wrongPw := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "nope"})
		unknown := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{"username": "ghost", "password": "pw"})
		assert.Equal(t, http.StatusUnauthorized, wrongPw.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrongPw.Body.String(), unknown.Body.String())
	})
}

func TestExpensesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/expenses"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodPut, "/api/expenses/some-id"},
		{http.MethodDelete, "/api/expenses/some-id"},
		{http.MethodGet, "/api/expenses/summary"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := doJSON(t, srv, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			rec = doJSON(t, srv, tc.method, tc.path, "garbage-token", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestCreateExpense(t *testing.T) {
	srv := newTestServer(t)
	token := registerAndLogin(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
		"description": "Lunch",
		"amount":      12.5,
		"category":    "Food",
		"date":        "2024-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "Lunch", body["description"])
	assert.Equal(t, 12.5, body["amount"], "amount is a bare JSON number")
	assert.Equal(t, "2024-01-05", body["date"])

	t.Run("amount as string also accepted", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, map[string]any{
			"description": "Bus",
			"amount":      "2,75",
			"category":    "Transportation",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 2.75, decodeBody(t, rec)["amount"])
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := []map[string]any{
			{"amount": 12.5, "category": "Food"},                             // no description
			{"description": "x", "category": "Food"},                        // no amount
			{"description": "x", "amount": 0, "category": "Food"},           // zero amount
			{"description": "x", "amount": -3, "category": "Food"},          // negative
			{"description": "x", "amount": 1.005, "category": "Food"},       // sub-cent
			{"description": "x", "amount": 5},                               // no category
			{"description": "x", "amount": 5, "category": "Food", "date": "05/01/2024"}, // bad date
		}
		for i, body := range cases {
			rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d body %s", i, rec.Body.String())
		}
	})
}

func TestListExpensesIsOwnerScoped(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	bob := registerAndLogin(t, srv, "bob")

	for i := 0; i < 2; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/expenses", alice, map[string]any{
			"description": fmt.Sprintf("alice-%d", i), "amount": 10, "category": "Food",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", bob, map[string]any{
		"description": "bob-0", "amount": 5, "category": "Other",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/expenses", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "alice-0", list[0]["description"])
	assert.Equal(t, "alice-1", list[1]["description"])

	t.Run("fresh user sees empty array", func(t *testing.T) {
		carol := registerAndLogin(t, srv, "carol")
		rec := doJSON(t, srv, http.MethodGet, "/api/expenses", carol, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}

func TestUpdateExpense(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	bob := registerAndLogin(t, srv, "bob")

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", alice, map[string]any{
		"description": "Lunch", "amount": 12.5, "category": "Food", "date": "2024-01-05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, srv, http.MethodPut, "/api/expenses/"+id, alice, map[string]any{
		"description": "Team lunch",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "Team lunch", body["description"])
	assert.Equal(t, 12.5, body["amount"], "absent fields preserved")
	assert.Equal(t, "Food", body["category"])
	assert.NotEmpty(t, body["updatedAt"])

	t.Run("foreign owner gets 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPut, "/api/expenses/"+id, bob, map[string]any{"description": "hijack"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPut, "/api/expenses/nope", alice, map[string]any{"description": "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("present field validated", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodPut, "/api/expenses/"+id, alice, map[string]any{"amount": -1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteExpense(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")
	bob := registerAndLogin(t, srv, "bob")

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", alice, map[string]any{
		"description": "Lunch", "amount": 12.5, "category": "Food",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decodeBody(t, rec)["id"].(string)

	rec = doJSON(t, srv, http.MethodDelete, "/api/expenses/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "foreign delete reads as not found")

	rec = doJSON(t, srv, http.MethodDelete, "/api/expenses/"+id, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Expense deleted successfully", decodeBody(t, rec)["message"])

	rec = doJSON(t, srv, http.MethodDelete, "/api/expenses/"+id, alice, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSummary(t *testing.T) {
	srv := newTestServer(t)
	alice := registerAndLogin(t, srv, "alice")

	t.Run("empty summary", func(t *testing.T) {
		rec := doJSON(t, srv, http.MethodGet, "/api/expenses/summary", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, float64(0), body["total"])
		assert.Equal(t, float64(0), body["count"])
		assert.Empty(t, body["categories"])
	})

	for _, e := range []map[string]any{
		{"description": "Lunch", "amount": 12.5, "category": "Food"},
		{"description": "Dinner", "amount": 7.5, "category": "Food"},
		{"description": "Bus", "amount": 2.75, "category": "Transportation"},
	} {
		rec := doJSON(t, srv, http.MethodPost, "/api/expenses", alice, e)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/expenses/summary", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 22.75, body["total"])
	assert.Equal(t, float64(3), body["count"])
	categories, _ := body["categories"].(map[string]any)
	assert.Equal(t, float64(20), categories["Food"])
	assert.Equal(t, 2.75, categories["Transportation"])
}

func TestRateLimitOnAuthRoutes(t *testing.T) {
	store, err := jsonfile.New(t.TempDir())
	require.NoError(t, err)
	authSvc := auth.NewService(store, "test-secret", time.Hour, bcrypt.MinCost, nil)
	expenseSvc := services.NewExpenseService(store, nil, nil, nil)
	srv := NewServer(authSvc, expenseSvc, Options{RateLimitPerMinute: 2})
	t.Cleanup(srv.Close)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv, http.MethodPost, "/api/login", "", map[string]string{"username": "a", "password": "b"})
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Equal(t, http.StatusUnauthorized, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}
