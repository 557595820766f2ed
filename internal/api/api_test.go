package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chipin/chipin/internal/auth"
	"github.com/chipin/chipin/internal/invite"
	"github.com/chipin/chipin/internal/ledger"
	"github.com/chipin/chipin/internal/middleware"
	"github.com/chipin/chipin/internal/notify"
	"github.com/chipin/chipin/internal/storage/sqlite"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "chipin-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	emitter := notify.NewEmitter(store, notify.LogNotifier{})
	ledgerSvc := ledger.NewService(store, emitter, decimal.Decimal{})
	inviteSvc := invite.NewService(store, emitter, 0)
	jwtManager := auth.NewJWTManager("test-secret-key-for-api-tests", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)

	mux := http.NewServeMux()
	handler := New(store, ledgerSvc, inviteSvc, authenticator, jwtManager)
	handler.Register(mux, func(next http.Handler) http.Handler {
		return middleware.RequireAuth(jwtManager, next)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// doJSON posts body to path with an optional bearer token and decodes
// the JSON response into out (when non-nil), returning the status code.
func doJSON(t *testing.T, server *httptest.Server, method, path, token string, body, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func registerUser(t *testing.T, server *httptest.Server, email, name string) (userID, token string) {
	t.Helper()

	var session sessionResponse
	status := doJSON(t, server, http.MethodPost, "/api/register", "", registerRequest{
		Email: email, DisplayName: name, Password: "correct-horse",
	}, &session)
	if status != http.StatusOK {
		t.Fatalf("register returned %d", status)
	}
	if session.Token == "" {
		t.Fatal("register returned no token")
	}
	return session.User.ID, session.Token
}

func TestAuthFlow(t *testing.T) {
	server := setupTestServer(t)

	t.Run("register then login", func(t *testing.T) {
		registerUser(t, server, "alice@example.com", "Alice")

		var session sessionResponse
		status := doJSON(t, server, http.MethodPost, "/api/login", "", loginRequest{
			Email: "alice@example.com", Password: "correct-horse",
		}, &session)
		if status != http.StatusOK {
			t.Fatalf("login returned %d", status)
		}
		if session.User.Email != "alice@example.com" {
			t.Errorf("login email = %s, want alice@example.com", session.User.Email)
		}
	})

	t.Run("wrong password is unauthorized", func(t *testing.T) {
		status := doJSON(t, server, http.MethodPost, "/api/login", "", loginRequest{
			Email: "alice@example.com", Password: "wrong",
		}, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("got %d, want 401", status)
		}
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		status := doJSON(t, server, http.MethodPost, "/api/register", "", registerRequest{
			Email: "alice@example.com", DisplayName: "Imposter", Password: "correct-horse",
		}, nil)
		if status != http.StatusConflict {
			t.Errorf("got %d, want 409", status)
		}
	})

	t.Run("short password is rejected", func(t *testing.T) {
		status := doJSON(t, server, http.MethodPost, "/api/register", "", registerRequest{
			Email: "short@example.com", DisplayName: "S", Password: "2short",
		}, nil)
		if status != http.StatusBadRequest {
			t.Errorf("got %d, want 400", status)
		}
	})

	t.Run("protected route without token is unauthorized", func(t *testing.T) {
		status := doJSON(t, server, http.MethodPost, "/api/groups", "", createGroupRequest{Name: "Trip"}, nil)
		if status != http.StatusUnauthorized {
			t.Errorf("got %d, want 401", status)
		}
	})
}

func TestLedgerFlow(t *testing.T) {
	server := setupTestServer(t)

	aliceID, aliceToken := registerUser(t, server, "alice@example.com", "Alice")
	bobID, bobToken := registerUser(t, server, "bob@example.com", "Bob")

	var group groupResponse
	status := doJSON(t, server, http.MethodPost, "/api/groups", aliceToken,
		createGroupRequest{Name: "Flat", Currency: "EUR"}, &group)
	if status != http.StatusCreated {
		t.Fatalf("create group returned %d", status)
	}
	if group.CreatedBy != aliceID {
		t.Errorf("created_by = %s, want %s", group.CreatedBy, aliceID)
	}

	t.Run("invite and accept brings bob in", func(t *testing.T) {
		var inv invitationResponse
		status := doJSON(t, server, http.MethodPost, "/api/groups/"+group.ID+"/invitations", aliceToken,
			createInvitationRequest{Email: "bob@example.com"}, &inv)
		if status != http.StatusCreated {
			t.Fatalf("create invitation returned %d", status)
		}

		var accepted acceptInvitationResponse
		status = doJSON(t, server, http.MethodPost, "/api/invitations/accept", bobToken,
			invitationTokenRequest{Token: inv.Token}, &accepted)
		if status != http.StatusOK {
			t.Fatalf("accept invitation returned %d", status)
		}
		if !accepted.MemberCreated {
			t.Error("member_created = false, want true")
		}

		// Accepting again conflicts.
		status = doJSON(t, server, http.MethodPost, "/api/invitations/accept", bobToken,
			invitationTokenRequest{Token: inv.Token}, nil)
		if status != http.StatusConflict {
			t.Errorf("second accept returned %d, want 409", status)
		}
	})

	t.Run("expense, balances, settlement round trip", func(t *testing.T) {
		var created createExpenseResponse
		status := doJSON(t, server, http.MethodPost, "/api/groups/"+group.ID+"/expenses", aliceToken,
			createExpenseRequest{
				PayerID:     aliceID,
				Description: "Groceries",
				Amount:      amount("90"),
				Shares: []shareRequest{
					{UserID: aliceID, Amount: amount("45")},
					{UserID: bobID, Amount: amount("45")},
				},
			}, &created)
		if status != http.StatusCreated {
			t.Fatalf("create expense returned %d", status)
		}
		if len(created.Expense.Splits) != 2 {
			t.Fatalf("got %d splits, want 2", len(created.Expense.Splits))
		}

		var balances balancesResponse
		status = doJSON(t, server, http.MethodGet, "/api/groups/"+group.ID+"/balances", bobToken, nil, &balances)
		if status != http.StatusOK {
			t.Fatalf("balances returned %d", status)
		}
		if !balances.AmountOwes.Equal(amount("45")) {
			t.Errorf("bob owes %s, want 45", balances.AmountOwes)
		}

		var settled settleResponse
		status = doJSON(t, server, http.MethodPost, "/api/groups/"+group.ID+"/settlements", bobToken,
			settleRequest{DebtorID: bobID, CreditorID: aliceID, Amount: amount("45")}, &settled)
		if status != http.StatusOK {
			t.Fatalf("settle returned %d", status)
		}
		if !settled.SettledAmount.Equal(amount("45")) {
			t.Errorf("settled %s, want 45", settled.SettledAmount)
		}
		if settled.SettlementID == "" {
			t.Error("expected a settlement id")
		}

		status = doJSON(t, server, http.MethodGet, "/api/groups/"+group.ID+"/balances", bobToken, nil, &balances)
		if status != http.StatusOK {
			t.Fatalf("balances returned %d", status)
		}
		if !balances.AmountOwes.IsZero() {
			t.Errorf("bob still owes %s after settling, want 0", balances.AmountOwes)
		}
	})

	t.Run("ledger shows the full history", func(t *testing.T) {
		var led groupLedgerResponse
		status := doJSON(t, server, http.MethodGet, "/api/groups/"+group.ID+"/ledger", aliceToken, nil, &led)
		if status != http.StatusOK {
			t.Fatalf("ledger returned %d", status)
		}
		if len(led.Members) != 2 {
			t.Errorf("got %d members, want 2", len(led.Members))
		}
		if len(led.Expenses) != 1 {
			t.Errorf("got %d expenses, want 1", len(led.Expenses))
		}
		if len(led.Settlements) != 1 {
			t.Errorf("got %d settlements, want 1", len(led.Settlements))
		}
	})

	t.Run("notifications record the activity", func(t *testing.T) {
		var notifications []notificationResponse
		status := doJSON(t, server, http.MethodGet, "/api/notifications", bobToken, nil, &notifications)
		if status != http.StatusOK {
			t.Fatalf("list notifications returned %d", status)
		}
		// Bob saw the expense; the settlement notified alice.
		if len(notifications) == 0 {
			t.Fatal("bob has no notifications, want at least the expense")
		}

		status = doJSON(t, server, http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", bobToken, nil, nil)
		if status != http.StatusOK {
			t.Fatalf("mark read returned %d", status)
		}

		// Another user cannot touch bob's notifications.
		status = doJSON(t, server, http.MethodPost, "/api/notifications/"+notifications[0].ID+"/read", aliceToken, nil, nil)
		if status != http.StatusNotFound {
			t.Errorf("cross-user mark read returned %d, want 404", status)
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		_, carolToken := registerUser(t, server, "carol@example.com", "Carol")
		status := doJSON(t, server, http.MethodGet, "/api/groups/"+group.ID+"/balances", carolToken, nil, nil)
		if status != http.StatusForbidden {
			t.Errorf("got %d, want 403", status)
		}
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, server.URL+"/api/groups", bytes.NewReader([]byte(`{"name":"X","bogus":1}`)))
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+aliceToken)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("got %d, want 400", resp.StatusCode)
		}
	})
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
