package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestAdminAuthRejectsNonAdmin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/api/v1/admin/auth", `{"externalId":"701"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusUnauthorized, rr.Body.String())
	}
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/api/v1/admin/channels", `{"channelId":"@news"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	rr = ts.post(t, "/api/v1/admin/channels", `{"channelId":"@news"}`,
		"Authorization", "Bearer not-a-token")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAdminChannelManagement(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)
	auth := []string{"Authorization", "Bearer " + token}

	rr := ts.post(t, "/api/v1/admin/channels",
		`{"channelId":"@news","title":"News","inviteUrl":"https://chat.example/news"}`, auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("add channel = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/admin/channels", `{"channelId":"@news"}`, auth...)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate channel = %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/admin/channels", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("list channels = %d, body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "@news") {
		t.Fatalf("list body = %q, want to contain @news", rr.Body.String())
	}

	rr = ts.do(t, http.MethodDelete, "/api/v1/admin/channels/@news", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove channel = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodDelete, "/api/v1/admin/channels/@news", "", auth...)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("remove missing channel = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAdminBanBlocksAccess(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)
	auth := []string{"Authorization", "Bearer " + token}
	itemID := ts.createItem(t, "anything", true)

	// The account must exist before it can be banned.
	rr := ts.post(t, "/api/v1/credits/status", `{"externalId":"702"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("seeding account = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/admin/accounts/702/ban", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("ban = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/access/request",
		fmt.Sprintf(`{"externalId":"702","itemId":"%s"}`, itemID))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("banned access = %d, want %d, body=%q", rr.Code, http.StatusForbidden, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/admin/accounts/702/unban", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("unban = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/access/request",
		fmt.Sprintf(`{"externalId":"702","itemId":"%s"}`, itemID))
	if rr.Code != http.StatusOK {
		t.Fatalf("unbanned access = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestAdminTopUpAndZero(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)
	auth := []string{"Authorization", "Bearer " + token}

	rr := ts.post(t, "/api/v1/credits/status", `{"externalId":"703"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("seeding account = %d", rr.Code)
	}

	rr = ts.post(t, "/api/v1/admin/accounts/703/credits", `{"amount":5}`, auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("top up = %d, body=%q", rr.Code, rr.Body.String())
	}
	var result struct {
		Balance int64 `json:"balance"`
	}
	decodeBody(t, rr, &result)
	if result.Balance != 5 {
		t.Fatalf("balance = %d, want 5", result.Balance)
	}

	rr = ts.do(t, http.MethodDelete, "/api/v1/admin/accounts/703/credits", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("zero = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/admin/accounts/703/ledger", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("ledger = %d, body=%q", rr.Code, rr.Body.String())
	}
	var ledger struct {
		Balance int64 `json:"balance"`
		Entries []struct {
			Amount int64 `json:"amount"`
		} `json:"entries"`
	}
	decodeBody(t, rr, &ledger)
	if len(ledger.Entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(ledger.Entries))
	}

	var sum int64
	for _, e := range ledger.Entries {
		sum += e.Amount
	}
	if sum != 0 {
		t.Fatalf("ledger sum = %d, want 0 after zeroing", sum)
	}
}

func TestAdminPremiumGrantBypassesVerification(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)
	auth := []string{"Authorization", "Bearer " + token}
	itemID := ts.createItem(t, "vip content", true)

	rr := ts.post(t, "/api/v1/credits/status", `{"externalId":"704"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("seeding account = %d", rr.Code)
	}

	rr = ts.post(t, "/api/v1/admin/accounts/704/premium", `{"days":30}`, auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("grant premium = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/access/request",
		fmt.Sprintf(`{"externalId":"704","itemId":"%s"}`, itemID))
	if rr.Code != http.StatusOK {
		t.Fatalf("premium access = %d, body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"outcome":"granted"`) {
		t.Fatalf("body = %q, want granted outcome", rr.Body.String())
	}

	rr = ts.do(t, http.MethodDelete, "/api/v1/admin/accounts/704/premium", "", auth...)
	if rr.Code != http.StatusOK {
		t.Fatalf("revoke premium = %d, body=%q", rr.Code, rr.Body.String())
	}
}

func TestAdminAccountNotFound(t *testing.T) {
	ts := newTestServer(t)
	token := ts.adminToken(t)

	rr := ts.post(t, "/api/v1/admin/accounts/999999/ban", "",
		"Authorization", "Bearer "+token)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
