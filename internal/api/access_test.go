package api

import (
	"fmt"
	"net/http"
	"testing"

	"turnstile/internal/entitlement"
)

func TestAccessVerificationFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	itemID := ts.createItem(t, "handbook", true)

	rr := ts.post(t, "/api/v1/access/request",
		fmt.Sprintf(`{"externalId":"501","displayName":"alice","itemId":"%s"}`, itemID))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var decision entitlement.Decision
	decodeBody(t, rr, &decision)
	if decision.Outcome != entitlement.OutcomeNeedsVerification {
		t.Fatalf("outcome = %q, want %q", decision.Outcome, entitlement.OutcomeNeedsVerification)
	}
	if decision.VerificationURL == "" {
		t.Fatalf("verificationUrl empty, want the shortened link")
	}

	rr = ts.post(t, "/api/v1/verify/callback", fmt.Sprintf(`{"token":"%s"}`, decision.Token))
	if rr.Code != http.StatusOK {
		t.Fatalf("callback status = %d, body=%q", rr.Code, rr.Body.String())
	}

	rr = ts.post(t, "/api/v1/access/claim",
		fmt.Sprintf(`{"externalId":"501","token":"%s"}`, decision.Token))
	if rr.Code != http.StatusOK {
		t.Fatalf("claim status = %d, body=%q", rr.Code, rr.Body.String())
	}

	var granted entitlement.Decision
	decodeBody(t, rr, &granted)
	if granted.Outcome != entitlement.OutcomeGranted {
		t.Fatalf("outcome = %q, want %q", granted.Outcome, entitlement.OutcomeGranted)
	}

	// The token is single-use.
	rr = ts.post(t, "/api/v1/access/claim",
		fmt.Sprintf(`{"externalId":"501","token":"%s"}`, decision.Token))
	if rr.Code != http.StatusConflict {
		t.Fatalf("repeat claim status = %d, want %d, body=%q", rr.Code, http.StatusConflict, rr.Body.String())
	}

	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Error.Code != ErrCodeTokenUsed {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, ErrCodeTokenUsed)
	}
}

func TestAccessRequestUnknownItem(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/api/v1/access/request",
		`{"externalId":"502","itemId":"itm_missing"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

func TestUnlockWithoutCredits(t *testing.T) {
	ts := newTestServer(t)
	itemID := ts.createItem(t, "costly", true)

	rr := ts.post(t, "/api/v1/access/unlock",
		fmt.Sprintf(`{"externalId":"503","itemId":"%s"}`, itemID))
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusPaymentRequired, rr.Body.String())
	}

	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Error.Code != ErrCodeInsufficientBalance {
		t.Fatalf("error.code = %q, want %q", resp.Error.Code, ErrCodeInsufficientBalance)
	}
}

func TestAccessRequestRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.post(t, "/api/v1/access/request",
		`{"externalId":"504","itemId":"itm_x","extra":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCallbackIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	itemID := ts.createItem(t, "repeatable", true)

	rr := ts.post(t, "/api/v1/access/request",
		fmt.Sprintf(`{"externalId":"505","itemId":"%s"}`, itemID))
	var decision entitlement.Decision
	decodeBody(t, rr, &decision)

	for i := 0; i < 3; i++ {
		rr = ts.post(t, "/api/v1/verify/callback", fmt.Sprintf(`{"token":"%s"}`, decision.Token))
		if rr.Code != http.StatusOK {
			t.Fatalf("callback %d status = %d, body=%q", i, rr.Code, rr.Body.String())
		}
	}

	// For an unknown token the callback still answers 200.
	rr = ts.post(t, "/api/v1/verify/callback", `{"token":"nope"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown-token callback status = %d, body=%q", rr.Code, rr.Body.String())
	}
}
