package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseProcessingStatus(t *testing.T) {
	status, err := ParseProcessingStatus(" Failed ")
	if err != nil || status != ProcessingStatusFailed {
		t.Fatalf("expected failed status, got %q %v", status, err)
	}
	if !status.Terminal() || ProcessingStatusReceived.Terminal() {
		t.Fatalf("expected only sent and failed to be terminal")
	}
	if _, err := ParseProcessingStatus("pending"); !IsBadInput(err) {
		t.Fatalf("expected bad input for unknown status, got %v", err)
	}
}

func TestCredentialValidAtHonorsMargin(t *testing.T) {
	now := time.Date(2025, 9, 24, 12, 0, 0, 0, time.UTC)
	cred := Credential{Token: "t1", ExpiresAt: now.Add(15 * time.Second)}

	if !cred.ValidAt(now, 10*time.Second) {
		t.Fatalf("expected token valid with 15s left and a 10s margin")
	}
	if cred.ValidAt(now.Add(5*time.Second), 10*time.Second) {
		t.Fatalf("expected token invalid once inside the margin")
	}
	if (Credential{ExpiresAt: now.Add(time.Hour)}).ValidAt(now, 0) {
		t.Fatalf("expected empty token to be invalid")
	}
	if (Credential{Token: "t1"}).ValidAt(now, 0) {
		t.Fatalf("expected missing expiry to be invalid")
	}
}

func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	var payload struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a":" tx1 ","b":12345678901,"c":null}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.A != "tx1" || payload.B != "12345678901" || payload.C != "" {
		t.Fatalf("unexpected values: %#v", payload)
	}
	if err := json.Unmarshal([]byte(`{"a":true}`), &payload); err == nil {
		t.Fatalf("expected boolean id to be rejected")
	}
}

func TestFlexFloatTracksPresence(t *testing.T) {
	var payload struct {
		Amount  FlexFloat `json:"amount"`
		Quoted  FlexFloat `json:"quoted"`
		Blank   FlexFloat `json:"blank"`
		Missing FlexFloat `json:"missing"`
	}
	if err := json.Unmarshal([]byte(`{"amount":100.5,"quoted":"42","blank":""}`), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := payload.Amount.Ptr(); got == nil || *got != 100.5 {
		t.Fatalf("unexpected amount: %v", got)
	}
	if got := payload.Quoted.Ptr(); got == nil || *got != 42 {
		t.Fatalf("unexpected quoted amount: %v", got)
	}
	if payload.Blank.Ptr() != nil || payload.Missing.Ptr() != nil {
		t.Fatalf("expected blank and missing amounts to be unset")
	}
	if err := json.Unmarshal([]byte(`{"amount":"abc"}`), &payload); err == nil {
		t.Fatalf("expected non-numeric amount to fail")
	}
}
