package xubio

import (
	"bytes"
	"testing"
	"time"

	"github.com/goliatone/go-folio/core"
)

func fixedMapper() *Mapper {
	mapper := NewMapper()
	mapper.Now = func() time.Time { return time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC) }
	return mapper
}

func floatPtr(v float64) *float64 { return &v }

func TestMapper_EventOnlyPayload(t *testing.T) {
	event := core.InboundEvent{
		EventID:             "tx1",
		ReferenceID:         "tx1",
		PropertyID:          "123",
		TransactionDateTime: "2025-09-24T14:01:17",
		Amount:              floatPtr(100),
	}
	payload := fixedMapper().MapToInvoice(event, nil)

	if payload.Total != 100 {
		t.Fatalf("expected total 100, got %v", payload.Total)
	}
	if payload.Date != "2025-09-24" {
		t.Fatalf("expected date 2025-09-24, got %q", payload.Date)
	}
	if payload.Customer.Name != core.DefaultUnknownCustomerName {
		t.Fatalf("expected unknown customer, got %q", payload.Customer.Name)
	}
	if payload.Customer.VAT != nil || payload.Customer.Email != nil {
		t.Fatalf("expected null vat and email")
	}
	if len(payload.Items) != 1 || payload.Items[0].Description != "Payment tx1" || payload.Items[0].Tax != 0 {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
	if payload.Origin != "cloudbeds" || payload.OriginTransactionID != "tx1" {
		t.Fatalf("unexpected origin %q/%q", payload.Origin, payload.OriginTransactionID)
	}
}

func TestMapper_IsStable(t *testing.T) {
	event := core.InboundEvent{ReferenceID: "tx1", TransactionDateTime: "2025-09-24T14:01:17", Amount: floatPtr(100)}
	detail := &core.ResolvedDetail{Amount: floatPtr(120), Tax: floatPtr(21), Guest: core.GuestDetail{Name: "Ada", TaxID: "20-1"}}
	mapper := fixedMapper()

	first, err := Encode(mapper.MapToInvoice(event, detail))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	second, err := Encode(mapper.MapToInvoice(event, detail))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical output:\n%s\n%s", first, second)
	}
	expected := `{"date":"2025-09-24","customer":{"name":"Ada","vat":"20-1","email":null},"items":[{"description":"Payment tx1","quantity":1,"unit_price":120,"tax":21}],"total":120,"origin":"cloudbeds","origin_transaction_id":"tx1"}`
	if string(first) != expected {
		t.Fatalf("unexpected encoding:\n%s", first)
	}
}

func TestMapper_Defaults(t *testing.T) {
	payload := fixedMapper().MapToInvoice(core.InboundEvent{ReferenceID: "tx2"}, nil)
	if payload.Total != 0 || payload.Items[0].UnitPrice != 0 {
		t.Fatalf("expected zero amount, got %v", payload.Total)
	}
	if payload.Date != "2026-03-01" {
		t.Fatalf("expected current date, got %q", payload.Date)
	}
}

func TestMapper_FallsBackToServiceDateAndReservationGuest(t *testing.T) {
	event := core.InboundEvent{ReferenceID: "tx3", ServiceDate: "2025-10-02", GuestName: "Event Guest", Amount: floatPtr(50)}
	detail := &core.ResolvedDetail{
		Amount:      floatPtr(0),
		Reservation: &core.ReservationDetail{GuestName: "Grace", Email: "grace@example.com"},
	}
	payload := fixedMapper().MapToInvoice(event, detail)
	if payload.Date != "2025-10-02" {
		t.Fatalf("expected service date, got %q", payload.Date)
	}
	if payload.Total != 50 {
		t.Fatalf("expected zero detail amount to fall back to event amount, got %v", payload.Total)
	}
	if payload.Customer.Name != "Grace" {
		t.Fatalf("expected reservation guest, got %q", payload.Customer.Name)
	}
	if payload.Customer.Email == nil || *payload.Customer.Email != "grace@example.com" {
		t.Fatalf("expected reservation email")
	}
}

func TestMapper_EventGuestNameWhenNoDetail(t *testing.T) {
	payload := fixedMapper().MapToInvoice(core.InboundEvent{ReferenceID: "tx4", GuestName: "Linus"}, nil)
	if payload.Customer.Name != "Linus" {
		t.Fatalf("expected event guest name, got %q", payload.Customer.Name)
	}
}
