package cloudbeds

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-folio/core"
)

type guestDTO struct {
	Name  string `json:"name"`
	TaxID string `json:"taxId"`
	Email string `json:"email"`
}

type transactionDTO struct {
	ID                  core.FlexString `json:"id"`
	TransactionID       core.FlexString `json:"transactionId"`
	PropertyID          core.FlexString `json:"propertyId"`
	Amount              core.FlexFloat  `json:"amount"`
	Tax                 core.FlexFloat  `json:"tax"`
	Currency            string          `json:"currency"`
	TransactionDateTime string          `json:"transactionDateTime"`
	ServiceDate         string          `json:"serviceDate"`
	ReservationID       core.FlexString `json:"reservationId"`
	ReservationIDUpper  core.FlexString `json:"reservationID"`
	GuestName           string          `json:"guestName"`
	Guest               *guestDTO       `json:"guest"`
}

func (t transactionDTO) reservationID() string {
	return firstNonEmpty(t.ReservationID.String(), t.ReservationIDUpper.String())
}

func (t transactionDTO) toDetail(referenceID string, propertyID string, raw json.RawMessage) *core.ResolvedDetail {
	detail := &core.ResolvedDetail{
		TransactionID:   firstNonEmpty(t.TransactionID.String(), t.ID.String(), referenceID),
		PropertyID:      firstNonEmpty(t.PropertyID.String(), propertyID),
		Amount:          t.Amount.Ptr(),
		Tax:             t.Tax.Ptr(),
		Currency:        strings.TrimSpace(t.Currency),
		TransactionDate: firstNonEmpty(t.TransactionDateTime, t.ServiceDate),
		Guest:           core.GuestDetail{Name: strings.TrimSpace(t.GuestName)},
		Raw:             append(json.RawMessage(nil), raw...),
	}
	if t.Guest != nil {
		detail.Guest = core.GuestDetail{
			Name:  firstNonEmpty(t.Guest.Name, t.GuestName),
			TaxID: strings.TrimSpace(t.Guest.TaxID),
			Email: strings.TrimSpace(t.Guest.Email),
		}
	}
	return detail
}

type reservationDTO struct {
	ReservationID      core.FlexString `json:"reservationId"`
	ReservationIDUpper core.FlexString `json:"reservationID"`
	Status             string          `json:"status"`
	GuestName          string          `json:"guestName"`
	GuestEmail         string          `json:"guestEmail"`
	Email              string          `json:"email"`
	StartDate          string          `json:"startDate"`
	EndDate            string          `json:"endDate"`
	CheckIn            string          `json:"checkIn"`
	CheckOut           string          `json:"checkOut"`
}

func (r reservationDTO) toDetail(reservationID string, raw json.RawMessage) *core.ReservationDetail {
	return &core.ReservationDetail{
		ID:        firstNonEmpty(r.ReservationID.String(), r.ReservationIDUpper.String(), reservationID),
		Status:    strings.TrimSpace(r.Status),
		GuestName: strings.TrimSpace(r.GuestName),
		Email:     firstNonEmpty(r.GuestEmail, r.Email),
		CheckIn:   firstNonEmpty(r.StartDate, r.CheckIn),
		CheckOut:  firstNonEmpty(r.EndDate, r.CheckOut),
		Raw:       append(json.RawMessage(nil), raw...),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
