package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorPredicatesFollowTextCodes(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"webhook unauthorized", NewWebhookAuthenticationError("bad secret", nil), IsWebhookUnauthorized},
		{"authentication", NewAuthenticationError("token rejected", nil), IsAuthentication},
		{"configuration", NewConfigurationError("missing key", nil), IsConfiguration},
		{"transient", NewTransientDownstreamError(errors.New("reset"), "submit", nil), IsTransient},
		{"permanent", NewPermanentDownstreamError(nil, "rejected", nil), IsPermanent},
		{"token exchange", NewTokenExchangeError(nil, "exchange", http.StatusUnauthorized, nil), IsTokenExchange},
		{"bad input", WrapBadInputError(errors.New("eof"), "malformed", nil), IsBadInput},
		{"not found", NewNotFoundError("missing", nil), IsNotFound},
		{"invalid transition", NewInvalidTransitionError("sent", nil), IsInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.check(tc.err) {
				t.Fatalf("expected predicate to match %v (code %q)", tc.err, TextCode(tc.err))
			}
			if !tc.check(fmt.Errorf("wrapped: %w", tc.err)) {
				t.Fatalf("expected predicate to see through fmt wrapping")
			}
		})
	}
	if IsAuthentication(errors.New("plain")) || TextCode(nil) != "" {
		t.Fatalf("expected plain errors to carry no code")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NewWebhookAuthenticationError("bad secret", nil), http.StatusUnauthorized},
		{NewBadInputError("malformed", nil), http.StatusBadRequest},
		{NewAuthenticationError("xubio rejected token", nil), http.StatusInternalServerError},
		{NewStoreUnavailableError(errors.New("down"), "store", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
