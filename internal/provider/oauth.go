package provider

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/triggerline/triggerline/internal/domain"
)

// TokenSetFromOAuth2 converts an oauth2 token into the domain token set.
// A response without a refresh token leaves RefreshToken nil; the caller
// decides whether to keep a previously stored one.
func TokenSetFromOAuth2(tok *oauth2.Token) domain.TokenSet {
	ts := domain.TokenSet{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.Expiry,
	}
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		ts.RefreshToken = &rt
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		ts.Scopes = strings.Fields(strings.ReplaceAll(scope, ",", " "))
	}
	return ts
}

// ClassifyExchangeError maps a code-exchange failure. A provider rejection
// (bad code or state) is permanent and surfaced to the caller; anything
// else is transient.
func ClassifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s", domain.ErrAuthExchangeFailed, retrieveErr.ErrorCode)
	}
	return ClassifyCallError(err)
}

// ClassifyRefreshError maps a refresh failure. A provider rejection means
// the refresh token was revoked; the connection must be reconnected.
func ClassifyRefreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s", domain.ErrRefreshDenied, retrieveErr.ErrorCode)
	}
	return ClassifyCallError(err)
}
