package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"hopwatch/internal/domain"
)

// RawTransaction mirrors one entry of the portal's Transactions envelope.
// Fields are pointers so a missing key can be told apart from a zero value;
// everything except value is required upstream.
type RawTransaction struct {
	CardTransactionID   *string  `json:"cardtransactionid"`
	Description         *string  `json:"description"`
	Location            *string  `json:"location"`
	TransactionDateTime *string  `json:"transactiondatetime"`
	BalanceDisplay      *string  `json:"hop-balance-display"`
	Value               *float64 `json:"value"`
	ValueDisplay        *string  `json:"value-display"`
	JourneyID           *string  `json:"journey-id"`
	RefundRequested     *int     `json:"refundrequested"`
	RefundableValue     *float64 `json:"refundable-value"`
	TypeDescription     *string  `json:"transaction-type-description"`
	TypeCode            *string  `json:"transaction-type"`
}

type transactionEnvelope struct {
	Transactions []RawTransaction `json:"Transactions"`
}

// FetchTransactions retrieves one card's raw transaction list through the
// session. An absent Transactions array decodes to an empty result.
func FetchTransactions(ctx context.Context, s *Session, cardID string) ([]RawTransaction, error) {
	reqURL := s.TransactionsURL(cardID)
	resp, err := s.Get(ctx, reqURL)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, err
		}
		return nil, fmt.Errorf("FetchTransactions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: reqURL}
	}

	var env transactionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return env.Transactions, nil
}

// Normalize maps one raw entry onto the stored record shape. The pending
// placeholder comes back as (nil, nil): not an error, it just never becomes
// a record. A missing required field rejects this entry only; the caller
// keeps going with the rest of the batch.
func Normalize(card domain.CardRef, raw RawTransaction) (*domain.Transaction, error) {
	if raw.Description != nil && *raw.Description == domain.PendingDescription {
		return nil, nil
	}

	var missing []string
	for _, f := range []struct {
		name string
		ok   bool
	}{
		{"cardtransactionid", raw.CardTransactionID != nil},
		{"description", raw.Description != nil},
		{"location", raw.Location != nil},
		{"transactiondatetime", raw.TransactionDateTime != nil},
		{"hop-balance-display", raw.BalanceDisplay != nil},
		{"value-display", raw.ValueDisplay != nil},
		{"journey-id", raw.JourneyID != nil},
		{"refundrequested", raw.RefundRequested != nil},
		{"refundable-value", raw.RefundableValue != nil},
		{"transaction-type-description", raw.TypeDescription != nil},
		{"transaction-type", raw.TypeCode != nil},
	} {
		if !f.ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("Normalize: missing required fields: %s", strings.Join(missing, ", "))
	}

	return &domain.Transaction{
		CardID:              card.ID,
		CardName:            card.Name,
		CardTransactionID:   *raw.CardTransactionID,
		Description:         *raw.Description,
		Location:            *raw.Location,
		TransactionDateTime: *raw.TransactionDateTime,
		BalanceDisplay:      *raw.BalanceDisplay,
		Value:               raw.Value,
		ValueDisplay:        *raw.ValueDisplay,
		JourneyID:           *raw.JourneyID,
		RefundRequested:     *raw.RefundRequested,
		RefundableValue:     *raw.RefundableValue,
		TypeDescription:     *raw.TypeDescription,
		TypeCode:            *raw.TypeCode,
	}, nil
}
