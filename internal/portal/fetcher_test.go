package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hopwatch/internal/domain"
)

const sampleEnvelope = `{"Transactions":[{
	"cardtransactionid":"T1",
	"description":"Bus Trip",
	"location":"Stop A",
	"transactiondatetime":"2024-01-01T08:00:00",
	"hop-balance-display":"$10.00",
	"value":-2.50,
	"value-display":"-$2.50",
	"journey-id":"J1",
	"refundrequested":0,
	"refundable-value":0.0,
	"transaction-type-description":"Bus fare",
	"transaction-type":"Fare"
}]}`

func loggedInSession(t *testing.T, baseURL string) *Session {
	t.Helper()
	s := NewSession(SessionConfig{
		BaseURL:        baseURL,
		ProbeCardID:    "C1",
		MaxRetries:     0,
		RequestTimeout: 5 * time.Second,
		Login:          &cannedLogin{},
	})
	require.NoError(t, s.Login(context.Background()))
	return s
}

func TestFetchTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hop/cards/C1/transactions", r.URL.Path)
		w.Write([]byte(sampleEnvelope))
	}))
	defer srv.Close()

	s := loggedInSession(t, srv.URL)
	raws, err := FetchTransactions(context.Background(), s, "C1")
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "T1", *raws[0].CardTransactionID)
	assert.Equal(t, "Bus Trip", *raws[0].Description)
	assert.Equal(t, -2.50, *raws[0].Value)
}

func TestFetchTransactions_EmptyEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	raws, err := FetchTransactions(context.Background(), loggedInSession(t, srv.URL), "C1")
	require.NoError(t, err)
	assert.Empty(t, raws, "absent Transactions array means no transactions")
}

func TestFetchTransactions_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := FetchTransactions(context.Background(), loggedInSession(t, srv.URL), "C1")
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusNotFound, herr.StatusCode)
}

func TestFetchTransactions_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	_, err := FetchTransactions(context.Background(), loggedInSession(t, srv.URL), "C1")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestFetchTransactions_NoSession(t *testing.T) {
	s := NewSession(SessionConfig{BaseURL: "https://portal.test", Login: &cannedLogin{}})
	_, err := FetchTransactions(context.Background(), s, "C1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func strp(s string) *string   { return &s }
func intp(n int) *int         { return &n }
func f64p(f float64) *float64 { return &f }

func completeRaw() RawTransaction {
	return RawTransaction{
		CardTransactionID:   strp("T1"),
		Description:         strp("Bus Trip"),
		Location:            strp("Stop A"),
		TransactionDateTime: strp("2024-01-01T08:00:00"),
		BalanceDisplay:      strp("$10.00"),
		Value:               f64p(-2.50),
		ValueDisplay:        strp("-$2.50"),
		JourneyID:           strp("J1"),
		RefundRequested:     intp(0),
		RefundableValue:     f64p(0),
		TypeDescription:     strp("Bus fare"),
		TypeCode:            strp("Fare"),
	}
}

func TestNormalize(t *testing.T) {
	card := domain.CardRef{ID: "C1", Name: "Paul"}

	got, err := Normalize(card, completeRaw())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "C1", got.CardID)
	assert.Equal(t, "Paul", got.CardName)
	assert.Equal(t, "T1", got.CardTransactionID)
	assert.Equal(t, "2024-01-01T08:00:00", got.TransactionDateTime)
	assert.Equal(t, "-$2.50", got.ValueDisplay)
	require.NotNil(t, got.Value)
	assert.Equal(t, -2.50, *got.Value)
}

func TestNormalize_PendingPlaceholder(t *testing.T) {
	raw := completeRaw()
	raw.Description = strp(domain.PendingDescription)

	got, err := Normalize(domain.CardRef{ID: "C1"}, raw)
	assert.NoError(t, err, "pending is not an error")
	assert.Nil(t, got, "pending never becomes a record")
}

func TestNormalize_MissingRequiredField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawTransaction)
	}{
		{"no transaction id", func(r *RawTransaction) { r.CardTransactionID = nil }},
		{"no description", func(r *RawTransaction) { r.Description = nil }},
		{"no journey id", func(r *RawTransaction) { r.JourneyID = nil }},
		{"no refund flag", func(r *RawTransaction) { r.RefundRequested = nil }},
		{"no type code", func(r *RawTransaction) { r.TypeCode = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := completeRaw()
			tt.mutate(&raw)
			got, err := Normalize(domain.CardRef{ID: "C1"}, raw)
			assert.Error(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestNormalize_OptionalValueAbsent(t *testing.T) {
	raw := completeRaw()
	raw.Value = nil

	got, err := Normalize(domain.CardRef{ID: "C1"}, raw)
	require.NoError(t, err)
	assert.Nil(t, got.Value)
}
