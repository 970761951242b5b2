package domain

// PendingDescription is the placeholder the portal returns while a journey
// has not settled yet. Entries carrying it are provisional: they are never
// stored and never notified.
const PendingDescription = "TRANSACTION(S) PENDING"

// Transaction represents one ledger entry returned by the HOP portal.
// (CardID, CardTransactionID) is the natural key and the sole deduplication
// criterion. TransactionDateTime keeps the upstream string form; it is
// stored and displayed as received, never reparsed.
type Transaction struct {
	CardID              string
	CardName            string // empty when the card has no configured display name
	CardTransactionID   string
	Description         string
	Location            string
	TransactionDateTime string
	BalanceDisplay      string
	Value               *float64 // absent on some entry types
	ValueDisplay        string
	JourneyID           string
	RefundRequested     int
	RefundableValue     float64
	TypeDescription     string
	TypeCode            string
}

// CardRef identifies one tracked card. Built once from configuration and
// immutable for the process lifetime; configuration order drives scrape order.
type CardRef struct {
	ID   string
	Name string
}

// DisplayName returns the configured name, falling back to the card ID.
func (c CardRef) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
