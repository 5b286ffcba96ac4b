package domain

// Currency codes used across the marketplace. Prices are carried as int64
// cents; display formatting belongs to the caller.
const (
	CurrencyUSD = "USD"
)
