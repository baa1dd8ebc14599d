package entities

// Balance is a user's balance snapshot split across buckets
type Balance struct {
	Available int64 `json:"available"`
	Pending   int64 `json:"pending"`
}

// Total returns the sum of both buckets
func (b Balance) Total() int64 {
	return b.Available + b.Pending
}

// Get returns the amount held in a single bucket
func (b Balance) Get(bucket Bucket) int64 {
	if bucket == BucketPending {
		return b.Pending
	}
	return b.Available
}

// IsNegative reports whether either bucket is below zero
func (b Balance) IsNegative() bool {
	return b.Available < 0 || b.Pending < 0
}

// BalanceView is the read model returned to callers
type BalanceView struct {
	Available int64 `json:"available"`
	Pending   int64 `json:"pending"`
	Total     int64 `json:"total"`
}

// View converts a snapshot to its read model
func (b Balance) View() BalanceView {
	return BalanceView{Available: b.Available, Pending: b.Pending, Total: b.Total()}
}
