package entities

import "time"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// PageRequest is a 1-based page request
type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps the request to sane bounds
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the row offset for the page
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Pagination describes where a page sits in the full result
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int64 `json:"totalCount"`
	Limit       int   `json:"limit"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

// NewPagination builds the pagination block for a page of totalCount results
func NewPagination(req PageRequest, totalCount int64) Pagination {
	req = req.Normalize()
	totalPages := int((totalCount + int64(req.Limit) - 1) / int64(req.Limit))
	return Pagination{
		CurrentPage: req.Page,
		TotalPages:  totalPages,
		TotalCount:  totalCount,
		Limit:       req.Limit,
		HasNext:     req.Page < totalPages,
		HasPrev:     req.Page > 1,
	}
}

// HistoryFilter narrows a transaction history query
type HistoryFilter struct {
	Status         *Status
	Direction      *Direction
	Category       *Category
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
}

// HistoryPage is one page of transaction history
type HistoryPage struct {
	Records    []*TransactionRecord `json:"records"`
	Pagination Pagination           `json:"pagination"`
}

// SpinFilter narrows a spin listing
type SpinFilter struct {
	UserID *int64
	BoxID  *int64
	From   *time.Time
	To     *time.Time
}

// SpinPage is one page of wager outcomes
type SpinPage struct {
	Spins      []*WagerOutcome `json:"spins"`
	Pagination Pagination      `json:"pagination"`
}
