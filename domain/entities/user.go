package entities

import "time"

// Role affects authorization only, never ledger math
type Role string

const (
	RoleUser   Role = "user"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

// UserAccount is the slice of a user the ledger needs. Balance is never stored here;
// it is always read from the latest transaction record.
type UserAccount struct {
	ID        int64     `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"firstName"`
	LastName  string    `db:"last_name" json:"lastName"`
	Role      Role      `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAdmin returns true if the user holds the admin role
func (u *UserAccount) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName returns the user's full name
func (u *UserAccount) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserWithBalance is an account listed together with its current balance
type UserWithBalance struct {
	UserAccount
	Balance BalanceView `json:"balance"`
}

// UserBalancePage is one page of the admin user listing
type UserBalancePage struct {
	Users      []*UserWithBalance `json:"users"`
	Pagination Pagination         `json:"pagination"`
}
