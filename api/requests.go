package api

// PlaceWagerRequest is the body of POST /wagers
type PlaceWagerRequest struct {
	BoxID      int64  `json:"boxId" validate:"required,gt=0"`
	ClientSeed string `json:"clientSeed" validate:"required,min=1,max=128"`
}

// DemoSpinRequest is the body of POST /boxes/{boxID}/demo
type DemoSpinRequest struct {
	ClientSeed string `json:"clientSeed" validate:"required,min=1,max=128"`
}

// VerifyRequest is the body of POST /verify
type VerifyRequest struct {
	ClientSeed string `json:"clientSeed" validate:"required"`
	Secret     string `json:"secret" validate:"required"`
	Nonce      int64  `json:"nonce" validate:"gt=0"`
}

// MoveBalanceRequest is the body of POST /me/balance/move
type MoveBalanceRequest struct {
	Amount     int64  `json:"amount" validate:"gt=0"`
	FromBucket string `json:"fromBucket" validate:"required,oneof=available pending"`
	ToBucket   string `json:"toBucket" validate:"required,oneof=available pending,nefield=FromBucket"`
}

// SelfDebitRequest is the body of POST /me/debits. Users may only spend their own balance.
type SelfDebitRequest struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Bucket   string `json:"bucket" validate:"omitempty,oneof=available pending"`
	Category string `json:"category" validate:"omitempty,oneof=withdrawal"`
	OrderID  string `json:"orderId" validate:"omitempty,max=64"`
	Reason   string `json:"reason" validate:"omitempty,max=255"`
}

// AdminTopUpRequest is the body of POST /admin/topups. A top-up is always a deposit.
type AdminTopUpRequest struct {
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	Amount   int64  `json:"amount" validate:"gt=0"`
	Bucket   string `json:"bucket" validate:"omitempty,oneof=available pending both"`
	Category string `json:"category" validate:"omitempty,oneof=deposit"`
	Reason   string `json:"reason" validate:"required,max=255"`
}

// AdminDebitRequest is the body of POST /admin/debits
type AdminDebitRequest struct {
	UserID   int64  `json:"userId" validate:"required,gt=0"`
	Amount   int64  `json:"amount" validate:"gt=0"`
	Bucket   string `json:"bucket" validate:"omitempty,oneof=available pending both"`
	Category string `json:"category" validate:"required,oneof=refund withdrawal adjustment"`
	Reason   string `json:"reason" validate:"required,max=255"`
}

// AdminTransferRequest is the body of POST /admin/transfers
type AdminTransferRequest struct {
	FromUserID int64  `json:"fromUserId" validate:"required,gt=0"`
	ToUserID   int64  `json:"toUserId" validate:"required,gt=0,nefield=FromUserID"`
	Amount     int64  `json:"amount" validate:"gt=0"`
	FromBucket string `json:"fromBucket" validate:"omitempty,oneof=available pending"`
	ToBucket   string `json:"toBucket" validate:"omitempty,oneof=available pending"`
	Reason     string `json:"reason" validate:"required,max=255"`
}

// UserTransferRequest is the body of POST /me/transfers. The caller is always the sender.
type UserTransferRequest struct {
	ToUserID   int64  `json:"toUserId" validate:"required,gt=0"`
	Amount     int64  `json:"amount" validate:"gt=0"`
	FromBucket string `json:"fromBucket" validate:"omitempty,oneof=available pending"`
	ToBucket   string `json:"toBucket" validate:"omitempty,oneof=available pending"`
	Reason     string `json:"reason" validate:"omitempty,max=255"`
}

// OrderPaymentRequest is the body of POST /me/orders/{orderID}/payment
type OrderPaymentRequest struct {
	VendorID      int64  `json:"vendorId" validate:"required,gt=0"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,max=32"`
}

// AdminOrderPaymentRequest is the body of POST /admin/orders/{orderID}/payment
type AdminOrderPaymentRequest struct {
	BuyerID       int64  `json:"buyerId" validate:"required,gt=0"`
	VendorID      int64  `json:"vendorId" validate:"required,gt=0,nefield=BuyerID"`
	Amount        int64  `json:"amount" validate:"gt=0"`
	PaymentMethod string `json:"paymentMethod" validate:"omitempty,max=32"`
}

// VendorReleaseRequest is the body of POST /admin/orders/{orderID}/release
type VendorReleaseRequest struct {
	VendorID int64 `json:"vendorId" validate:"required,gt=0"`
	Amount   int64 `json:"amount" validate:"gt=0"`
}
