package payment

import "time"

// StatusCompleted is the only status a stored payment record can carry;
// the collection is an append-only audit log of captured orders.
const StatusCompleted = "completed"

// Record is one successfully captured order
type Record struct {
	ID            string    `bson:"_id" json:"id"`
	AccountID     string    `bson:"account_id" json:"account_id"`
	PayPalOrderID string    `bson:"paypal_order_id" json:"paypal_order_id"`
	Amount        float64   `bson:"amount" json:"amount"`
	Status        string    `bson:"status" json:"status"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}
