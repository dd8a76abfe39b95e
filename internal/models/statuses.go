package models

// PurchaseStatus is the settlement outcome. Gateways may report statuses outside
// the known set; those are stored verbatim.
type PurchaseStatus string

const (
	PurchaseStatusApproved PurchaseStatus = "approved"
	PurchaseStatusFailed   PurchaseStatus = "failed"
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

// Known reports whether s is one of the four normalized outcomes.
func (s PurchaseStatus) Known() bool {
	switch s {
	case PurchaseStatusApproved, PurchaseStatusFailed, PurchaseStatusPending, PurchaseStatusRejected:
		return true
	default:
		return false
	}
}
