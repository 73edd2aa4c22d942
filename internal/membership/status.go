package membership

import "cloud.google.com/go/civil"

// ExpiryWindowDays is the number of days before coverage end during which a
// member is reported as expiring soon.
const ExpiryWindowDays = 7

// Classify re-derives status and payment state from coverage end. Sticky
// statuses and members without coverage are left untouched. It reports
// whether either field changed.
func Classify(m *Member, today civil.Date) bool {
	if m == nil || m.Status.IsSticky() || m.CoverageEnd == nil {
		return false
	}
	prevStatus, prevPayment := m.Status, m.PaymentState
	daysLeft, _ := m.DaysLeft(today)
	switch {
	case daysLeft < 0:
		m.Status = StatusExpired
		m.PaymentState = PaymentOverdue
	case daysLeft <= ExpiryWindowDays:
		m.Status = StatusExpiringSoon
	case m.PaymentState == PaymentPaid:
		m.Status = StatusActive
	}
	return m.Status != prevStatus || m.PaymentState != prevPayment
}

// Expiring reports whether coverage ends within the warning window, returning
// the days left.
func Expiring(m *Member, today civil.Date) (int, bool) {
	daysLeft, ok := m.DaysLeft(today)
	if !ok {
		return 0, false
	}
	return daysLeft, daysLeft >= 0 && daysLeft <= ExpiryWindowDays
}
