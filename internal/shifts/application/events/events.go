package events

import "time"

// ShiftClosed is emitted when a manager closes a shift. The declared
// cash amount seeds the first step of the handover chain.
type ShiftClosed struct {
	TenantID   string    `json:"tenant_id"`
	StationID  string    `json:"station_id"`
	ShiftID    string    `json:"shift_id"`
	EmployeeID string    `json:"employee_id"`
	CashAmount float64   `json:"cash_amount"`
	OccurredAt time.Time `json:"occurred_at"`
}
