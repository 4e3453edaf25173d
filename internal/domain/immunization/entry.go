// internal/domain/immunization/entry.go
package immunization

// ScheduleEntry is one computed (vaccine, dose) pair for a child. Entries are produced
// fresh on every calculation and are never stored by the calculator.
type ScheduleEntry struct {
	VaccineID        int    `json:"vaccine_id"`
	VaccineName      string `json:"vaccine_name"`
	Disease          string `json:"disease"`
	DoseNumber       int    `json:"dose_number"`
	AgeDescription   string `json:"age_description"`
	VaccinationDate  Date   `json:"vaccination_date"`
	NotificationDate Date   `json:"notification_date"`
	Mandatory        bool   `json:"is_mandatory"`
	Annual           bool   `json:"is_annual"`
	Notes            string `json:"notes"`
	AgeRangeEnd      *int   `json:"age_range_end,omitempty"`
	// Overdue depends on the time of the call that produced the entry.
	Overdue bool `json:"is_overdue"`
}
