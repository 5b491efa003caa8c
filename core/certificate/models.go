package certificate

import "time"

// Certificate records course completion. Serial is a uuid; Code is an HMAC
// over the serial and the completion facts, so a certificate can be verified
// without trusting the presenter.
type Certificate struct {
	ID       int       `json:"id"`
	OrgID    int       `json:"org_id"`
	CourseID int       `json:"course_id"`
	UserID   int       `json:"user_id"`
	Serial   string    `json:"serial"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"` // UTC
}
