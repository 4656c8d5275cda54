package model

// TestResultRecord is the body of POST /applicant1/saveTest/{userId}.
type TestResultRecord struct {
	TestName   string       `json:"testName"`
	TestScore  float64      `json:"testScore"`
	TestStatus TestStatus   `json:"testStatus"`
	Applicant  ApplicantRef `json:"applicant"`
}

type ApplicantRef struct {
	ID int `json:"id"`
}

// SkillBadgeRecord is the body of POST /skill-badges/save.
type SkillBadgeRecord struct {
	ApplicantID    int         `json:"applicantId"`
	SkillBadgeName string      `json:"skillBadgeName"`
	Status         BadgeStatus `json:"status"`
}
