package model

// CreateAttemptRequest is the body of POST /api/v1/attempts.
type CreateAttemptRequest struct {
	TestName string `json:"test_name" binding:"required,notblank,max=128"`
}

// SessionValueRequest is the body of PUT /api/v1/session/:key.
type SessionValueRequest struct {
	Value string `json:"value" binding:"max=4096"`
}
