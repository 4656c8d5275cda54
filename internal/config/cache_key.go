package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionValuesKey returns the hash key holding an applicant's session values.
func (r *CacheKeyStruct) SessionValuesKey(applicantID int) string {
	return fmt.Sprintf("session:%d:values", applicantID)
}

// ActiveAttemptKey returns the key pointing at an applicant's live attempt.
func (r *CacheKeyStruct) ActiveAttemptKey(applicantID int) string {
	return fmt.Sprintf("applicant:%d:active_attempt", applicantID)
}

var CacheKey = NewCacheKeyStruct()
