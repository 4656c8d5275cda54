package service

import (
	"context"

	"github.com/bitlabs/talentstream-proctor/internal/crm"
	"github.com/bitlabs/talentstream-proctor/internal/model"
)

// Backend is the part of the bitLabs REST API the proctor consumes.
// *upstream.Client implements it.
type Backend interface {
	GetTestByName(ctx context.Context, token, testName string) (*model.TestDefinition, error)
	SaveTestResult(ctx context.Context, token string, userID int, rec model.TestResultRecord) error
	SaveSkillBadge(ctx context.Context, token string, rec model.SkillBadgeRecord) error
}

// CRMSyncer pushes outcomes to the CRM. *crm.Syncer implements it.
type CRMSyncer interface {
	Sync(ctx context.Context, token, zohoUserID, testName string, res model.ScoreResult) crm.Report
}
