package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bitlabs/talentstream-proctor/internal/config"
	"github.com/bitlabs/talentstream-proctor/internal/database"
	"github.com/bitlabs/talentstream-proctor/internal/logger"
	"github.com/bitlabs/talentstream-proctor/internal/service"
)

// issue-token mints a development JWT for an applicant, signed with the
// shared JWT_SECRET. With -zoho it also seeds the applicant's zohoUserId so
// the CRM sync can run locally.
func main() {
	applicantID := flag.Int("applicant", 0, "Applicant ID to put in the token (required)")
	zohoUserID := flag.String("zoho", "", "Zoho user ID to store in the applicant session")
	flag.Parse()

	if *applicantID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -applicant must be a positive ID")
		flag.PrintDefaults()
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	authService := service.NewAuthService(cfg)
	token, err := authService.IssueToken(*applicantID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	if *zohoUserID != "" {
		ctx := context.Background()
		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		sessions := service.NewSessionService(service.NewRedisSessionStore(rdb, cfg.SessionTTL))
		if err := sessions.Put(ctx, *applicantID, service.SessionKeyZohoUserID, *zohoUserID); err != nil {
			log.Fatal().Err(err).Msg("Failed to store zohoUserId")
		}
		log.Info().Int("applicant_id", *applicantID).Msg("zohoUserId stored in session")
	}

	fmt.Println(token)
}
