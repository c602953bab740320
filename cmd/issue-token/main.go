package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/franchisepos-backend/pkg/auth"
	"github.com/angelmondragon/franchisepos-backend/pkg/config"
	"github.com/angelmondragon/franchisepos-backend/pkg/enums"
	"github.com/angelmondragon/franchisepos-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "issue-token"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.LoadJWT()
	if err != nil {
		logg.Error(ctx, "failed to load jwt config", err)
		os.Exit(1)
	}

	if err := run(os.Args[1:], os.Stdout, cfg, time.Now().UTC()); err != nil {
		logg.Error(ctx, "failed to issue token", err)
		os.Exit(2)
	}
}

// run parses flags and writes a signed bearer token for a terminal or staff member.
func run(args []string, out io.Writer, cfg config.JWTConfig, now time.Time) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	tenant := fs.String("tenant", "", "tenant id (uuid)")
	user := fs.String("user", "", "user id (uuid); a new id is generated when empty")
	location := fs.String("location", "", "location id (uuid) the token is scoped to")
	role := fs.String("role", string(enums.MemberRoleStaff), "member role")
	canRefund := fs.Bool("can-refund", false, "grant refund permission to non-manager roles")
	ttl := fs.Int("ttl-minutes", 0, "override token lifetime in minutes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tenantID, err := uuid.Parse(*tenant)
	if err != nil {
		return fmt.Errorf("invalid -tenant: %w", err)
	}
	userID := uuid.New()
	if *user != "" {
		if userID, err = uuid.Parse(*user); err != nil {
			return fmt.Errorf("invalid -user: %w", err)
		}
	}
	var locationID *uuid.UUID
	if *location != "" {
		id, err := uuid.Parse(*location)
		if err != nil {
			return fmt.Errorf("invalid -location: %w", err)
		}
		locationID = &id
	}
	memberRole, err := enums.ParseMemberRole(*role)
	if err != nil {
		return err
	}
	if *ttl > 0 {
		cfg.ExpirationMinutes = *ttl
	}

	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{
		UserID:     userID,
		TenantID:   tenantID,
		LocationID: locationID,
		Role:       memberRole,
		CanRefund:  *canRefund,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}
