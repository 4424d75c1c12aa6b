// seed inserts development accounts for local testing: an active admin employee and a customer.
// Idempotent: an account that already exists is left untouched.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ZewK3/Home-sub002/internal/config"
	"github.com/ZewK3/Home-sub002/internal/db"
	employeedomain "github.com/ZewK3/Home-sub002/internal/employee/domain"
	employeerepo "github.com/ZewK3/Home-sub002/internal/employee/repository"
	"github.com/ZewK3/Home-sub002/internal/platform/logging"
	"github.com/ZewK3/Home-sub002/internal/security"
	userdomain "github.com/ZewK3/Home-sub002/internal/user/domain"
	userrepo "github.com/ZewK3/Home-sub002/internal/user/repository"
)

const (
	devAdminID       = "AD001"
	devAdminEmail    = "admin@example.com"
	devAdminPhone    = "0900000001"
	devCustomerEmail = "dev@example.com"
	devPassword      = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.Setup("storefront-seed", cfg.LogLevel, cfg.Env)
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set; create a .env or export DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer conn.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	employees := employeerepo.NewPostgresRepository(conn)
	users := userrepo.NewPostgresRepository(conn)

	existing, err := employees.GetByID(ctx, devAdminID)
	if err != nil {
		logger.Fatal().Err(err).Msg("check admin")
	}
	if existing == nil {
		hash, salt, err := security.NewPBKDF2Hasher(cfg.PBKDF2Iterations).Hash(devPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("hash admin password")
		}
		if err := employees.Create(ctx, &employeedomain.Employee{
			EmployeeID:   devAdminID,
			FullName:     "Dev Admin",
			StoreName:    "Main",
			Position:     employeedomain.PositionAdmin,
			Phone:        devAdminPhone,
			Email:        devAdminEmail,
			JoinDate:     &now,
			PasswordHash: hash,
			Salt:         salt,
			Status:       employeedomain.StatusActive,
			CreatedAt:    now,
		}); err != nil {
			logger.Fatal().Err(err).Msg("create admin")
		}
		logger.Info().Str("employee_id", devAdminID).Msg("seeded admin employee")
	} else {
		logger.Info().Str("employee_id", devAdminID).Msg("admin already seeded")
	}

	customer, err := users.GetByEmail(ctx, devCustomerEmail)
	if err != nil {
		logger.Fatal().Err(err).Msg("check customer")
	}
	if customer != nil {
		logger.Info().Str("email", devCustomerEmail).Msg("customer already seeded")
		return
	}
	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		logger.Fatal().Err(err).Msg("hash customer password")
	}
	if err := users.Create(ctx, &userdomain.User{
		ID:           uuid.NewString(),
		Name:         "Dev Customer",
		Email:        devCustomerEmail,
		PasswordHash: hash,
		Rank:         userdomain.RankFor(0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		logger.Fatal().Err(err).Msg("create customer")
	}
	logger.Info().Str("email", devCustomerEmail).Msg("seeded customer")
}
