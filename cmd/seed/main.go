package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/staff-directory/config"
	"github.com/oksasatya/staff-directory/internal/container"
	"github.com/oksasatya/staff-directory/internal/domain/entity"
	pginfra "github.com/oksasatya/staff-directory/internal/infrastructure/postgres"
	"github.com/oksasatya/staff-directory/pkg/helpers"
)

const seedPassword = "password123"

type member struct {
	email, first, last, position string
	seniority                    int
}

// A small org chart; lower seniority is more senior.
var orgChart = []member{
	{"ceo@example.com", "Grace", "Hopper", "Chief Executive Officer", 1},
	{"cto@example.com", "Alan", "Turing", "Chief Technology Officer", 2},
	{"vp.eng@example.com", "Barbara", "Liskov", "VP Engineering", 3},
	{"lead.platform@example.com", "Ken", "Thompson", "Engineering Lead", 4},
	{"lead.product@example.com", "Margaret", "Hamilton", "Engineering Lead", 4},
	{"eng1@example.com", "Dennis", "Ritchie", "Software Engineer", 5},
	{"eng2@example.com", "Frances", "Allen", "Software Engineer", 5},
	{"intern@example.com", "Linus", "Torvalds", "Intern", 6},
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	if cfg.StorageDriver != config.StorageDriverPostgres {
		logrus.Fatalf("seeding requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize dependencies")
	}
	defer c.Close()

	users := pginfra.NewUserRepository(c.PGPool)
	hash, err := c.Hasher.Hash(seedPassword)
	if err != nil {
		logger.WithError(err).Fatal("failed to hash password")
	}

	for _, m := range orgChart {
		seniority := m.seniority
		u := &entity.User{
			ID:                     uuid.NewString(),
			Email:                  m.email,
			PasswordHash:           hash,
			FirstName:              m.first,
			LastName:               m.last,
			Phone:                  "000",
			Position:               m.position,
			PositionSeniorityIndex: &seniority,
			FirstLogin:             true,
			OTPCode:                entity.PlaceholderOTPCode,
			OTPExpiry:              entity.PlaceholderOTPExpiry,
		}
		if err := users.Upsert(ctx, u); err != nil {
			logger.WithError(err).WithField("email", m.email).Fatal("failed to seed user")
		}
		if c.Directory != nil {
			if err := c.Directory.IndexUser(ctx, u); err != nil {
				logger.WithError(err).WithField("user_id", u.ID).Warn("directory index failed")
			}
		}
		logger.WithFields(logrus.Fields{"id": u.ID, "email": u.Email, "seniority": seniority}).Info("seeded user")
	}
	logger.Infof("seeded %d users; new accounts use password %q", len(orgChart), seedPassword)
}
