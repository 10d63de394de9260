package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/rs/zerolog"

	"github.com/hackgods/vaccine-reservation-scheduling/internal/app"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/apperr"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/config"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/identity"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/logging"
	"github.com/hackgods/vaccine-reservation-scheduling/internal/scheduling"
)

var vaccines = []string{"Pfizer", "Moderna", "Novavax", "Johnson"}

type seedConfig struct {
	Caregivers int
	Patients   int
	Days       int
	Password   string
	MaxDoses   int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.Init("seed", "dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.Init("seed", cfg.Env, cfg.LogLevel)

	if cfg.Store != config.StorePostgres {
		logger.Fatal().Str("store", cfg.Store).Msg("seeding needs STORE=postgres")
	}

	sc := seedConfig{
		Caregivers: getInt("SEED_CAREGIVERS", 20),
		Patients:   getInt("SEED_PATIENTS", 200),
		Days:       getInt("SEED_DAYS", 14),
		Password:   getEnv("SEED_PASSWORD", "password"),
		MaxDoses:   getInt("SEED_MAX_DOSES", 50),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	gofakeit.Seed(time.Now().UnixNano())

	caregivers, err := seedAccounts(ctx, logger, a.Identity, identity.RoleCaregiver, sc.Caregivers, sc.Password)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed caregivers")
	}
	if _, err := seedAccounts(ctx, logger, a.Identity, identity.RolePatient, sc.Patients, sc.Password); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}
	if len(caregivers) == 0 {
		logger.Fatal().Msg("no caregivers created")
	}

	if err := seedVaccines(ctx, logger, a.Scheduling, caregivers[0], sc.MaxDoses); err != nil {
		logger.Fatal().Err(err).Msg("seed vaccines")
	}
	if err := seedAvailability(ctx, logger, a.Scheduling, caregivers, sc.Days); err != nil {
		logger.Fatal().Err(err).Msg("seed availability")
	}

	logger.Info().Msg("seed complete")
}

func seedAccounts(ctx context.Context, logger zerolog.Logger, svc *identity.Service, role identity.Role, count int, password string) ([]*identity.Session, error) {
	logger.Info().Str("role", string(role)).Int("count", count).Msg("seeding accounts")

	var sessions []*identity.Session
	for len(sessions) < count {
		username := gofakeit.Username()
		err := svc.Register(ctx, role, username, password)
		if apperr.Is(err, apperr.KindConflict) {
			continue
		}
		if err != nil {
			return sessions, err
		}
		sessions = append(sessions, &identity.Session{Username: username, Role: role})
	}
	return sessions, nil
}

func seedVaccines(ctx context.Context, logger zerolog.Logger, svc *scheduling.Service, sess *identity.Session, maxDoses int) error {
	for _, name := range vaccines {
		v, err := svc.AddDoses(ctx, sess, name, gofakeit.Number(0, maxDoses))
		if err != nil {
			return err
		}
		logger.Info().Str("vaccine", v.Name).Int("doses", v.AvailableDoses).Msg("vaccine stocked")
	}
	return nil
}

// seedAvailability offers each caregiver on roughly half of the next days.
func seedAvailability(ctx context.Context, logger zerolog.Logger, svc *scheduling.Service, caregivers []*identity.Session, days int) error {
	today := time.Now().UTC()
	published := 0

	for d := 0; d < days; d++ {
		date := today.AddDate(0, 0, d)
		for _, cg := range caregivers {
			if !gofakeit.Bool() {
				continue
			}
			err := svc.PublishAvailability(ctx, cg, date)
			if apperr.Is(err, apperr.KindConflict) {
				continue
			}
			if err != nil {
				return err
			}
			published++
		}
	}

	logger.Info().Int("slots", published).Int("days", days).Msg("availability seeded")
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
