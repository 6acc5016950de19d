package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-engine/internal/db"
	"github.com/hackgods/clinic-appointment-engine/internal/logging"
)

type seedService struct {
	name   string
	active bool
}

var services = []seedService{
	{"Ortodoncia", true},
	{"Limpieza dental", true},
	{"Resina", true},
	{"Extracción", true},
	{"Endodoncia", true},
	{"Blanqueamiento", false},
}

var clinicianRoles = []string{
	"Ortodoncista",
	"Odontóloga general",
	"Odontólogo general",
}

func main() {
	logger := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply schema")
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	if err := seedServices(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed services")
	}
	if err := seedClinicians(ctx, pool, faker, 12, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed clinicians")
	}
	if err := seedRooms(ctx, pool, 6, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed rooms")
	}

	logger.Info().Msg("seed complete")
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	return withTx(ctx, pool, func(tx pgx.Tx) error {
		for _, s := range services {
			_, err := tx.Exec(ctx, `
				INSERT INTO services (id, name, active, created_at)
				VALUES ($1, $2, $3, now())
			`, uuid.New(), s.name, s.active)
			if err != nil {
				return err
			}
		}
		logger.Info().Int("count", len(services)).Msg("services seeded")
		return nil
	})
}

// seedClinicians cycles through the roles so every specialty has staff.
func seedClinicians(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	return withTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 0; i < count; i++ {
			role := clinicianRoles[i%len(clinicianRoles)]
			_, err := tx.Exec(ctx, `
				INSERT INTO clinicians (id, given_name, family_name, role, created_at)
				VALUES ($1, $2, $3, $4, now())
			`, uuid.New(), faker.FirstName(), faker.LastName(), role)
			if err != nil {
				return err
			}
		}
		logger.Info().Int("count", count).Msg("clinicians seeded")
		return nil
	})
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	return withTx(ctx, pool, func(tx pgx.Tx) error {
		for i := 1; i <= count; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO rooms (id, name, created_at)
				VALUES ($1, $2, now())
			`, uuid.New(), fmt.Sprintf("Consultorio %d", i))
			if err != nil {
				return err
			}
		}
		logger.Info().Int("count", count).Msg("rooms seeded")
		return nil
	})
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
