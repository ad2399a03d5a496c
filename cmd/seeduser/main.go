// Command seeduser creates or resets an administrator account.
//
//	SEED_USERNAME=admin SEED_PASSWORD=secreto go run ./cmd/seeduser
package main

import (
	"os"

	"poscore/internal/config"
	"poscore/internal/infra"
	"poscore/internal/model"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/clause"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	username := envOr("SEED_USERNAME", "admin")
	password := envOr("SEED_PASSWORD", "admin1234")
	fullName := envOr("SEED_FULL_NAME", "Administrador")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	user := model.User{
		Username:     username,
		FullName:     fullName,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		Active:       true,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"full_name", "password_hash", "role", "active", "updated_at"}),
	}).Create(&user).Error
	if err != nil {
		log.Fatal().Err(err).Msg("upsert admin user")
	}
	log.Info().Str("username", username).Msg("usuario administrador creado/actualizado")
}
