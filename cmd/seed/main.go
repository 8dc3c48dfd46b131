package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"homeservices/internal/auth"
	"homeservices/internal/config"
	"homeservices/internal/database"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Services []seedService `yaml:"services"`
	Users    []seedUser    `yaml:"users"`
}

type seedService struct {
	Name            string  `yaml:"name"`
	CategoryID      int64   `yaml:"category_id"`
	Description     string  `yaml:"description"`
	BasePrice       float64 `yaml:"base_price"`
	DurationMinutes int     `yaml:"duration_minutes"`
	Inactive        bool    `yaml:"inactive"`
}

type seedUser struct {
	Name           string        `yaml:"name"`
	Email          string        `yaml:"email"`
	Phone          string        `yaml:"phone"`
	Role           string        `yaml:"role"`
	TelegramChatID int64         `yaml:"telegram_chat_id"`
	Provider       *seedProvider `yaml:"provider"`
}

type seedProvider struct {
	Bio             string `yaml:"bio"`
	ExperienceYears int    `yaml:"experience_years"`
	Verified        bool   `yaml:"verified"`
	Unavailable     bool   `yaml:"unavailable"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config.yaml")
		seedPath   = flag.String("seed", "configs/seed.yaml", "path to seed.yaml")
		tokenTTL   = flag.Duration("tokens", 0, "print a bearer token of this lifetime for every seeded user")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Services) == 0 && len(seed.Users) == 0 {
		return fmt.Errorf("nothing to seed in %s", *seedPath)
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, updated, err := seedServices(ctx, db, seed.Services)
	if err != nil {
		return err
	}
	fmt.Printf("services: created=%d updated=%d\n", created, updated)

	users, err := seedUsers(ctx, db, seed.Users)
	if err != nil {
		return err
	}
	fmt.Printf("users: %d\n", len(users))

	if *tokenTTL > 0 {
		authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, db, db)
		for _, u := range users {
			token, err := authn.IssueToken(u.ID, u.Role, *tokenTTL)
			if err != nil {
				return fmt.Errorf("issue token for %s: %w", u.Email, err)
			}
			fmt.Printf("%s\t%s\t%s\n", u.Email, u.Role, token)
		}
	}
	return nil
}

func seedServices(ctx context.Context, db *database.DB, services []seedService) (created, updated int, err error) {
	for _, s := range services {
		if s.Name == "" {
			continue
		}
		svc := &models.Service{
			Name:            s.Name,
			CategoryID:      s.CategoryID,
			BasePrice:       s.BasePrice,
			DurationMinutes: s.DurationMinutes,
			IsActive:        !s.Inactive,
		}
		if s.Description != "" {
			svc.Description = &s.Description
		}
		if svc.DurationMinutes == 0 {
			svc.DurationMinutes = 60
		}

		existing, err := db.GetServiceByName(ctx, s.Name)
		if err == nil {
			svc.ID = existing.ID
			if err = db.UpdateService(ctx, svc); err != nil {
				return created, updated, fmt.Errorf("update %s: %w", s.Name, err)
			}
			updated++
			continue
		}
		if !errors.Is(err, database.ErrNotFound) {
			return created, updated, fmt.Errorf("get %s: %w", s.Name, err)
		}
		if err = db.CreateService(ctx, svc); err != nil {
			return created, updated, fmt.Errorf("create %s: %w", s.Name, err)
		}
		created++
	}
	return created, updated, nil
}

// seedUsers creates missing users and provider profiles; existing users are left as they are.
func seedUsers(ctx context.Context, db *database.DB, users []seedUser) ([]*models.User, error) {
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.Email == "" {
			continue
		}
		if !models.ValidRole(u.Role) {
			return nil, fmt.Errorf("user %s: invalid role %q", u.Email, u.Role)
		}

		user, err := db.GetUserByEmail(ctx, u.Email)
		switch {
		case err == nil:
		case errors.Is(err, database.ErrNotFound):
			user = &models.User{Name: u.Name, Email: u.Email, Role: u.Role, IsActive: true}
			if u.Phone != "" {
				user.Phone = &u.Phone
			}
			if err = db.CreateUser(ctx, user); err != nil {
				return nil, fmt.Errorf("create user %s: %w", u.Email, err)
			}
			if u.TelegramChatID != 0 {
				if err = db.LinkTelegramChat(ctx, user.ID, u.TelegramChatID); err != nil {
					return nil, fmt.Errorf("link telegram for %s: %w", u.Email, err)
				}
			}
		default:
			return nil, fmt.Errorf("get user %s: %w", u.Email, err)
		}

		if user.Role == models.RoleProvider && u.Provider != nil {
			if err := ensureProvider(ctx, db, user.ID, u.Provider); err != nil {
				return nil, fmt.Errorf("provider %s: %w", u.Email, err)
			}
		}
		out = append(out, user)
	}
	return out, nil
}

func ensureProvider(ctx context.Context, db *database.DB, userID int64, p *seedProvider) error {
	existing, err := db.GetProviderByUserID(ctx, userID)
	if err == nil {
		return db.SetProviderAvailability(ctx, existing.ID, !p.Unavailable, p.Verified)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}
	profile := &models.ProviderProfile{
		UserID:          userID,
		ExperienceYears: p.ExperienceYears,
		IsAvailable:     !p.Unavailable,
		Verified:        p.Verified,
	}
	if p.Bio != "" {
		profile.Bio = &p.Bio
	}
	return db.CreateProvider(ctx, profile)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
