package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"seatflow/internal/promocodes"
	"seatflow/internal/seats"
	"seatflow/internal/shared/clock"
	"seatflow/internal/shared/config"
	"seatflow/internal/shared/constants"
	"seatflow/internal/shared/database"
	"seatflow/internal/users"
	"seatflow/pkg/cache"
	"seatflow/pkg/realtime"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Seeder struct {
	db     *database.DB
	seats  *seats.Service
	promos *promocodes.Service
}

func main() {
	fmt.Println("🌱 Starting Seatflow Database Seeder...")

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.UsesMemoryStore() {
		log.Fatal("DB_DRIVER=memory keeps no state between processes; seed a postgres database instead")
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	pg := db.GetPostgreSQL()
	seeder := &Seeder{
		db:     db,
		seats:  seats.NewService(seats.NewRepository(pg), cache.NewNop(), realtime.Nop{}, clock.System{}, cfg),
		promos: promocodes.NewService(promocodes.NewRepository(pg), cache.NewNop(), clock.System{}),
	}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(context.Background()); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"order_items",
		"orders",
		"promocode_scopes",
		"promocodes",
		"tickets",
		"occurrences",
		"users",
	}

	return s.db.GetPostgreSQL().Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll seeds accounts, two occurrences and a few promocodes
func (s *Seeder) SeedAll(ctx context.Context) error {
	if err := s.SeedUsers(ctx); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	occurrenceIDs, err := s.SeedOccurrences(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed occurrences: %w", err)
	}

	if err := s.SeedPromocodes(ctx, occurrenceIDs); err != nil {
		return fmt.Errorf("failed to seed promocodes: %w", err)
	}

	if redisClient := s.db.GetRedis(); redisClient != nil {
		if err := cache.NewService(redisClient).DeletePattern(ctx, constants.CACHE_PREFIX+":*"); err != nil {
			log.Printf("Warning: Failed to clear Redis cache: %v", err)
		}
	}
	return nil
}

// SeedUsers creates one admin and one buyer, both with password "qwerty"
func (s *Seeder) SeedUsers(ctx context.Context) error {
	fmt.Println("  👤 Seeding users...")

	hashed, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	password := string(hashed)

	usersData := []struct {
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"Admin", "User", "admin@seatflow.local", users.RoleAdmin},
		{"Test", "Buyer", "buyer@seatflow.local", users.RoleUser},
	}

	repo := users.NewRepository(s.db.GetPostgreSQL())
	for _, u := range usersData {
		user := &users.User{
			ID:        uuid.New(),
			FirstName: u.firstName,
			LastName:  u.lastName,
			Email:     u.email,
			Password:  &password,
			Role:      u.role,
		}
		if err := repo.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user %s: %w", u.email, err)
		}
		fmt.Printf("    ✅ Created user: %s (%s)\n", user.Email, user.Role)
	}
	return nil
}

// SeedOccurrences generates seat maps for two upcoming shows
func (s *Seeder) SeedOccurrences(ctx context.Context) ([]uuid.UUID, error) {
	fmt.Println("  🎭 Seeding occurrences...")

	start := time.Now().UTC().Add(14 * 24 * time.Hour).Truncate(time.Hour)
	requests := []seats.CreateOccurrenceRequest{
		{
			EventName: "Hamlet",
			HallID:    "main-hall",
			StartsAt:  start,
			Currency:  "EUR",
			Categories: []seats.CategoryLayout{
				{Name: "Premium", Price: decimal.RequireFromString("89.00"), RowStart: "A", RowEnd: "C", SeatsPerRow: 20},
				{Name: "Standard", Price: decimal.RequireFromString("49.50"), RowStart: "D", RowEnd: "K", SeatsPerRow: 24},
			},
		},
		{
			EventName: "Jazz Night",
			HallID:    "studio",
			StartsAt:  start.Add(48 * time.Hour),
			Currency:  "EUR",
			Categories: []seats.CategoryLayout{
				{Name: "Floor", Price: decimal.RequireFromString("35.00"), RowStart: "A", RowEnd: "F", SeatsPerRow: 12},
			},
		},
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, req := range requests {
		created, err := s.seats.CreateOccurrence(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to create occurrence %s: %w", req.EventName, err)
		}
		ids = append(ids, created.Occurrence.ID)
		fmt.Printf("    ✅ Created occurrence: %s (%s, %d tickets)\n", req.EventName, created.Occurrence.ID, created.TicketCount)
	}
	return ids, nil
}

// SeedPromocodes creates a global code, a capped code and one scoped to the first occurrence
func (s *Seeder) SeedPromocodes(ctx context.Context, occurrenceIDs []uuid.UUID) error {
	fmt.Println("  🏷️  Seeding promocodes...")

	maxTickets := 4
	expires := time.Now().UTC().Add(30 * 24 * time.Hour)
	requests := []promocodes.UpsertPromocodeRequest{
		{Code: "WELCOME10", DiscountPercent: decimal.NewFromInt(10)},
		{Code: "GROUP25", DiscountPercent: decimal.NewFromInt(25), MaxTickets: &maxTickets, ExpiresAt: &expires},
	}
	if len(occurrenceIDs) > 0 {
		requests = append(requests, promocodes.UpsertPromocodeRequest{
			Code:            "HAMLET50",
			DiscountPercent: decimal.NewFromInt(50),
			OccurrenceIDs:   []string{occurrenceIDs[0].String()},
		})
	}

	for _, req := range requests {
		promo, err := s.promos.Upsert(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to upsert promocode %s: %w", req.Code, err)
		}
		fmt.Printf("    ✅ Created promocode: %s (%s%%)\n", promo.Code, promo.DiscountPercent.String())
	}
	return nil
}
