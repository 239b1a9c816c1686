package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/model"
	"taskdesk/internal/repository"
)

// seedUser describes one account to create with its demo tasks.
type seedUser struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
	Tasks    []model.Task
}

func main() {
	log.Println("Starting seed script...")

	// Load configuration
	cfg := config.Load()

	// Connect to database
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("Connected to database")

	// Run migrations to ensure schema is up to date
	if err := gormDB.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	userRepo := repository.NewUserRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)

	seeds := []seedUser{
		{
			Username: "admin",
			Email:    "admin@taskdesk.local",
			Password: "admin-change-me",
			IsAdmin:  true,
		},
		{
			Username: "demo",
			Email:    "demo@taskdesk.local",
			Password: "demo-password",
			Tasks: []model.Task{
				{
					Name:        "Try out taskdesk",
					Description: "Create, toggle and delete a task",
					DueDate:     time.Now().AddDate(0, 0, 7),
					Priority:    model.PriorityHigh,
				},
				{
					Name:        "Read the API docs",
					Description: "Swagger UI is served at /swagger/index.html",
					DueDate:     time.Now().AddDate(0, 0, 14),
					Priority:    model.PriorityLow,
				},
			},
		},
	}

	ctx := context.Background()
	created := 0
	for _, seed := range seeds {
		if existing, err := userRepo.FindByEmail(ctx, seed.Email); err == nil && existing != nil {
			log.Printf("User %s already exists, skipping", seed.Email)
			continue
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), 10)
		if err != nil {
			log.Fatalf("Failed to hash password for %s: %v", seed.Email, err)
		}

		user := &model.User{
			Username:     seed.Username,
			Email:        seed.Email,
			PasswordHash: string(hash),
			IsAdmin:      seed.IsAdmin,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create user %s: %v", seed.Email, err)
		}
		created++

		for i := range seed.Tasks {
			seed.Tasks[i].OwnerID = user.ID
			if err := taskRepo.Create(ctx, &seed.Tasks[i]); err != nil {
				log.Fatalf("Failed to create task for %s: %v", seed.Email, err)
			}
		}
		log.Printf("Seeded user %s with %d tasks", seed.Email, len(seed.Tasks))
	}

	log.Printf("Seed complete, %d users created", created)
}
