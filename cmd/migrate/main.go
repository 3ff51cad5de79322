// cmd/migrate/main.go
// Applies the schema and reports what the matching engine will see

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found (%v), using environment variables", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not found")
	}

	db, err := database.NewPostgresDBFromURL(dbURL)
	if err != nil {
		log.Fatal("Can't reach database:", err)
	}
	defer db.Close()
	fmt.Println("✅ Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatal("Migration failed:", err)
	}
	fmt.Println("✅ Migrations applied")

	for _, table := range []string{"profiles", "user_interests", "search_preferences", "matches", "notifications", "performance_alerts"} {
		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM "+table); err != nil {
			log.Fatalf("Count %s: %v", table, err)
		}
		fmt.Printf("   %-20s %d rows\n", table, count)
	}
}
