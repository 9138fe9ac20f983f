package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carequeue/token-queue-service/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	hospitals := make([]uuid.UUID, 5)
	for i := range hospitals {
		hospitals[i] = uuid.New()
	}

	if err := seedDoctorsWithSessions(context.Background(), pool, hospitals, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	log.Println("seed complete")
}

// seedDoctorsWithSessions creates doctors (each starting available) and
// two to four weekly sessions per doctor.
func seedDoctorsWithSessions(ctx context.Context, pool *pgxpool.Pool, hospitals []uuid.UUID, count int) error {
	log.Printf("seeding %d doctors with sessions", count)

	startHours := []int{8, 9, 10, 14, 16, 18}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		doctorID := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_availability (doctor_id, status, updated_at)
			VALUES ($1, 'available', now())
		`, doctorID)
		if err != nil {
			return err
		}

		sessions := gofakeit.Number(2, 4)
		for j := 0; j < sessions; j++ {
			hospital := hospitals[gofakeit.Number(0, len(hospitals)-1)]
			day := gofakeit.Number(0, 6)
			startHour := startHours[gofakeit.Number(0, len(startHours)-1)]
			durationHours := gofakeit.Number(2, 4)
			avg := []int{5, 10, 15, 20}[gofakeit.Number(0, 3)]
			maxTokens := durationHours * 60 / avg
			room := fmt.Sprintf("%d%02d", gofakeit.Number(1, 5), gofakeit.Number(1, 20))
			floor := fmt.Sprintf("%d", gofakeit.Number(1, 5))
			building := gofakeit.RandomString([]string{"OPD Block A", "OPD Block B", "Main Wing", "East Wing"})

			_, err := tx.Exec(ctx, `
				INSERT INTO sessions (id, doctor_id, hospital_id, day_of_week,
				                      start_time, end_time, max_tokens, avg_minutes_per_patient,
				                      is_active, recall_enabled, recall_check_interval,
				                      room_number, floor, building_location,
				                      created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $10, $11, $12, $13, now(), now())
			`, uuid.New(), doctorID, hospital, day,
				fmt.Sprintf("%02d:00", startHour),
				fmt.Sprintf("%02d:00", startHour+durationHours),
				maxTokens, avg,
				gofakeit.Bool(), gofakeit.Number(0, 30),
				room, floor, building)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors and sessions seeded")
	return nil
}
