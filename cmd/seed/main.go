package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsmile/clinic-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Batched inserts only need a handful of connections.
	pool, err := db.ConnectPostgres(ctx, dsn, 4)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(context.Background(), pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	serviceIDs, err := seedServices(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed services: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 12, serviceIDs); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

type catalogEntry struct {
	category string
	name     string
	minutes  int
}

var dentalCatalog = []catalogEntry{
	{"preventive", "Checkup & Cleaning", 45},
	{"preventive", "Fluoride Treatment", 30},
	{"diagnostic", "Full Mouth X-Ray", 20},
	{"restorative", "Composite Filling", 45},
	{"restorative", "Crown Placement", 90},
	{"restorative", "Root Canal", 90},
	{"surgical", "Tooth Extraction", 60},
	{"surgical", "Wisdom Tooth Removal", 90},
	{"cosmetic", "Teeth Whitening", 60},
	{"orthodontic", "Braces Adjustment", 30},
	{"orthodontic", "Aligner Fitting", 45},
	{"emergency", "Emergency Consultation", 30},
}

func seedServices(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	log.Printf("seeding %d services", len(dentalCatalog))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(dentalCatalog))
	for _, entry := range dentalCatalog {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO services (id, category, name, duration_minutes, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, entry.category, entry.name, entry.minutes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("services seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int, serviceIDs []uuid.UUID) error {
	log.Printf("seeding %d doctors", count)

	specializations := []string{
		"General Dentistry",
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
		"Prosthodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specializations[gofakeit.Number(0, len(specializations)-1)]

		// Each doctor offers a random contiguous chunk of the catalog.
		from := gofakeit.Number(0, len(serviceIDs)/2)
		to := gofakeit.Number(from+1, len(serviceIDs))
		offered := serviceIDs[from:to]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, status, service_ids, created_at, updated_at)
			VALUES ($1, $2, $3, 'active', $4, now(), now())
		`, id, name, spec, offered)
		if err != nil {
			return err
		}

		// Mon-Fri 09:00-17:00 template.
		for weekday := 1; weekday <= 5; weekday++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO doctor_working_hours (doctor_id, weekday, start_time, end_time)
				VALUES ($1, $2, '09:00', '17:00')
			`, id, weekday)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			// Sequential suffix keeps phones unique across the run.
			phone := fmt.Sprintf("+1555%07d", i)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, full_name, phone, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, phone, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
