package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo profiles,
// mirror requests and a handful of confirmed matches.
//
// Behavior:
//  1. Clears profiles, mirror_requests, matches and chat_messages.
//  2. Creates 20 visible profiles scattered around Paris with hashed
//     passwords and ages 18-45.
//  3. Generates ~150 pending mirror requests; every 3rd pair is made
//     mutual, i.e. both directions matched plus a canonical Match row.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(database *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for _, table := range []string{"chat_messages", "matches", "mirror_requests", "profiles"} {
		if err := database.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	switch database.Dialector.Name() {
	case "mysql":
		database.Exec("ALTER TABLE profiles AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE mirror_requests AUTO_INCREMENT = 1")
		database.Exec("ALTER TABLE matches AUTO_INCREMENT = 1")
	case "sqlite":
		database.Exec("DELETE FROM sqlite_sequence WHERE name IN ('profiles', 'mirror_requests', 'matches')")
	}

	log.Println("Cleared existing data")

	genders := []string{GenderHomme, GenderFemme, GenderNonBinaire, GenderAutre}

	// --- Seed profiles around Paris (48.8566, 2.3522) ---
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		profile := Profile{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Gender:       genders[i%len(genders)],
			Age:          18 + r.Intn(28),
			Lat:          48.8566 + (r.Float64()-0.5)*0.5,
			Lng:          2.3522 + (r.Float64()-0.5)*0.5,
			Visible:      true,
		}

		if err := database.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
	}
	log.Println("Seeded 20 profiles.")

	// --- Seed mirror requests ---
	counter := 0
	for senderID := uint64(1); senderID <= 20; senderID++ {
		for j := 0; j < 8; j++ {
			receiverID := uint64(r.Intn(20) + 1)
			if senderID == receiverID {
				continue
			}

			mutual := counter%3 == 0
			status := StatusPending
			if mutual {
				status = StatusMatched
			}

			request := MirrorRequest{SenderID: senderID, ReceiverID: receiverID, Status: status}
			if err := database.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
			}).Create(&request).Error; err != nil {
				return fmt.Errorf("failed to seed mirror request: %w", err)
			}

			if mutual {
				reverse := MirrorRequest{SenderID: receiverID, ReceiverID: senderID, Status: StatusMatched}
				database.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "sender_id"}, {Name: "receiver_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
				}).Create(&reverse)

				a, b := CanonicalPair(senderID, receiverID)
				match := Match{UserA: a, UserB: b, Active: true}
				database.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
					DoNothing: true,
				}).Create(&match)
			}

			counter++
		}
	}
	log.Printf("Seeded %d mirror requests.", counter)

	return nil
}
