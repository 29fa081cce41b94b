package db

import (
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/paperchat/paperchat/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates or updates the relational schema. Order matters: parents
// before children so foreign keys resolve.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupParticipant{},
		&models.Session{},
		&models.SessionParticipant{},
		&models.Message{},
		&models.Paper{},
		&models.PaperTag{},
		&models.SessionPaper{},
		&models.Feedback{},
		&models.AiMetadata{},
	)
}
