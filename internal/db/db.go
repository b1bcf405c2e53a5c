package db

import (
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/convo"
	"github.com/Devvor/tabchat/internal/link"
	"github.com/Devvor/tabchat/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	return gdb
}

// Migrate creates or updates all tables. Both binaries call it at
// startup; AutoMigrate is additive, so this is safe to run repeatedly.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.User{},
		&link.Link{},
		&convo.Conversation{},
		&convo.Message{},
	)
}
