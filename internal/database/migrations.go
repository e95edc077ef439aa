package database

import (
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/savorahq/savora/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.Payment{},
		&models.Notification{},
		&models.CacheEntry{},
	)
}

// SeedData inserts the default back-office account when no admin exists.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{
		BaseModel:    models.BaseModel{ID: "admin"},
		Name:         "Administrator",
		Email:        "admin@savora.local",
		PasswordHash: string(hash),
		Role:         "admin",
		IsActive:     true,
	}
	return db.Where(models.User{BaseModel: models.BaseModel{ID: admin.ID}}).
		Attrs(admin).
		FirstOrCreate(&models.User{}).Error
}
