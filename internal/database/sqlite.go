package database

import (
	"log"

	"github.com/un4givn/FlipForce/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Initialize(dbPath string) error {
	var err error
	DB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return err
	}

	log.Println("Database connected successfully")

	// Data cleanup has to happen before AutoMigrate adds unique indexes.
	if err := RunPreMigrations(DB); err != nil {
		return err
	}

	err = DB.AutoMigrate(
		&models.PackSeries{},
		&models.SeriesProcessingState{},
		&models.CardSnapshot{},
		&models.PackSnapshot{},
		&models.PackMaxSold{},
		&models.PackValueSnapshot{},
		&models.PackSalesTally{},
		&models.SoldCardEvent{},
		&models.SuspectedSwap{},
		&models.EVROISnapshot{},
		&models.TierContribution{},
	)
	if err != nil {
		return err
	}

	log.Println("Database migration completed")
	return nil
}

func GetDB() *gorm.DB {
	return DB
}
