package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/aggregation-engine/internal/repository"
)

func createBatchesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_batches",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.BatchModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_date_number ON batches (date, number)`,
				`CREATE INDEX IF NOT EXISTS idx_batches_codekn ON batches (codekn)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.BatchModel{})
		},
	}
}
