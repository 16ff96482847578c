package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/kursadbilgin/aggregation-engine/internal/repository"
)

func createProductsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_products",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ProductModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_products_code ON products (code)`,
				`CREATE INDEX IF NOT EXISTS idx_products_batch_id ON products (batch_id)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ProductModel{})
		},
	}
}
