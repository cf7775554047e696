package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/delivery-router/internal/repository"
	"gorm.io/gorm"
)

func createTenantConfigsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_tenant_configs",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.TenantConfigModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.TenantConfigModel{})
		},
	}
}
