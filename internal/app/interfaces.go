package app

import (
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopadmin/config"
	"github.com/talkincode/shopadmin/internal/catalog"
	"gorm.io/gorm"
)

// DBProvider provides database access
type DBProvider interface {
	DB() *gorm.DB
}

// ConfigProvider provides application configuration
type ConfigProvider interface {
	Config() *config.AppConfig
}

// SchedulerProvider provides task scheduling capability
type SchedulerProvider interface {
	Scheduler() *cron.Cron
}

// CatalogProvider provides the product catalog services
type CatalogProvider interface {
	Coordinator() *catalog.Coordinator
	Listing() *catalog.ListingService
	Reconciler() *catalog.Reconciler
}

// AppContext combines all provider interfaces for full application context
// Handlers should depend on specific providers or this combined interface
type AppContext interface {
	DBProvider
	ConfigProvider
	SchedulerProvider
	CatalogProvider

	// Application lifecycle methods
	MigrateDB(track bool) error
	InitDb()
	DropAll()
}
