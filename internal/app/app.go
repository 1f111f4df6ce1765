package app

import (
	"context"
	"os"
	"runtime/debug"
	"time"
	_ "time/tzdata"

	EventBus "github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/talkincode/shopadmin/config"
	"github.com/talkincode/shopadmin/internal/assetstore"
	"github.com/talkincode/shopadmin/internal/catalog"
	"github.com/talkincode/shopadmin/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

type Application struct {
	appConfig   *config.AppConfig
	gormDB      *gorm.DB
	sched       *cron.Cron
	bus         EventBus.Bus
	assets      *assetstore.Store
	coordinator *catalog.Coordinator
	listing     *catalog.ListingService
	reconciler  *catalog.Reconciler
	audit       *catalog.AuditRecorder
}

// Ensure Application implements all interfaces
var (
	_ DBProvider        = (*Application)(nil)
	_ ConfigProvider    = (*Application)(nil)
	_ SchedulerProvider = (*Application)(nil)
	_ CatalogProvider   = (*Application)(nil)
	_ AppContext        = (*Application)(nil)
)

func NewApplication(appConfig *config.AppConfig) *Application {
	return &Application{appConfig: appConfig}
}

func (a *Application) Config() *config.AppConfig {
	return a.appConfig
}

func (a *Application) DB() *gorm.DB {
	return a.gormDB
}

// OverrideDB replaces the application's database handle (used in tests).
func (a *Application) OverrideDB(db *gorm.DB) {
	a.gormDB = db
}

// Init sets up logging, the database and the catalog services. Background
// jobs are not started; see StartBackgroundJobs.
func (a *Application) Init(cfg *config.AppConfig) error {
	loc, err := time.LoadLocation(cfg.System.Location)
	if err != nil {
		zap.S().Error("timezone config error")
	} else {
		time.Local = loc
	}

	initLogger(cfg)

	if err := cfg.InitDirs(); err != nil {
		return err
	}

	// Initialize database connection
	if a.gormDB == nil {
		if cfg.Database.Type == "" {
			cfg.Database.Type = "sqlite"
		}
		db, err := getDatabase(cfg.Database)
		if err != nil {
			return err
		}
		a.gormDB = db
		zap.S().Infof("Database connection successful, type: %s", cfg.Database.Type)
	}

	// Ensure database schema is migrated before serving
	if err := a.MigrateDB(false); err != nil {
		zap.S().Errorf("database migration failed: %v", err)
		return err
	}

	return a.initCatalog(cfg)
}

func initLogger(cfg *config.AppConfig) {
	var zapConfig zap.Config
	if cfg.Logger.Mode == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Configure output paths
	zapConfig.OutputPaths = []string{"stdout"}

	// Build logger with file rotation if enabled
	var logger *zap.Logger
	if cfg.Logger.FileEnable {
		lumberJackLogger := &lumberjack.Logger{
			Filename:   cfg.Logger.Filename,
			MaxSize:    64,
			MaxBackups: 7,
			MaxAge:     7,
			Compress:   false,
		}

		core := zapcore.NewTee(
			zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(lumberJackLogger),
				zapConfig.Level,
			),
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
				zapcore.AddSync(os.Stdout),
				zapConfig.Level,
			),
		)
		logger = zap.New(core, zap.AddCaller())
	} else {
		var err error
		logger, err = zapConfig.Build(zap.AddCaller())
		if err != nil {
			panic(err)
		}
	}

	zap.ReplaceGlobals(logger)
}

func (a *Application) initCatalog(cfg *config.AppConfig) error {
	prices, err := catalog.NewPriceFormatter(cfg.Catalog.Currency, cfg.Catalog.Locale)
	if err != nil {
		return err
	}

	a.assets = assetstore.New(assetstore.Roots{
		Private: cfg.Storage.PrivateDir,
		Public:  cfg.Storage.PublicDir,
	})
	a.bus = catalog.NewEventBus()
	a.audit = catalog.NewAuditRecorder(a.gormDB)
	if err := a.audit.Subscribe(a.bus); err != nil {
		return err
	}

	repo := catalog.NewGormProductRepository(a.gormDB)
	orphans := catalog.NewGormOrphanRepository(a.gormDB)
	a.coordinator = catalog.NewCoordinator(repo, a.assets, orphans, a.bus)
	a.listing = catalog.NewListingService(repo, a.assets, prices)
	a.reconciler = catalog.NewReconciler(repo, orphans, a.assets, catalog.ReconcilerOptions{
		MaxAttempts: cfg.Jobs.OrphanMaxAttempts,
		Grace:       time.Duration(cfg.Jobs.OrphanGraceMinutes) * time.Minute,
		Workers:     cfg.Jobs.Workers,
	})
	return nil
}

func (a *Application) MigrateDB(track bool) (err error) {
	defer func() {
		if err1 := recover(); err1 != nil {
			if os.Getenv("GO_DEGUB_TRACE") != "" {
				debug.PrintStack()
			}
			err2, ok := err1.(error)
			if ok {
				err = err2
				zap.S().Error(err2.Error())
			}
		}
	}()
	db := a.gormDB
	if track {
		db = db.Debug()
	}
	return db.Migrator().AutoMigrate(domain.Tables...)
}

func (a *Application) DropAll() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
}

func (a *Application) InitDb() {
	_ = a.gormDB.Migrator().DropTable(domain.Tables...)
	err := a.gormDB.Migrator().AutoMigrate(domain.Tables...)
	if err != nil {
		zap.S().Error(err)
	}
}

// Scheduler returns the cron scheduler
func (a *Application) Scheduler() *cron.Cron {
	return a.sched
}

func (a *Application) Coordinator() *catalog.Coordinator {
	return a.coordinator
}

func (a *Application) Listing() *catalog.ListingService {
	return a.listing
}

func (a *Application) Reconciler() *catalog.Reconciler {
	return a.reconciler
}

// Bus returns the lifecycle event bus
func (a *Application) Bus() EventBus.Bus {
	return a.bus
}

// StartBackgroundJobs schedules the reconciliation and cleanup jobs.
func (a *Application) StartBackgroundJobs(ctx context.Context) error {
	return a.initJob(ctx)
}

// Release releases application resources
func (a *Application) Release() {
	if a.sched != nil {
		<-a.sched.Stop().Done()
	}
	if a.gormDB != nil {
		if sqlDB, err := a.gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = zap.L().Sync()
}
