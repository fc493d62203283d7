package database

import (
	"fmt"
	"log"
	"strings"

	"github.com/pathakanu/myAgenda/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultSQLitePath is used when neither a database URL nor a SQLite path is configured.
const DefaultSQLitePath = "agenda.db"

// New creates a GORM database connection.
// When databaseURL is provided PostgreSQL is used, otherwise SQLite at sqlitePath.
// The schema is migrated and stored users are upgraded before returning.
func New(databaseURL, sqlitePath string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	if databaseURL != "" {
		db, err = gorm.Open(postgres.Open(databaseURL), gormConfig)
	} else {
		if sqlitePath == "" {
			sqlitePath = DefaultSQLitePath
		}
		db, err = gorm.Open(sqlite.Open(sqliteDSN(sqlitePath)), gormConfig)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	logBackend(db, sqlitePath)
	return db, nil
}

// Migrate creates or updates every table and runs the user upgrade step.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Task{},
		&model.Reminder{},
		&model.Mood{},
		&model.HistoryEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	n, err := UpgradeUsers(db)
	if err != nil {
		return fmt.Errorf("upgrade users: %w", err)
	}
	if n > 0 {
		log.Printf("database: upgraded %d user record(s) to schema v%d", n, model.SchemaVersion)
	}
	return nil
}

// UpgradeUsers brings every user below model.SchemaVersion up to date in a
// single transaction and returns how many were touched.
//
// v1 records (imported from the single-document store) may lack the
// last-added-task reference; it is backfilled from the newest task.
func UpgradeUsers(db *gorm.DB) (int, error) {
	var upgraded int
	err := db.Transaction(func(tx *gorm.DB) error {
		var users []model.User
		if err := tx.Where("schema_version < ?", model.SchemaVersion).Find(&users).Error; err != nil {
			return err
		}
		for _, u := range users {
			updates := map[string]any{"schema_version": model.SchemaVersion}
			if u.LastAddedTaskID == nil {
				var last model.Task
				err := tx.Where("user_id = ?", u.ID).Order("id DESC").Limit(1).Find(&last).Error
				if err != nil {
					return err
				}
				if last.ID != 0 {
					updates["last_added_task_id"] = last.ID
				}
			}
			if err := tx.Model(&model.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
				return err
			}
			upgraded++
		}
		return nil
	})
	return upgraded, err
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_fk=1&_busy_timeout=5000"
}

func logBackend(db *gorm.DB, sqlitePath string) {
	dialector := db.Dialector.Name()
	switch strings.ToLower(dialector) {
	case "postgres":
		log.Printf("database: connected to PostgreSQL")
	case "sqlite":
		log.Printf("database: using SQLite %s", sqlitePath)
	default:
		log.Printf("database: connected via %s", dialector)
	}
}
