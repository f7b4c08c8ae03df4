package main

import (
	"database/sql"
	"fmt"

	"github.com/hazyhaar/proseai/connectivity"
	"github.com/hazyhaar/proseai/dbopen"
	"github.com/hazyhaar/proseai/observability"
	"github.com/hazyhaar/proseai/settings"
	"github.com/hazyhaar/proseai/shield"
)

// openSettings opens the settings database. It also holds the routes
// table so one file describes where the pilot sends rewrites.
func openSettings() (*sql.DB, *settings.Store, error) {
	db, err := dbopen.Open(settingsDB, dbopen.WithMkdirAll(), dbopen.WithTxLock("immediate"),
		dbopen.WithSchema(settings.Schema), dbopen.WithSchema(connectivity.Schema))
	if err != nil {
		return nil, nil, fmt.Errorf("settings db: %w", err)
	}
	return db, settings.NewStore(db, logger), nil
}

// openMetrics opens the metrics database with the rate limit rules.
func openMetrics() (*sql.DB, error) {
	db, err := dbopen.Open(metricsDB, dbopen.WithMkdirAll(),
		dbopen.WithSchema(observability.Schema), dbopen.WithSchema(shield.Schema))
	if err != nil {
		return nil, fmt.Errorf("metrics db: %w", err)
	}
	return db, nil
}
