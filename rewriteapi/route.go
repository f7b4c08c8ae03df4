package rewriteapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/hazyhaar/proseai/connectivity"
)

// routeConfig sends the JSON payload to {endpoint}/api/rewrite. The API
// often runs on the local network, so private hosts are allowed.
var routeConfig = json.RawMessage(`{"path":"` + Path + `","allow_private":true}`)

// SetRoute points ServiceName at the API on endpoint, or at the local
// handler when endpoint is empty, and reloads router from db so the next
// call uses it.
func SetRoute(ctx context.Context, db *sql.DB, router *connectivity.Router, endpoint string) error {
	admin := connectivity.NewAdmin(db)
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	var err error
	if endpoint == "" {
		err = admin.UpsertRoute(ctx, ServiceName, connectivity.StrategyLocal, "", nil)
	} else {
		err = admin.UpsertRoute(ctx, ServiceName, connectivity.StrategyHTTP, endpoint, routeConfig)
	}
	if err != nil {
		return err
	}
	return router.Reload(ctx, db)
}
