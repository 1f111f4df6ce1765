package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/talkincode/shopadmin/internal/domain"
	"github.com/talkincode/shopadmin/internal/webserver"
)

// registerSystemRoutes registers maintenance endpoints
func registerSystemRoutes() {
	webserver.ApiGET("/system/orphans", listOrphanAssets)
	webserver.ApiPOST("/system/reconcile", triggerReconcile)
	webserver.ApiGET("/system/oprlogs", listOprLogs)
}

func listOrphanAssets(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.OrphanAsset{})
	if root := strings.TrimSpace(c.QueryParam("root")); root != "" {
		db = db.Where("root = ?", root)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orphan assets", err.Error())
	}
	var rows []domain.OrphanAsset
	if err := db.Order("created_at ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query orphan assets", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// triggerReconcile runs the orphan retry and the sweep immediately
func triggerReconcile(c echo.Context) error {
	rec := GetAppContext(c).Reconciler()
	ctx := c.Request().Context()

	retry, err := rec.RetryOrphans(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to retry orphan assets", err.Error())
	}
	sweep, err := rec.Sweep(ctx)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "RUN_FAILED", "Failed to sweep assets", err.Error())
	}
	return ok(c, map[string]interface{}{"retry": retry, "sweep": sweep})
}

func listOprLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.SysOprLog{})
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("opt_action = ?", action)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operation logs", err.Error())
	}
	var rows []domain.SysOprLog
	if err := db.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operation logs", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
