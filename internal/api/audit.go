package api

import (
	"strings"

	"cms0/internal/events"
	"cms0/internal/models"
	console "cms0/internal/utils/logger"
)

var audit = console.New("AUDIT")

// auditedEvents are written to the audit log as they are emitted.
var auditedEvents = []string{
	events.UsersCreated,
	events.AffiliatesCreated,
	events.RolesUpdated,
	events.RolesDeleted,
	events.PermissionsDeleted,
	events.MenusUpdated,
	events.MenusReordered,
}

// subscribeAudit registers the audit logger on the default event bus.
func subscribeAudit() {
	for _, name := range auditedEvents {
		name := name
		events.On(name, func(data interface{}) {
			audit.Info("%s %s", name, describe(data))
		})
	}
}

func describe(data interface{}) string {
	switch v := data.(type) {
	case *models.User:
		return v.ID + " " + v.Email
	case *models.Affiliate:
		return v.ID + " " + v.Slug
	case *models.Menu:
		return v.ID + " " + v.Title
	case *models.Permission:
		return v.ID + " " + v.Name
	case []string:
		return strings.Join(v, ",")
	case string:
		return v
	default:
		return ""
	}
}
