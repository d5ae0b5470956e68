package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const tenantHeader = "X-Tenant-ID"

var errMissingTenant = errors.New("missing or invalid tenant id")

// tenantFromRequest reads the tenant id every route is scoped to.
func tenantFromRequest(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get(tenantHeader)
	if raw == "" {
		return uuid.Nil, errMissingTenant
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errMissingTenant
	}
	return tenantID, nil
}
