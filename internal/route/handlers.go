package route

import (
	"errors"

	"github.com/Ashborn-047/gather-waypoint/internal/device"
	"github.com/Ashborn-047/gather-waypoint/internal/session"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, deviceMiddleware fiber.Handler) {
	r.Get("/:code/etas", func(c *fiber.Ctx) error {
		list, err := svc.ETAs(c.Context(), c.Params("code"))
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(list)
	})

	r.Post("/:code/routes/recompute", deviceMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			OriginLat *float64 `json:"origin_lat"`
			OriginLng *float64 `json:"origin_lng"`
		}
		_ = c.BodyParser(&body)

		route, err := svc.Recompute(c.Context(), c.Params("code"), device.FromCtx(c), body.OriginLat, body.OriginLng)
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(route)
	})
}

func errToFiber(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotActive):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, session.ErrNotInSession):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrNoDestination):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrNoOrigin):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrEngine):
		// the cached route, if any, remains authoritative
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
