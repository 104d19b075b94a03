package presence

import (
	"errors"

	"github.com/Ashborn-047/gather-waypoint/internal/device"
	"github.com/Ashborn-047/gather-waypoint/internal/session"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, deviceMiddleware fiber.Handler) {
	r.Post("/:code/location", deviceMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Lat      *float64 `json:"lat"`
			Lng      *float64 `json:"lng"`
			Heading  *float64 `json:"heading"`
			Speed    *float64 `json:"speed"`
			Accuracy *float64 `json:"accuracy"`
		}
		if err := c.BodyParser(&body); err != nil || body.Lat == nil || body.Lng == nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		if *body.Lat < -90 || *body.Lat > 90 || *body.Lng < -180 || *body.Lng > 180 {
			return fiber.NewError(fiber.StatusBadRequest, "lat or lng out of range")
		}

		result, err := svc.SubmitLocation(c.Context(), c.Params("code"), device.FromCtx(c), LocationUpdate{
			Lat:      *body.Lat,
			Lng:      *body.Lng,
			Heading:  body.Heading,
			Speed:    body.Speed,
			Accuracy: body.Accuracy,
		})
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(result)
	})

	r.Post("/:code/delay", deviceMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Kind    string `json:"kind"`
			Minutes *int   `json:"minutes"`
		}
		if err := c.BodyParser(&body); err != nil || !ValidDelayKind(body.Kind) {
			return fiber.NewError(fiber.StatusBadRequest, "kind must be one of traffic, blocked, slow, other")
		}
		minutes := 0
		if body.Minutes != nil {
			minutes = *body.Minutes
		}
		if minutes < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "minutes must be non-negative")
		}

		delay, err := svc.DeclareDelay(c.Context(), c.Params("code"), device.FromCtx(c), body.Kind, minutes)
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(delay)
	})

	r.Delete("/:code/delay", deviceMiddleware, func(c *fiber.Ctx) error {
		if err := svc.ClearDelay(c.Context(), c.Params("code"), device.FromCtx(c)); err != nil {
			return errToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:code/live", func(c *fiber.Ctx) error {
		live, err := svc.LiveParticipants(c.Context(), c.Params("code"))
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(fiber.Map{"participants": live})
	})
}

func errToFiber(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotActive):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, session.ErrNotInSession):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrNoPresenceRecord):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
