package session

import (
	"errors"

	"github.com/Ashborn-047/gather-waypoint/internal/device"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, deviceMiddleware fiber.Handler) {
	r.Post("/", deviceMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&body); err != nil || body.DisplayName == "" {
			return fiber.NewError(fiber.StatusBadRequest, "display_name required")
		}
		sess, participant, err := svc.CreateSession(c.Context(), device.FromCtx(c), body.DisplayName)
		if err != nil {
			return errToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session":     sess,
			"participant": participant,
		})
	})

	r.Post("/:code/join", deviceMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&body); err != nil || body.DisplayName == "" {
			return fiber.NewError(fiber.StatusBadRequest, "display_name required")
		}
		sess, participant, err := svc.Join(c.Context(), c.Params("code"), device.FromCtx(c), body.DisplayName)
		if err != nil {
			return errToFiber(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"session":     sess,
			"participant": participant,
		})
	})

	r.Post("/:code/leave", deviceMiddleware, func(c *fiber.Ctx) error {
		if err := svc.Leave(c.Context(), c.Params("code"), device.FromCtx(c)); err != nil {
			return errToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Post("/:code/end", deviceMiddleware, func(c *fiber.Ctx) error {
		if err := svc.End(c.Context(), c.Params("code"), device.FromCtx(c)); err != nil {
			return errToFiber(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	r.Get("/:code", func(c *fiber.Ctx) error {
		roster, err := svc.GetRoster(c.Context(), c.Params("code"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "session not found")
		}
		return c.JSON(roster)
	})

	r.Put("/:code/destination", deviceMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Lat   *float64 `json:"lat"`
			Lng   *float64 `json:"lng"`
			Label string   `json:"label"`
		}
		if err := c.BodyParser(&body); err != nil || body.Lat == nil || body.Lng == nil {
			return fiber.NewError(fiber.StatusBadRequest, "lat and lng required")
		}
		if *body.Lat < -90 || *body.Lat > 90 || *body.Lng < -180 || *body.Lng > 180 {
			return fiber.NewError(fiber.StatusBadRequest, "lat or lng out of range")
		}
		sess, err := svc.SetDestination(c.Context(), c.Params("code"), device.FromCtx(c), *body.Lat, *body.Lng, body.Label)
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(sess)
	})

	r.Delete("/:code/destination", deviceMiddleware, func(c *fiber.Ctx) error {
		sess, err := svc.ClearDestination(c.Context(), c.Params("code"), device.FromCtx(c))
		if err != nil {
			return errToFiber(err)
		}
		return c.JSON(sess)
	})
}

func errToFiber(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotActive):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, ErrNotInSession):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
