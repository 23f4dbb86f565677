package fleet

import (
	"errors"

	"farm_scheduler/farmerr"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type FleetHandler struct {
	service *DeviceService
	dlq     DLQManager
}

func NewFleetHandler(s *DeviceService, dlq DLQManager) *FleetHandler {
	return &FleetHandler{
		service: s,
		dlq:     dlq,
	}
}

func RegisterFleetRoutes(router fiber.Router, handler *FleetHandler) {
	fleet := router.Group("/fleet")
	fleet.Get("/", handler.ListFleetDevices)
	fleet.Post("/register", handler.RegisterFleetDevice)
	fleet.Post("/tasks", handler.PublishTask)
	fleet.Get("/tasks/:id", handler.GetTaskStatus)
	fleet.Get("/dlq", handler.ListDLQ)
	fleet.Post("/dlq/:id/requeue", handler.RequeueDLQ)
	fleet.Delete("/dlq/:id", handler.RemoveDLQ)
	fleet.Delete("/dlq", handler.ClearDLQ)
	fleet.Delete("/:uid", handler.UnregisterFleetDevice)
}

func fleetHTTPError(err error) error {
	switch {
	case errors.Is(err, farmerr.ErrNotFound), errors.Is(err, ErrTaskNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		log.Debug().Str("param", c.Params(name)).Msg("invalid uuid")
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid uuid")
	}
	return id, nil
}

// RegisterFleetDevice connects a new device to the network
func (h *FleetHandler) RegisterFleetDevice(c fiber.Ctx) error {
	req := new(RegisterDeviceReq)
	if err := c.Bind().JSON(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	id, err := h.service.RegisterDevice(c.Context(), *req)
	if err != nil {
		return fleetHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "device registered successfully",
		"uuid":    id,
	})
}

func (h *FleetHandler) UnregisterFleetDevice(c fiber.Ctx) error {
	id, err := uuidParam(c, "uid")
	if err != nil {
		return err
	}
	if err := h.service.UnregisterDevice(c.Context(), id); err != nil {
		return fleetHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *FleetHandler) ListFleetDevices(c fiber.Ctx) error {
	devices, err := h.service.ListDevices(c.Context())
	if err != nil {
		return fleetHTTPError(err)
	}
	return c.JSON(devices)
}

func (h *FleetHandler) PublishTask(c fiber.Ctx) error {
	task := new(Task)
	if err := c.Bind().JSON(task); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	id, err := h.service.PublishTask(c.Context(), *task)
	if err != nil {
		return fleetHTTPError(err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"task_id": id})
}

func (h *FleetHandler) GetTaskStatus(c fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	state, err := h.service.TaskStatus(id)
	if err != nil {
		return fleetHTTPError(err)
	}
	return c.JSON(state)
}

func (h *FleetHandler) ListDLQ(c fiber.Ctx) error {
	return c.JSON(h.dlq.GetDLQTasks())
}

func (h *FleetHandler) RequeueDLQ(c fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.dlq.RequeueFromDLQ(id); err != nil {
		return fleetHTTPError(err)
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (h *FleetHandler) RemoveDLQ(c fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.dlq.RemoveFromDLQ(id); err != nil {
		return fleetHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *FleetHandler) ClearDLQ(c fiber.Ctx) error {
	h.dlq.ClearDLQ()
	return c.SendStatus(fiber.StatusNoContent)
}
