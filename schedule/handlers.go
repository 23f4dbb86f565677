package schedule

import (
	"errors"
	"strconv"

	"farm_scheduler/farmerr"
	"farm_scheduler/inventory"

	"github.com/gofiber/fiber/v3"
)

type ScheduleHandler struct {
	engine *Engine
}

func NewScheduleHandler(e *Engine) *ScheduleHandler {
	return &ScheduleHandler{
		engine: e,
	}
}

func RegisterScheduleRoutes(router fiber.Router, handler *ScheduleHandler) {
	sched := router.Group("/schedule")
	sched.Get("/water", handler.WaterTimes)
	sched.Get("/water/:zone", handler.IsWaterTime)
	sched.Get("/repot", handler.RepotTable)
	sched.Post("/repot/recompute", handler.Recompute)
	sched.Get("/due", handler.Due)
	sched.Post("/advance", handler.AdvanceAll)
	sched.Post("/outcomes", handler.ReportOutcome)
	sched.Get("/outcomes", handler.RecentOutcomes)

	plants := router.Group("/plants")
	plants.Get("/", handler.ListPlants)
	plants.Post("/", handler.SeedPlant)
	plants.Get("/:id", handler.GetPlant)
	plants.Delete("/:id", handler.RemovePlant)
	plants.Post("/:id/advance", handler.AdvancePlant)
	plants.Post("/:id/promote", handler.PromotePlant)

	slots := router.Group("/slots")
	slots.Get("/", handler.ListSlots)
	slots.Put("/:id/medium", handler.SetMedium)

	router.Get("/zones", handler.ListZones)
	router.Get("/catalog", handler.ListCatalog)
	router.Get("/tools", handler.ListTools)
	router.Get("/tools/:name", handler.GetTool)
}

type SeedReq struct {
	SlotID string `json:"slot_id"`
	Type   string `json:"type"`
}

type MediumReq struct {
	Occupied bool `json:"occupied"`
}

// toHTTPError maps domain errors to status codes.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, farmerr.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, farmerr.ErrNoOp):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, inventory.ErrSlotTaken), errors.Is(err, inventory.ErrNoMedium):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrBadInput):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

func plantID(c fiber.Ctx) (uint64, error) {
	id, err := parsePlantID(c.Params("id"))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return id, nil
}

func (h *ScheduleHandler) WaterTimes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"hours": h.engine.WaterTimes(),
	})
}

func (h *ScheduleHandler) IsWaterTime(c fiber.Ctx) error {
	zone, err := strconv.Atoi(c.Params("zone"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid zone id")
	}
	hour, err := strconv.Atoi(c.Query("hour"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "hour query parameter is required")
	}
	check, err := h.engine.IsWaterTime(zone, hour)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(check)
}

func (h *ScheduleHandler) RepotTable(c fiber.Ctx) error {
	return c.JSON(h.engine.RepotTable())
}

func (h *ScheduleHandler) Recompute(c fiber.Ctx) error {
	return c.JSON(h.engine.RecomputeRepotSchedule())
}

func (h *ScheduleHandler) Due(c fiber.Ctx) error {
	return c.JSON(h.engine.Due())
}

func (h *ScheduleHandler) AdvanceAll(c fiber.Ctx) error {
	n := h.engine.AdvanceAllDays(c.Context())
	return c.JSON(fiber.Map{
		"advanced": n,
	})
}

func (h *ScheduleHandler) ReportOutcome(c fiber.Ctx) error {
	req := new(Outcome)
	if err := c.Bind().JSON(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := h.engine.RecordOutcome(c.Context(), *req); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(fiber.Map{
		"message": "outcome recorded",
	})
}

func (h *ScheduleHandler) RecentOutcomes(c fiber.Ctx) error {
	if h.engine.outcomes == nil {
		return c.JSON([]ActionOutcome{})
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.engine.outcomes.Recent(c.Context(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(rows)
}

func (h *ScheduleHandler) ListPlants(c fiber.Ctx) error {
	return c.JSON(h.engine.Plants())
}

func (h *ScheduleHandler) SeedPlant(c fiber.Ctx) error {
	req := new(SeedReq)
	if err := c.Bind().JSON(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.SlotID == "" || req.Type == "" {
		return fiber.NewError(fiber.StatusBadRequest, "slot_id and type are required")
	}
	p, err := h.engine.Seed(c.Context(), req.SlotID, req.Type)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ScheduleHandler) GetPlant(c fiber.Ctx) error {
	id, err := plantID(c)
	if err != nil {
		return err
	}
	p, err := h.engine.Plant(id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(p)
}

func (h *ScheduleHandler) RemovePlant(c fiber.Ctx) error {
	id, err := plantID(c)
	if err != nil {
		return err
	}
	p, err := h.engine.Remove(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(p)
}

func (h *ScheduleHandler) AdvancePlant(c fiber.Ctx) error {
	id, err := plantID(c)
	if err != nil {
		return err
	}
	p, err := h.engine.AdvanceDay(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(p)
}

func (h *ScheduleHandler) PromotePlant(c fiber.Ctx) error {
	id, err := plantID(c)
	if err != nil {
		return err
	}
	p, err := h.engine.Promote(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(p)
}

func (h *ScheduleHandler) ListSlots(c fiber.Ctx) error {
	return c.JSON(h.engine.Slots())
}

func (h *ScheduleHandler) SetMedium(c fiber.Ctx) error {
	req := new(MediumReq)
	if err := c.Bind().JSON(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s, err := h.engine.SetSlotMedium(c.Context(), c.Params("id"), req.Occupied)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(s)
}

func (h *ScheduleHandler) ListZones(c fiber.Ctx) error {
	return c.JSON(h.engine.Zones())
}

func (h *ScheduleHandler) ListCatalog(c fiber.Ctx) error {
	names := h.engine.CatalogNames()
	types := make([]any, 0, len(names))
	for _, n := range names {
		pt, err := h.engine.PlantType(n)
		if err != nil {
			return toHTTPError(err)
		}
		types = append(types, pt)
	}
	return c.JSON(types)
}

func (h *ScheduleHandler) ListTools(c fiber.Ctx) error {
	return c.JSON(h.engine.Tools())
}

func (h *ScheduleHandler) GetTool(c fiber.Ctx) error {
	pos, err := h.engine.Tool(c.Params("name"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(pos)
}
