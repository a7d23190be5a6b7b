package controller

import (
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"insights-service/internal/model"
	"insights-service/internal/service"
)

type EventController interface {
	CreateEvent(c *fiber.Ctx) error
}

type InsightController interface {
	GetTrends(c *fiber.Ctx) error
	GetPaths(c *fiber.Ctx) error
	GetLifecyclePeople(c *fiber.Ctx) error
}

// eventController exposes HTTP handlers for ingestion endpoints.
type eventController struct {
	eventService service.EventService
}

// NewEventController builds an EventController.
func NewEventController(svc service.EventService) EventController {
	return &eventController{eventService: svc}
}

// CreateEvent accepts single event payloads.
func (h *eventController) CreateEvent(c *fiber.Ctx) error {
	var req model.EventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json payload")
	}

	teamID, err := teamID(c)
	if err != nil {
		return err
	}

	event, err := h.eventService.BuildEvent(req, teamID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.eventService.ProcessEvent(c.Context(), event)

	return c.SendStatus(fiber.StatusAccepted)
}

// insightController exposes HTTP handlers for the insight endpoints.
type insightController struct {
	insightService service.InsightService
	pathService    service.PathService
}

// NewInsightController builds an InsightController.
func NewInsightController(insights service.InsightService, paths service.PathService) InsightController {
	return &insightController{insightService: insights, pathService: paths}
}

// GetTrends returns chart-ready trend or lifecycle series.
func (h *insightController) GetTrends(c *fiber.Ctx) error {
	teamID, err := teamID(c)
	if err != nil {
		return err
	}
	req, err := buildFilterRequest(c)
	if err != nil {
		return err
	}

	series, svcErr := h.insightService.Trends(c.Context(), req, teamID)
	if svcErr != nil {
		return mapServiceError(svcErr, "failed to compute trends")
	}
	return c.JSON(fiber.Map{"result": series})
}

// GetPaths returns the aggregated step transitions of the path engine.
func (h *insightController) GetPaths(c *fiber.Ctx) error {
	teamID, err := teamID(c)
	if err != nil {
		return err
	}
	req, err := buildFilterRequest(c)
	if err != nil {
		return err
	}

	edges, svcErr := h.pathService.Paths(c.Context(), req, teamID)
	if svcErr != nil {
		return mapServiceError(svcErr, "failed to compute paths")
	}
	return c.JSON(fiber.Map{"result": edges})
}

// GetLifecyclePeople pages through the actors behind one lifecycle cell.
func (h *insightController) GetLifecyclePeople(c *fiber.Ctx) error {
	teamID, err := teamID(c)
	if err != nil {
		return err
	}
	req, err := buildFilterRequest(c)
	if err != nil {
		return err
	}

	status := utils.Trim(c.Query("lifecycle_type"), ' ')
	target := utils.Trim(c.Query("target_date"), ' ')
	if target == "" {
		return fiber.NewError(fiber.StatusBadRequest, "target_date is required")
	}
	page := c.QueryInt("page", 0)

	people, svcErr := h.insightService.LifecyclePeople(c.Context(), req, teamID, status, target, page)
	if svcErr != nil {
		return mapServiceError(svcErr, "failed to fetch lifecycle people")
	}
	return c.JSON(fiber.Map{"result": people})
}

func teamID(c *fiber.Ctx) (int64, error) {
	raw := utils.Trim(c.Query("team_id", "1"), ' ')
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid team_id")
	}
	return id, nil
}

// buildFilterRequest reads the insight query parameters. Structured values
// (events, actions, properties, cohort lists) arrive JSON-encoded.
func buildFilterRequest(c *fiber.Ctx) (model.FilterRequest, error) {
	req := model.FilterRequest{
		DateFrom:           utils.Trim(c.Query("date_from"), ' '),
		DateTo:             utils.Trim(c.Query("date_to"), ' '),
		Interval:           utils.Trim(c.Query("interval"), ' '),
		Breakdown:          c.Query("breakdown"),
		BreakdownType:      utils.Trim(c.Query("breakdown_type"), ' '),
		Display:            utils.Trim(c.Query("display"), ' '),
		Compare:            c.QueryBool("compare", false),
		ShownAs:            utils.Trim(c.Query("shown_as"), ' '),
		StartPoint:         c.Query("start_point"),
		PathType:           utils.Trim(c.Query("path_type"), ' '),
		FilterTestAccounts: c.QueryBool("filter_test_accounts", false),
	}

	if err := decodeQueryJSON(c, "events", &req.Events); err != nil {
		return model.FilterRequest{}, err
	}
	if err := decodeQueryJSON(c, "actions", &req.Actions); err != nil {
		return model.FilterRequest{}, err
	}
	if err := decodeQueryJSON(c, "properties", &req.Properties); err != nil {
		return model.FilterRequest{}, err
	}
	if err := decodeQueryJSON(c, "breakdown_cohorts", &req.BreakdownCohorts); err != nil {
		return model.FilterRequest{}, err
	}

	return req, nil
}

func decodeQueryJSON(c *fiber.Ctx, name string, out any) error {
	raw := c.Query(name)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" parameter")
	}
	return nil
}

func mapServiceError(err error, fallback string) error {
	if _, ok := err.(*service.ValidationError); ok {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}
