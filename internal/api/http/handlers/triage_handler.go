package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util"
)

// TrainedModel reports training metadata for the dispatch model.
type TrainedModel interface {
	LastTrained(ctx context.Context) time.Time
}

// TriageHandler exposes the triage pipeline trigger and read endpoints.
type TriageHandler struct {
	triage *service.TriageService
	cfg    *config.TriageConfigProvider
	model  TrainedModel
}

// NewTriageHandler returns a new handler instance. model may be nil when no
// dispatch model is installed.
func NewTriageHandler(triage *service.TriageService, cfg *config.TriageConfigProvider, model TrainedModel) *TriageHandler {
	return &TriageHandler{triage: triage, cfg: cfg, model: model}
}

// ProcessItem runs the full pipeline over one work item.
func (h *TriageHandler) ProcessItem(c *fiber.Ctx) error {
	itemID := c.Params("id")
	if itemID == "" {
		return apperrors.NewValidationError("item id is required", nil)
	}

	result, err := h.triage.ProcessItem(c.UserContext(), itemID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Run sweeps every open item through the pipeline.
func (h *TriageHandler) Run(c *fiber.Ctx) error {
	result, err := h.triage.ProcessAllOpenItems(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Recalculate rescores every open item's priority.
func (h *TriageHandler) Recalculate(c *fiber.Ctx) error {
	processed, err := h.triage.RecalculateAllPriorities(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"processed": processed})
}

// Backlog returns open item ids in priority order.
func (h *TriageHandler) Backlog(c *fiber.Ctx) error {
	ids, err := h.triage.PrioritizedBacklog(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"items": ids})
}

// Features returns the item's extracted feature vector for the requested
// schema domain, defaulting to the work item schema.
func (h *TriageHandler) Features(c *fiber.Ctx) error {
	itemID := c.Params("id")
	if itemID == "" {
		return apperrors.NewValidationError("item id is required", nil)
	}
	domainID := c.Query("domain", "work_item")

	features, err := h.triage.ItemFeatures(c.UserContext(), itemID, domainID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"domain": domainID, "features": features})
}

// CapacityRisk runs the inflow-vs-capacity check on demand, alongside the
// current open backlog size for context.
func (h *TriageHandler) CapacityRisk(c *fiber.Ctx) error {
	risk, err := h.triage.CapacityRisk(c.UserContext())
	if err != nil {
		return err
	}
	openItems, err := h.triage.OpenItemCount(c.UserContext())
	if err != nil {
		return err
	}
	if risk == nil {
		return c.JSON(fiber.Map{"at_risk": false, "open_items": openItems})
	}
	return c.JSON(fiber.Map{"at_risk": true, "open_items": openItems, "risk": risk})
}

// ModelStatus reports dispatch model training metadata.
func (h *TriageHandler) ModelStatus(c *fiber.Ctx) error {
	if h.model == nil {
		return c.JSON(fiber.Map{"installed": false})
	}
	lastTrained := h.model.LastTrained(c.UserContext())
	response := fiber.Map{"installed": true, "trained": !lastTrained.IsZero()}
	if !lastTrained.IsZero() {
		response["last_trained"] = lastTrained
	}
	return c.JSON(response)
}

// ReloadConfig re-reads the triage configuration tree from disk. Pipeline
// runs pick up the new tree on their next snapshot; the scheduler's cron
// cadences are fixed at startup and need a restart to change.
func (h *TriageHandler) ReloadConfig(c *fiber.Ctx) error {
	if err := h.cfg.Reload(); err != nil {
		return apperrors.NewConfigurationError("triage config reload failed", fiber.Map{"reason": err.Error()})
	}
	snapshot := h.cfg.Snapshot()
	return c.JSON(fiber.Map{"version": snapshot.Version, "enabled": snapshot.Enabled})
}
