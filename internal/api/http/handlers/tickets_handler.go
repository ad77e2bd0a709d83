package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/agentops/internal/api/dto"
	"github.com/spec-kit/agentops/internal/domain"
	"github.com/spec-kit/agentops/internal/orchestrator"
	"github.com/spec-kit/agentops/internal/repository"
	apperrors "github.com/spec-kit/agentops/pkg/util"
)

// TicketsHandler manages ticket and workflow endpoints.
type TicketsHandler struct {
	tickets repository.TicketRepository
	audits  repository.AuditRepository
	orc     *orchestrator.Orchestrator
	pool    *orchestrator.Pool
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets repository.TicketRepository, audits repository.AuditRepository, orc *orchestrator.Orchestrator, pool *orchestrator.Pool) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, audits: audits, orc: orc, pool: pool}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.RequesterEmail) == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("requester_email and title required", nil)
	}
	externalKey := strings.TrimSpace(req.ExternalKey)
	if externalKey == "" {
		externalKey = "TKT-" + strings.ToUpper(uuid.NewString()[:8])
	}

	ticket := &domain.Ticket{
		ExternalKey:    externalKey,
		RequesterEmail: strings.TrimSpace(req.RequesterEmail),
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		Status:         domain.TicketStatusNew,
	}
	if err := h.tickets.Create(c.UserContext(), ticket); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	tickets, err := h.tickets.List(c.UserContext(), parseTicketQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	records, err := h.audits.ListByTicket(c.UserContext(), ticket.ID, 0)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(ticket, records)})
}

// RunTicket POST /tickets/:id/run.
func (h *TicketsHandler) RunTicket(c *fiber.Ctx) error {
	var req dto.RunTicketRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	opts := orchestrator.RunOptions{IdentityVerified: req.IdentityVerified}

	if req.Async {
		if err := h.pool.Enqueue(c.Params("id"), opts); err != nil {
			return err
		}
		return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{
			"ticket_id": c.Params("id"),
			"queued":    true,
		}})
	}

	outcome, err := h.orc.Run(c.UserContext(), c.Params("id"), opts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": outcome})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	ticket, err := h.orc.Close(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSummary(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) repository.TicketFilter {
	filter := repository.TicketFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.TicketCategory(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.TicketPriority(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &parsed
}

func parseInt(val string, fallback int) int {
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:                ticket.ID,
		ExternalKey:       ticket.ExternalKey,
		Title:             ticket.Title,
		Category:          string(ticket.Category),
		Priority:          string(ticket.Priority),
		Status:            string(ticket.Status),
		EscalationReason:  ticket.EscalationReason,
		ResolutionSummary: ticket.ResolutionSummary,
		CreatedAt:         ticket.CreatedAt,
		UpdatedAt:         ticket.UpdatedAt,
		ClosedAt:          ticket.ClosedAt,
	}
}

func ticketDetail(ticket *domain.Ticket, records []domain.AuditRecord) dto.TicketDetail {
	detail := dto.TicketDetail{
		TicketSummary:  ticketSummary(ticket),
		RequesterEmail: ticket.RequesterEmail,
		Description:    ticket.Description,
		ActionsTaken:   ticket.ActionsTaken,
	}
	if detail.ActionsTaken == nil {
		detail.ActionsTaken = []domain.ToolInvocation{}
	}
	detail.Audit = make([]dto.AuditEntry, 0, len(records))
	for _, record := range records {
		detail.Audit = append(detail.Audit, dto.AuditEntry{
			Stage:     record.Stage,
			FromState: record.FromState,
			ToState:   record.ToState,
			Action:    record.Action,
			Reason:    record.Reason,
			CreatedAt: record.CreatedAt,
		})
	}
	return detail
}
