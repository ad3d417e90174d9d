package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/spec-kit/ticket-lifecycle/internal/api/dto"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
	apperrors "github.com/spec-kit/ticket-lifecycle/pkg/util/errorutil"
)

const cancelAllMessage = "All in-progress tickets have been canceled"

// TicketsHandler exposes the ticket lifecycle over HTTP.
type TicketsHandler struct {
	service   *service.TicketService
	validator *RequestValidator
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, validator *RequestValidator) *TicketsHandler {
	return &TicketsHandler{service: ticketService, validator: validator}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), req.Topic, req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// TakeTicketToWork PUT /tickets/:id/take-to-work.
func (h *TicketsHandler) TakeTicketToWork(c *fiber.Ctx) error {
	ticket, err := h.service.TakeTicketToWork(c.UserContext(), ticketID(c))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// CompleteTicket PUT /tickets/:id/complete.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	var req dto.CompleteTicketRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CompleteTicket(c.UserContext(), ticketID(c), req.Solution)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// CancelTicket PUT /tickets/:id/cancel.
func (h *TicketsHandler) CancelTicket(c *fiber.Ctx) error {
	var req dto.CancelTicketRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CancelTicket(c.UserContext(), ticketID(c), req.CancellationReason)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// ListTickets GET /tickets?startDate=&endDate=.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	var query dto.TicketListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	details := map[string]any{}
	start, err := parseDate(query.StartDate)
	if err != nil {
		details["startDate"] = err.Error()
	}
	end, err := parseDate(query.EndDate)
	if err != nil {
		details["endDate"] = err.Error()
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("Validation error", details)
	}

	tickets, err := h.service.GetTickets(c.UserContext(), start, end)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketListResponse(tickets))
}

// CancelAllInProgress POST /tickets/cancel-all-in-progress.
func (h *TicketsHandler) CancelAllInProgress(c *fiber.Ctx) error {
	if _, err := h.service.CancelAllInProgressTickets(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(dto.MessageResponse{Message: cancelAllMessage})
}

func (h *TicketsHandler) bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.validator.Struct(req)
}

// ticketID copies the path param; fiber's value points into a pooled buffer.
func ticketID(c *fiber.Ctx) string {
	return utils.CopyString(c.Params("id"))
}
