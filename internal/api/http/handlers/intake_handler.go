package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wrrk/support/internal/api/dto"
	"github.com/wrrk/support/internal/domain"
	"github.com/wrrk/support/internal/service"
	apperrors "github.com/wrrk/support/pkg/util"
)

// IntakeHandler exposes the unauthenticated customer entry points: the
// email ingestion webhook and the chat widget.
type IntakeHandler struct {
	intake   *service.IntakeService
	messages *service.MessageService
}

// NewIntakeHandler constructs handler.
func NewIntakeHandler(intake *service.IntakeService, messages *service.MessageService) *IntakeHandler {
	return &IntakeHandler{intake: intake, messages: messages}
}

// InboundEmail POST /inbound/email.
func (h *IntakeHandler) InboundEmail(c *fiber.Ctx) error {
	var req dto.InboundEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.intake.HandleInbound(c.UserContext(), service.InboundMessage{
		OrganizationID: req.OrganizationID,
		Email:          req.From,
		Name:           req.Name,
		Subject:        req.Subject,
		Body:           req.Body,
		Channel:        domain.ChannelEmail,
	})
	if err != nil {
		return err
	}
	return c.Status(intakeStatus(result)).JSON(fiber.Map{"data": intakeResponse(result)})
}

// WidgetMessage POST /widget/messages.
func (h *IntakeHandler) WidgetMessage(c *fiber.Ctx) error {
	var req dto.WidgetMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.intake.HandleInbound(c.UserContext(), service.InboundMessage{
		OrganizationID: req.OrganizationID,
		Email:          req.Email,
		Name:           req.Name,
		Body:           req.Body,
		Channel:        domain.ChannelChat,
	})
	if err != nil {
		return err
	}
	return c.Status(intakeStatus(result)).JSON(fiber.Map{"data": intakeResponse(result)})
}

// WidgetFollowUp POST /widget/tickets/:id/messages.
func (h *IntakeHandler) WidgetFollowUp(c *fiber.Ctx) error {
	var req dto.WidgetFollowUpRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CustomerID == "" {
		return apperrors.NewValidationError("customer_id required", nil)
	}
	msg, err := h.messages.AddCustomerMessage(c.UserContext(), c.Params("id"), req.CustomerID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

func intakeStatus(result *service.IntakeResult) int {
	if result.Ticket != nil {
		return fiber.StatusCreated
	}
	return fiber.StatusOK
}

func intakeResponse(result *service.IntakeResult) dto.IntakeResponse {
	resp := dto.IntakeResponse{
		Resolved: result.Resolved,
		Response: result.Response,
	}
	if result.Ticket != nil {
		ticket := ticketResponse(result.Ticket)
		resp.Ticket = &ticket
	}
	return resp
}
