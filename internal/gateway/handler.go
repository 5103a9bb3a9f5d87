package gateway

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/types"
)

// Handler exposes agent gateway endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an agent gateway handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerAgentRequest struct {
	Address     string   `json:"address"`
	Permissions []string `json:"permissions"`
}

type agentResponse struct {
	Address      string   `json:"address"`
	Permissions  []string `json:"permissions"`
	RegisteredAt int64    `json:"registered_at"`
}

func toAgentResponse(a Agent) agentResponse {
	return agentResponse{Address: a.Address, Permissions: a.Permissions, RegisteredAt: a.RegisteredAt}
}

// Register grants an agent its permissions.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	agent, err := h.service.Register(c.UserContext(), caller, req.Address, req.Permissions)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUnauthorized):
			return fiber.NewError(http.StatusForbidden, "admin only")
		case errors.Is(err, ErrAgentExists):
			return fiber.NewError(http.StatusConflict, "agent already registered")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toAgentResponse(agent))
}

// Revoke removes an agent.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	caller, _ := c.Locals("account_id").(string)
	if err := h.service.Revoke(c.UserContext(), caller, c.Params("address")); err != nil {
		if errors.Is(err, types.ErrUnauthorized) {
			return fiber.NewError(http.StatusForbidden, "admin only")
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "revoked"})
}

// Get returns one agent.
func (h *Handler) Get(c *fiber.Ctx) error {
	agent, err := h.service.Get(c.UserContext(), c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if agent == nil {
		return fiber.NewError(http.StatusNotFound, "agent not found")
	}
	return c.Status(http.StatusOK).JSON(toAgentResponse(*agent))
}

// List returns all registered agents.
func (h *Handler) List(c *fiber.Ctx) error {
	agents, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	out := make([]agentResponse, len(agents))
	for i, a := range agents {
		out[i] = toAgentResponse(a)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"agents": out})
}

type executePayrollRequest struct {
	Payee     string  `json:"payee"`
	StreamIDs []int64 `json:"stream_ids"`
}

// ExecutePayroll sweeps vested funds from the given streams to their payee.
func (h *Handler) ExecutePayroll(c *fiber.Ctx) error {
	var req executePayrollRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	results, err := h.service.ExecutePayroll(c.UserContext(), caller, req.Payee, req.StreamIDs)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUnauthorized):
			return fiber.NewError(http.StatusForbidden, "missing execute_payroll permission")
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"results": results})
}
