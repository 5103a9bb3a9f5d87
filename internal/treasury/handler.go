package treasury

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/types"
)

// Handler exposes treasury endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a treasury handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

// Deposit moves the caller's funds into treasury custody.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)
	asset := c.Params("asset")

	if err := h.service.Deposit(c.UserContext(), caller, asset, req.Amount); err != nil {
		return treasuryError(err)
	}
	balance, err := h.service.Balance(c.UserContext(), asset)
	if err != nil {
		return treasuryError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"asset":   asset,
		"balance": balance,
	})
}

type withdrawFreeRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// WithdrawFree draws down uncommitted funds. Admin only.
func (h *Handler) WithdrawFree(c *fiber.Ctx) error {
	var req withdrawFreeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)
	asset := c.Params("asset")
	to := req.To
	if to == "" {
		to = caller
	}

	if err := h.service.WithdrawFree(c.UserContext(), caller, asset, to, req.Amount); err != nil {
		return treasuryError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"asset":  asset,
		"to":     to,
		"amount": req.Amount,
	})
}

// Entry reports the asset's balance, liability and free margin.
func (h *Handler) Entry(c *fiber.Ctx) error {
	asset := c.Params("asset")
	ctx := c.UserContext()

	balance, err := h.service.Balance(ctx, asset)
	if err != nil {
		return treasuryError(err)
	}
	liability, err := h.service.Liability(ctx, asset)
	if err != nil {
		return treasuryError(err)
	}
	available, err := h.service.Available(ctx, asset)
	if err != nil {
		return treasuryError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"asset":     asset,
		"balance":   balance,
		"liability": liability,
		"available": available,
	})
}

type authorizedCallerRequest struct {
	Principal string `json:"principal"`
}

// SetAuthorizedCaller designates the principal allowed to move liability.
func (h *Handler) SetAuthorizedCaller(c *fiber.Ctx) error {
	var req authorizedCallerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	if err := h.service.SetAuthorizedCaller(c.UserContext(), caller, req.Principal); err != nil {
		return treasuryError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"authorized_caller": req.Principal})
}

type transferAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

// TransferAdmin hands the treasury admin role to another principal.
func (h *Handler) TransferAdmin(c *fiber.Ctx) error {
	var req transferAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	if err := h.service.TransferAdmin(c.UserContext(), caller, req.NewAdmin); err != nil {
		return treasuryError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"admin": req.NewAdmin})
}

func treasuryError(err error) error {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, "not allowed")
	case errors.Is(err, types.ErrInsufficientBalance):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient free balance")
	case errors.Is(err, types.ErrAlreadyInitialized), errors.Is(err, types.ErrNotInitialized):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, types.ErrInvalidAmount), errors.Is(err, types.ErrOverflow):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
