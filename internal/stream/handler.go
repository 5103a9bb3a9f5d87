package stream

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/quipay/quipay/internal/types"
)

// Handler exposes stream engine endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a stream handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createStreamRequest struct {
	Payee     string `json:"payee"`
	Asset     string `json:"asset"`
	Rate      int64  `json:"rate"`
	CliffTime int64  `json:"cliff_time"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
}

type streamResponse struct {
	ID                 int64  `json:"id"`
	Payer              string `json:"payer"`
	Payee              string `json:"payee"`
	Asset              string `json:"asset"`
	Rate               int64  `json:"rate"`
	CliffTime          int64  `json:"cliff_time"`
	StartTime          int64  `json:"start_time"`
	EndTime            int64  `json:"end_time"`
	TotalAmount        int64  `json:"total_amount"`
	WithdrawnAmount    int64  `json:"withdrawn_amount"`
	LastWithdrawalTime int64  `json:"last_withdrawal_time,omitempty"`
	Status             string `json:"status"`
	CreatedAt          int64  `json:"created_at"`
	ClosedAt           int64  `json:"closed_at,omitempty"`
}

func toStreamResponse(s Stream) streamResponse {
	return streamResponse{
		ID:                 s.ID,
		Payer:              s.Payer,
		Payee:              s.Payee,
		Asset:              s.Asset,
		Rate:               s.Rate,
		CliffTime:          s.CliffTime,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		TotalAmount:        s.TotalAmount,
		WithdrawnAmount:    s.WithdrawnAmount,
		LastWithdrawalTime: s.LastWithdrawalTime,
		Status:             string(s.Status),
		CreatedAt:          s.CreatedAt,
		ClosedAt:           s.ClosedAt,
	}
}

// Create opens a vesting stream funded by the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createStreamRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	created, err := h.service.Create(c.UserContext(), CreateInput{
		Payer:     caller,
		Payee:     req.Payee,
		Asset:     req.Asset,
		Rate:      req.Rate,
		CliffTime: req.CliffTime,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		return streamError(err)
	}
	return c.Status(http.StatusCreated).JSON(toStreamResponse(created))
}

// Get returns one stream by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseStreamID(c)
	if err != nil {
		return err
	}
	stream, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return streamError(err)
	}
	if stream == nil {
		return fiber.NewError(http.StatusNotFound, "stream not found")
	}
	return c.Status(http.StatusOK).JSON(toStreamResponse(*stream))
}

// List returns the streams for a payer or payee.
func (h *Handler) List(c *fiber.Ctx) error {
	payer := c.Query("payer")
	payee := c.Query("payee")

	var (
		streams []Stream
		err     error
	)
	switch {
	case payer != "":
		streams, err = h.service.ByPayer(c.UserContext(), payer)
	case payee != "":
		streams, err = h.service.ByPayee(c.UserContext(), payee)
	default:
		return fiber.NewError(http.StatusBadRequest, "payer or payee query parameter is required")
	}
	if err != nil {
		return streamError(err)
	}

	out := make([]streamResponse, len(streams))
	for i, s := range streams {
		out[i] = toStreamResponse(s)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"streams": out})
}

// Withdraw pays the caller everything vested on one stream.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	id, err := parseStreamID(c)
	if err != nil {
		return err
	}
	caller, _ := c.Locals("account_id").(string)

	amount, err := h.service.Withdraw(c.UserContext(), caller, id)
	if err != nil {
		return streamError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"stream_id": id,
		"amount":    amount,
	})
}

type batchWithdrawRequest struct {
	StreamIDs []int64 `json:"stream_ids"`
}

// WithdrawBatch pays the caller across several streams, item by item.
func (h *Handler) WithdrawBatch(c *fiber.Ctx) error {
	var req batchWithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if len(req.StreamIDs) == 0 {
		return fiber.NewError(http.StatusBadRequest, "stream_ids is required")
	}
	caller, _ := c.Locals("account_id").(string)

	results := h.service.BatchWithdraw(c.UserContext(), caller, req.StreamIDs)
	return c.Status(http.StatusOK).JSON(fiber.Map{"results": results})
}

// Cancel closes the caller's stream and releases its remainder.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id, err := parseStreamID(c)
	if err != nil {
		return err
	}
	caller, _ := c.Locals("account_id").(string)

	if err := h.service.Cancel(c.UserContext(), caller, id); err != nil {
		return streamError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "canceled"})
}

// Cleanup removes a closed stream past its retention window.
func (h *Handler) Cleanup(c *fiber.Ctx) error {
	id, err := parseStreamID(c)
	if err != nil {
		return err
	}
	if err := h.service.Cleanup(c.UserContext(), id); err != nil {
		return streamError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "removed"})
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

// SetPaused flips the protocol pause switch.
func (h *Handler) SetPaused(c *fiber.Ctx) error {
	var req pauseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	if err := h.service.SetPaused(c.UserContext(), caller, req.Paused); err != nil {
		return streamError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"paused": req.Paused})
}

type retentionRequest struct {
	Seconds int64 `json:"seconds"`
}

// SetRetention changes the closed-stream retention period.
func (h *Handler) SetRetention(c *fiber.Ctx) error {
	var req retentionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	caller, _ := c.Locals("account_id").(string)

	if err := h.service.SetRetention(c.UserContext(), caller, req.Seconds); err != nil {
		return streamError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"retention_seconds": req.Seconds})
}

func parseStreamID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(http.StatusBadRequest, "invalid stream id")
	}
	return id, nil
}

func streamError(err error) error {
	switch {
	case errors.Is(err, types.ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, "not allowed")
	case errors.Is(err, types.ErrStreamNotFound):
		return fiber.NewError(http.StatusNotFound, "stream not found")
	case errors.Is(err, types.ErrInsufficientBalance):
		return fiber.NewError(http.StatusUnprocessableEntity, "insufficient treasury balance")
	case errors.Is(err, types.ErrPaused):
		return fiber.NewError(http.StatusConflict, "protocol paused")
	case errors.Is(err, types.ErrStreamClosed),
		errors.Is(err, types.ErrStreamNotClosed),
		errors.Is(err, types.ErrRetentionNotElapsed),
		errors.Is(err, types.ErrInvalidAmount),
		errors.Is(err, types.ErrOverflow):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
