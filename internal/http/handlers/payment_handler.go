package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/souqdz/marketplace-backend/internal/service"
)

// PaymentHandler обслуживает escrow-платежи и реферальные начисления.
type PaymentHandler struct {
	escrow    *service.EscrowService
	referrals *service.ReferralService
}

// NewPaymentHandler создаёт хэндлер платежей.
func NewPaymentHandler(escrow *service.EscrowService, referrals *service.ReferralService) *PaymentHandler {
	return &PaymentHandler{escrow: escrow, referrals: referrals}
}

type createEscrowRequest struct {
	ProductID     uuid.UUID `json:"product_id" binding:"required"`
	PaymentMethod string    `json:"payment_method" binding:"required"`
}

// CreateEscrow обрабатывает POST /api/payments/create-escrow.
// Деньги покупателя замораживаются, товар уходит в pending.
func (h *PaymentHandler) CreateEscrow(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
		return
	}

	var req createEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный формат запроса"})
		return
	}

	res, err := h.escrow.CreateEscrow(c.Request.Context(), userID, req.ProductID, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction": res.Transaction,
		"payment_url": res.PaymentURL,
	})
}

type transactionIDRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
}

// ConfirmDelivery обрабатывает POST /api/payments/confirm-delivery.
// Только покупатель подтверждает получение; эскроу выпускается один раз.
func (h *PaymentHandler) ConfirmDelivery(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
		return
	}

	var req transactionIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный формат запроса"})
		return
	}

	released, err := h.escrow.ConfirmDelivery(c.Request.Context(), userID, req.TransactionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transaction":   released,
		"seller_payout": released.SellerPayout(),
	})
}

// CancelTransaction обрабатывает POST /api/payments/cancel.
func (h *PaymentHandler) CancelTransaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
		return
	}

	var req transactionIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "неверный формат запроса"})
		return
	}

	cancelled, err := h.escrow.Cancel(c.Request.Context(), userID, req.TransactionID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": cancelled})
}

// ListTransactions обрабатывает GET /api/payments/transactions.
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
		return
	}

	transactions, err := h.escrow.ListTransactions(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

// ReferralEarnings обрабатывает GET /api/payments/referral-earnings.
func (h *PaymentHandler) ReferralEarnings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
		return
	}

	stats, err := h.referrals.Aggregate(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
