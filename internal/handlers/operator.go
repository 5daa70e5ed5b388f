package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArowuTest/qrng-bridge/internal/models"
	"github.com/ArowuTest/qrng-bridge/internal/store"
)

// HashPassword hashes a plaintext operator password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CreateOperator creates a new operator.
func (h *Handler) CreateOperator(c *gin.Context) {
	var input struct {
		Username string                `json:"username" binding:"required"`
		Email    string                `json:"email" binding:"required,email"`
		Password string                `json:"password" binding:"required,min=8"`
		Role     models.OperatorRole   `json:"role" binding:"required"`
		Status   models.OperatorStatus `json:"status,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}

	if !input.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}
	if input.Status == "" {
		input.Status = models.StatusActive
	} else if !input.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	hashed, err := HashPassword(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	op := models.Operator{
		ID:           uuid.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashed,
		Role:         input.Role,
		Status:       input.Status,
	}
	if err := h.operators.CreateOperator(&op); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create operator: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, op)
}

// ListOperators returns all operators.
func (h *Handler) ListOperators(c *gin.Context) {
	ops, err := h.operators.ListOperators()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list operators: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, ops)
}

func (h *Handler) lookupOperator(c *gin.Context) (*models.Operator, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UUID format"})
		return nil, false
	}
	op, err := h.operators.GetOperator(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Operator not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "DB error: " + err.Error()})
		}
		return nil, false
	}
	return op, true
}

// GetOperator returns one operator by ID.
func (h *Handler) GetOperator(c *gin.Context) {
	op, ok := h.lookupOperator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, op)
}

// UpdateOperator updates an existing operator.
func (h *Handler) UpdateOperator(c *gin.Context) {
	existing, ok := h.lookupOperator(c)
	if !ok {
		return
	}

	var payload struct {
		Email    string                `json:"email,omitempty"`
		Role     models.OperatorRole   `json:"role,omitempty"`
		Status   models.OperatorStatus `json:"status,omitempty"`
		Password string                `json:"password,omitempty"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}

	if payload.Email != "" {
		existing.Email = payload.Email
	}
	if payload.Role != "" {
		if !payload.Role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		existing.Role = payload.Role
	}
	if payload.Status != "" {
		if !payload.Status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		existing.Status = payload.Status
	}
	if payload.Password != "" {
		if len(payload.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password too short"})
			return
		}
		hashed, err := HashPassword(payload.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash new password"})
			return
		}
		existing.PasswordHash = hashed
	}

	if err := h.operators.UpdateOperator(existing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, existing)
}

// DeleteOperator removes an operator by ID.
func (h *Handler) DeleteOperator(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UUID"})
		return
	}
	if err := h.operators.DeleteOperator(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Operator not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}
