// internal/handlers/auth.go

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ArowuTest/qrng-bridge/internal/auth"
	"github.com/ArowuTest/qrng-bridge/internal/models"
	"github.com/ArowuTest/qrng-bridge/internal/store"
)

// context keys set by RequireAuth
const (
	keyOperatorID = "operator_id"
	keyRole       = "operator_role"
)

// loginRequest defines JSON payload for login.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates an operator and returns a JWT.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid login payload: " + err.Error()})
		return
	}

	op, err := h.operators.GetOperatorByUsername(req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		} else {
			h.logger.Error("operator lookup failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if op.Status != models.StatusActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is " + string(op.Status)})
		return
	}

	token, err := auth.GenerateJWT(op.ID.String(), op.Username, string(op.Role))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":       token,
		"operator_id": op.ID.String(),
		"username":    op.Username,
		"role":        op.Role,
	})
}

// RequireAuth is a middleware that checks for a valid "Bearer" JWT.
// Pass in allowed roles for role-based guarding.
func (h *Handler) RequireAuth(allowedRoles ...models.OperatorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		hdr := c.GetHeader("Authorization")
		if hdr == "" || !strings.HasPrefix(hdr, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := auth.ParseAndVerify(strings.TrimPrefix(hdr, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
			return
		}
		if len(allowedRoles) > 0 {
			valid := false
			for _, r := range allowedRoles {
				if string(r) == claims.Role {
					valid = true
					break
				}
			}
			if !valid {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden for role: " + claims.Role})
				return
			}
		}
		c.Set(keyOperatorID, claims.OperatorID)
		c.Set(keyRole, claims.Role)
		c.Next()
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetString(keyRole) == string(models.RoleAdmin)
}
