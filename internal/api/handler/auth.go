package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "denuncia-backend"
	defaultTokenTTL = 12 * time.Hour

	ctxStaffID = "staff_id"
)

var errInvalidToken = errors.New("invalid token")

// Tokens issues and verifies the HS256 bearer tokens staff authenticate with.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token carrying staffID.
func (t *Tokens) Issue(staffID uint) (string, error) {
	now := t.now()
	claims := jwt.MapClaims{
		"staff_id": staffID,
		"iat":      now.Unix(),
		"exp":      now.Add(t.ttl).Unix(),
		"iss":      tokenIssuer,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies raw and returns the staff id it carries.
func (t *Tokens) Parse(raw string) (uint, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	id, ok := claims["staff_id"].(float64)
	if !ok || id < 1 || id != float64(uint(id)) {
		return 0, fmt.Errorf("%w: bad staff_id claim", errInvalidToken)
	}
	return uint(id), nil
}

// bearerToken reads "Authorization: Bearer <t>". Browsers cannot set headers
// on a WebSocket handshake, so the feed also accepts ?token=.
func bearerToken(c *gin.Context, allowQuery bool) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// requireStaff authenticates the request and stores the staff id in the
// context.
func (h *Handler) requireStaff(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c, allowQuery)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
			return
		}
		staffID, err := h.Tokens.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(ctxStaffID, staffID)
		c.Next()
	}
}

// requirePermission rejects staff whose role does not grant action. Inactive
// staff hold no permissions.
func (h *Handler) requirePermission(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := h.Permissions.HasPermission(c.Request.Context(), c.GetUint(ctxStaffID), action)
		if err != nil {
			h.logger.Error("permission check failed", "staff_id", c.GetUint(ctxStaffID), "action", action, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func staffIDFrom(c *gin.Context) *uint {
	id := c.GetUint(ctxStaffID)
	if id == 0 {
		return nil
	}
	return &id
}
