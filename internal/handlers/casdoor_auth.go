package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/learnforge/assessment-core/internal/models"
	"github.com/learnforge/assessment-core/internal/repositories"
	casdoorrepo "github.com/learnforge/assessment-core/internal/repositories/casdoor"
)

// CasdoorAuthMiddleware validates bearer tokens against Casdoor and loads the
// caller into the request context.
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
}

func NewCasdoorAuthMiddleware(cfg casdoorrepo.Config, userRepo repositories.UserRepository) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)
	return &CasdoorAuthMiddleware{
		client:   client,
		userRepo: userRepo,
	}
}

// AuthMiddleware rejects requests without a valid bearer token.
func (m *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			unauthorized(c, "missing or malformed authorization header")
			return
		}

		claims, err := m.client.ParseJwtToken(token)
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		if claims.Id == "" {
			unauthorized(c, "token carries no user")
			return
		}

		user, err := m.userRepo.GetByID(c.Request.Context(), claims.Id)
		if err != nil {
			// Fall back to the claims so a Casdoor hiccup doesn't block
			// authenticated traffic.
			user = &models.User{
				ID:          claims.Id,
				Name:        claims.User.Name,
				DisplayName: claims.User.DisplayName,
				Email:       claims.User.Email,
				Role:        models.RoleStudent,
			}
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Next()
	}
}

// RequireRole limits a route group to the given roles; admins always pass.
func (m *CasdoorAuthMiddleware) RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			forbidden(c, "user role not found in context")
			return
		}
		role, ok := value.(models.UserRole)
		if !ok {
			forbidden(c, "invalid user role in context")
			return
		}
		if role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		forbidden(c, "insufficient permissions")
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, ErrorResponse{Message: message})
	c.Abort()
}

func forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, ErrorResponse{Message: message})
	c.Abort()
}
