package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	bookingapp "staybook/internal/app/handlers/booking"
)

const principalContextKey = "staybook.principal"

// principal is the authenticated caller as asserted by the edge proxy.
// Identity termination happens upstream; this service trusts the forwarded
// identity headers on its internal listener.
type principal struct {
	ID    string
	Email string
	Roles []string
}

func (p principal) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return false
	}
	for _, r := range p.Roles {
		if strings.ToLower(r) == role {
			return true
		}
	}
	return false
}

func (p principal) actor() bookingapp.Actor {
	return bookingapp.Actor{ID: p.ID, Roles: p.Roles}
}

// AuthMiddleware lifts the proxy-asserted identity into the request scope.
type AuthMiddleware struct{}

func (m AuthMiddleware) Handle(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if id == "" {
		c.Next()
		return
	}
	var roles []string
	for _, raw := range strings.Split(c.GetHeader("X-User-Roles"), ",") {
		if role := strings.TrimSpace(raw); role != "" {
			roles = append(roles, role)
		}
	}
	setPrincipal(c, principal{
		ID:    id,
		Email: strings.TrimSpace(c.GetHeader("X-User-Email")),
		Roles: roles,
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireRole(c *gin.Context, role string) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
		return principal{}, false
	}
	return p, true
}
