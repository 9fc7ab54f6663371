package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/credassure/credassure-api/internal/middleware"
	"github.com/credassure/credassure-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// scopeMemberID returns the member id services should scope reads to. Members
// are always pinned to their own member id regardless of what the request
// asked for; staff roles pass the requested id through unscoped.
func scopeMemberID(claims *models.JWTClaims, requested string) string {
	if claims != nil && claims.Role == models.RoleMember {
		return claims.MemberID
	}
	return requested
}
