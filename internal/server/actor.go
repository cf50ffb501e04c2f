package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/redevance/internal/actorcontext"
)

// Identity is established upstream by the gateway; these headers carry the verified result.
const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorID   = "X-Actor-ID"
)

// ActorContext attaches the caller to the request context. Requests without identity headers
// pass through anonymous and are rejected by RequireActor or the service authorization check.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawRole := strings.TrimSpace(c.GetHeader(HeaderActorRole))
		if rawRole == "" {
			c.Next()
			return
		}

		role, ok := actorcontext.ParseRole(rawRole)
		if !ok || role == actorcontext.RoleSystem {
			AbortWithError(c, ErrUnauthenticated)
			return
		}

		actor := actorcontext.Actor{Role: role}
		if rawID := strings.TrimSpace(c.GetHeader(HeaderActorID)); rawID != "" {
			id, err := snowflake.ParseString(rawID)
			if err != nil || id == 0 {
				AbortWithError(c, ErrUnauthenticated)
				return
			}
			actor.ID = id
		}
		if role == actorcontext.RoleTaxpayer && actor.ID == 0 {
			AbortWithError(c, ErrUnauthenticated)
			return
		}

		c.Request = c.Request.WithContext(actorcontext.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := actorcontext.FromContext(c.Request.Context()); !ok {
			AbortWithError(c, ErrUnauthenticated)
			return
		}
		c.Next()
	}
}
