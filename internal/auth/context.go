package auth

import "github.com/gin-gonic/gin"

const (
	actorContextKey = "actor"
	actorHeader     = "X-User-ID"
	anonymousActor  = "anonymous"
)

// ActorMiddleware lifts the caller identity from the X-User-ID header into
// the request context. Authentication itself is owned by the gateway in
// front of this service; the ledger only records attribution.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := c.GetHeader(actorHeader)
		if actor == "" {
			actor = anonymousActor
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

// Actor returns the caller identity for the current request.
func Actor(c *gin.Context) string {
	if val, ok := c.Get(actorContextKey); ok {
		if actor, ok := val.(string); ok && actor != "" {
			return actor
		}
	}
	return anonymousActor
}
