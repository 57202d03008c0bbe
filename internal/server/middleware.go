package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/heliovolt/solshare/internal/actorctx"
)

// HeaderActor carries the caller's address. It stands in for a verified
// transaction signer; signature verification happens upstream of this
// service.
const HeaderActor = "X-Actor"

func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActor))
		if actor != "" {
			ctx := actorctx.WithActor(c.Request.Context(), actor)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}

func parseIDString(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(raw))
}
