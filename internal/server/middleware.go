package server

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const contextGiftIDKey = "gift_id"

// giftID resolves the :id path parameter once per request.
func giftID(c *gin.Context) (snowflake.ID, bool) {
	if v, ok := c.Get(contextGiftIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id, true
		}
	}
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid gift id"))
		return 0, false
	}
	c.Set(contextGiftIDKey, id)
	return id, true
}
