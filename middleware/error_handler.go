package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nguyenhaitrieu10/jobworker/common"
)

// ErrorHandler renders the last APIError recorded on the context, falling
// back to a 500 for unclassified errors.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		if apiErr, ok := err.(common.APIError); ok {
			response := gin.H{"error": apiErr.Message}
			if apiErr.Fields != nil {
				response["fields"] = apiErr.Fields
			}
			c.JSON(apiErr.Status, response)
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
