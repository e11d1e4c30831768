package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListCatalog(c *gin.Context) {
	country := strings.TrimSpace(c.Query("country"))
	if country == "" {
		country = s.cfg.GiftCard.CountryCode
	}
	if len(country) != 2 {
		AbortWithError(c, newValidationError("country", "invalid_country", "country must be an ISO 3166 alpha-2 code"))
		return
	}

	products, err := s.catalog.Products(c.Request.Context(), country)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}
