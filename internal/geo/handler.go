package geo

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the IP analysis debug endpoint.
type Handler struct {
	locator *Locator
}

// NewHandler constructs a geo debug handler.
func NewHandler(locator *Locator) *Handler {
	return &Handler{locator: locator}
}

// IPAnalysis reports how the client IP was derived and what it resolved to.
func (h *Handler) IPAnalysis(c *fiber.Ctx) error {
	ip := ClientIP(c)
	res := h.locator.Lookup(c.UserContext(), ip)

	headers := fiber.Map{}
	for _, name := range ForwardingHeaders {
		if v := c.Get(name); v != "" {
			headers[name] = v
		} else {
			headers[name] = nil
		}
	}

	local := IsLocal(ip)
	dataType, explanation := "REAL/PRODUCTION", "Using real geolocation API lookup for public IP"
	if local {
		dataType, explanation = "MOCK/DEVELOPMENT", "Using mock data because IP is localhost/private network"
	}

	return c.JSON(fiber.Map{
		"analysis": fiber.Map{
			"extractedIp":  ip,
			"headers":      headers,
			"country":      res.Country,
			"countryCode":  res.CountryCode,
			"flag":         Flag(res.CountryCode),
			"source":       res.Source,
			"dataType":     dataType,
			"isRealUserIp": !local,
			"explanation":  explanation,
		},
		"rawRequest": fiber.Map{
			"url":       c.OriginalURL(),
			"method":    c.Method(),
			"userAgent": c.Get(fiber.HeaderUserAgent),
		},
	})
}
