package handler

import (
	"strings"

	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/mssola/useragent"
)

const visitorIDHeader = "X-Visitor-ID"

// Типы устройств
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// visitorFromRequest собирает данные посетителя из заголовков запроса
func visitorFromRequest(c *gin.Context) *models.VisitorInfo {
	info := &models.VisitorInfo{
		VisitorID: strings.TrimSpace(c.GetHeader(visitorIDHeader)),
		IPAddress: c.ClientIP(),
	}

	raw := c.Request.UserAgent()
	if raw == "" {
		return info
	}

	ua := useragent.New(raw)
	info.DeviceType = deviceType(ua, raw)
	info.Browser, _ = ua.Browser()
	info.OS = ua.OSInfo().Name
	if info.OS == "" {
		info.OS = ua.OS()
	}

	return info
}

func deviceType(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return DeviceBot
	case strings.Contains(raw, "iPad") || strings.Contains(raw, "Tablet"):
		return DeviceTablet
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}
