package models

import (
	"time"
)

type ClickEvent struct {
	ID         int64     `json:"id"`
	ShortCode  string    `json:"short_code"`
	VisitorID  string    `json:"visitor_id"`
	DeviceType *string   `json:"device_type"`
	Browser    *string   `json:"browser"`
	OS         *string   `json:"os"`
	IPAddress  *string   `json:"ip_address"`
	ClickedAt  time.Time `json:"clicked_at"`
}

// VisitorInfo данные о посетителе, собранные на границе HTTP
type VisitorInfo struct {
	VisitorID  string
	DeviceType string
	Browser    string
	OS         string
	IPAddress  string
}

type DeviceInfo struct {
	DeviceTypes      map[string]int `json:"device_types"`
	Browsers         map[string]int `json:"browsers"`
	OperatingSystems map[string]int `json:"operating_systems"`
}

type Analytics struct {
	ShortCode    string        `json:"short_code"`
	OriginalURL  string        `json:"original_url"`
	TotalClicks  int64         `json:"total_clicks"`
	DeviceInfo   DeviceInfo    `json:"device_info"`
	ClickHistory []*ClickEvent `json:"click_history"`
	CreatedAt    time.Time     `json:"created_at"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
}

type DailyClickStats struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}
