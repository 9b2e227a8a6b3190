package models

import (
	"time"
)

// URLRecord короткая ссылка в хранилище и снимок в кэше
type URLRecord struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	VisitCount  int64      `json:"visit_count"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	UTMParams   *UTMParams `json:"utm_params,omitempty"`
}

// IsExpired сообщает, истёк ли срок жизни ссылки к моменту now
func (r *URLRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// UTMParams метки кампании, применяются к URL один раз при создании
type UTMParams struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
}

// IsEmpty true, если ни одна метка не задана
func (p *UTMParams) IsEmpty() bool {
	return p == nil || (p.Source == "" && p.Medium == "" && p.Campaign == "")
}

type CreateURLInput struct {
	OriginalURL    string     `json:"original_url" binding:"required,url"`
	CustomSlug     *string    `json:"custom_slug,omitempty"`
	ExpirationDays *int       `json:"expiration,omitempty"`
	UTMParams      *UTMParams `json:"utm_params,omitempty"`
}
