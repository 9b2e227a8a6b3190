package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключи gin.Context, которые выставляет APIKey
const (
	ContextAPIKey          = "api_key"
	ContextAPIKeyName      = "api_key_name"
	ContextAPIKeyValidated = "api_key_validated"
)

const defaultAPIKeyHeader = "X-API-Key"

// APIKeyConfig конфигурация для API key аутентификации
type APIKeyConfig struct {
	// ValidKeys ключ -> имя владельца
	ValidKeys map[string]string
	// HeaderName по умолчанию X-API-Key
	HeaderName string
	// Optional пропускает запросы без ключа, но не отмечает их как проверенные
	Optional bool
}

// APIKey middleware для аутентификации по API ключу
type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = defaultAPIKeyHeader
	}
	return &APIKey{config: config}
}

// extractKey порядок: заголовок, query параметр api_key, Authorization: Bearer
func (ak *APIKey) extractKey(c *gin.Context) string {
	if key := c.GetHeader(ak.config.HeaderName); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// lookup сравнение за постоянное время
func (ak *APIKey) lookup(apiKey string) (string, bool) {
	for validKey, name := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			return name, true
		}
	}
	return "", false
}

func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := ak.extractKey(c)

		if apiKey == "" {
			if ak.config.Optional {
				c.Set(ContextAPIKeyValidated, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "Требуется API ключ. Передайте его через заголовок X-API-Key, query параметр api_key или Authorization: Bearer",
			})
			return
		}

		name, ok := ak.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "Невалидный API ключ",
			})
			return
		}

		c.Set(ContextAPIKeyValidated, true)
		c.Set(ContextAPIKeyName, name)
		c.Set(ContextAPIKey, apiKey)

		c.Next()
	}
}

// RequireAPIKey без настроенных ключей пропускает все запросы
func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	if len(validKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

// OptionalAPIKey ключ проверяется, если передан
func OptionalAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys, Optional: true}).Middleware()
}

// APIKeyName имя владельца ключа из контекста
func APIKeyName(c *gin.Context) (string, bool) {
	name, exists := c.Get(ContextAPIKeyName)
	if !exists {
		return "", false
	}
	s, ok := name.(string)
	return s, ok
}

// IsAPIKeyValidated проверяет, был ли API ключ успешно валидирован
func IsAPIKeyValidated(c *gin.Context) bool {
	return c.GetBool(ContextAPIKeyValidated)
}
