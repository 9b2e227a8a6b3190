package shortcode_test

import (
	"strings"
	"testing"

	"github.com/SergeiKhy/shorty/internal/shortcode"
	"github.com/stretchr/testify/assert"
)

// TestGenerate_Length проверяет точную длину кода для разных значений
func TestGenerate_Length(t *testing.T) {
	for _, length := range []int{1, 2, 7, 8, 16, 64} {
		code := shortcode.Generate(length)
		assert.Len(t, code, length)
		assert.True(t, shortcode.IsURLSafe(code), "код %q содержит недопустимые символы", code)
	}
}

// TestGenerate_DefaultLength проверяет длину по умолчанию
func TestGenerate_DefaultLength(t *testing.T) {
	assert.Len(t, shortcode.Generate(0), shortcode.DefaultLength)
	assert.Len(t, shortcode.Generate(-3), shortcode.DefaultLength)
}

// TestGenerate_NoUnsafeCharacters проверяет отсутствие символов '+', '/', '='
func TestGenerate_NoUnsafeCharacters(t *testing.T) {
	for i := 0; i < 500; i++ {
		code := shortcode.Generate(shortcode.DefaultLength)
		assert.False(t, strings.ContainsAny(code, "+/="), code)
	}
}

// TestGenerate_Uniqueness проверяет, что коды практически не повторяются
func TestGenerate_Uniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		code := shortcode.Generate(shortcode.DefaultLength)
		_, dup := seen[code]
		assert.False(t, dup, "повтор кода %s", code)
		seen[code] = struct{}{}
	}
}

func TestIsURLSafe(t *testing.T) {
	assert.True(t, shortcode.IsURLSafe("abcXYZ09"))
	assert.False(t, shortcode.IsURLSafe(""))
	assert.False(t, shortcode.IsURLSafe("ab+c"))
	assert.False(t, shortcode.IsURLSafe("ab/c"))
	assert.False(t, shortcode.IsURLSafe("abc="))
	assert.False(t, shortcode.IsURLSafe("my-slug"))
}
