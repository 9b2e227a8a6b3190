// Package shortcode генерирует случайные URL-безопасные короткие коды.
package shortcode

import (
	"crypto/rand"
	"math/big"
)

const (
	// DefaultLength длина кода по умолчанию
	DefaultLength = 8
	// Alphabet base64 без символов '+', '/' и '='
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// Generate возвращает код ровно из length символов алфавита Alphabet.
// При length <= 0 используется DefaultLength. Проверка коллизий лежит на вызывающем.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			// crypto/rand не возвращает ошибок начиная с Go 1.24
			panic("shortcode: crypto/rand failed: " + err.Error())
		}
		result[i] = Alphabet[num.Int64()]
	}
	return string(result)
}

// IsURLSafe проверяет, что код непустой и состоит только из символов Alphabet
func IsURLSafe(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !isAlphabetByte(code[i]) {
			return false
		}
	}
	return true
}

func isAlphabetByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
