// Пакет token — генерация публичных токенов pro forma запросов.
// Токен — единственный идентификатор, который видит неаутентифицированная
// сторона, и трактуется как bearer-секрет: 128 бит crypto/rand, hex-кодировка,
// без какой-либо структуры (владелец, время, последовательность не извлекаемы).
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Length — длина токена в hex-символах (16 байт энтропии).
const Length = 32

// Generate возвращает новый публичный токен.
// Исчерпание системного источника энтропии — невосстановимая ошибка:
// вызывающий обязан прервать операцию, а не деградировать.
func Generate() (string, error) {
	buf := make([]byte, Length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("чтение системной энтропии: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// IsWellFormed проверяет, что строка похожа на выданный токен
// (длина и hex-алфавит). Используется публичным обработчиком, чтобы
// не ходить в БД по заведомо мусорным значениям.
func IsWellFormed(s string) bool {
	if len(s) != Length {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
