package resumable

import "strings"

// SanitizeIdentifier оставляет в идентификаторе только [0-9A-Za-z_-].
// Функция детерминирована и идемпотентна. Разные сырые идентификаторы,
// совпавшие после очистки, для хранилища неразличимы.
func SanitizeIdentifier(identifier string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, identifier)
}
