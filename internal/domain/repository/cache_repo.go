package repository

import "time"

// CacheRepository определяет методы для работы с Redis-кешем.
// Используется real-time подсистемой (множества подписчиков комнат раундов)
// и планировщиком (советующая блокировка "один ведущий на раунд").
type CacheRepository interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string) (string, error)
	Delete(key string) error
	Exists(key string) (bool, error)

	// SetNX устанавливает значение, только если ключ не существует.
	// Возвращает true, если ключ был установлен.
	SetNX(key string, value interface{}, expiration time.Duration) (bool, error)

	SAdd(key string, member string) error
	SRem(key string, member string) error
	SMembers(key string) ([]string, error)
}
