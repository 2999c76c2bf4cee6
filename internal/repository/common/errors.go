package common

import "errors"

// Общие ошибки репозиториев. Сервисный слой переводит их в apperror.
var (
	ErrNotFound = errors.New("entity not found")
	// ErrStatusConflict — CAS по статусу не прошёл: другой писатель успел раньше.
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrDuplicate — нарушение уникального ключа (повторная вставка).
	ErrDuplicate = errors.New("entity already exists")
)
