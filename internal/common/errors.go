// Package common — errors.go определяет ошибки, общие для всех модулей.
// Обработчики (HTTP и бот) различают их через errors.Is и показывают
// пользователю понятное сообщение для каждого вида сбоя.
package common

import (
	"errors"
	"unicode"
)

// Ошибки сессии и баланса
var (
	// ErrNotAuthenticated — нет активной сессии пользователя
	ErrNotAuthenticated = errors.New("нет активной сессии")
	// ErrInsufficientBalance — списание больше текущего баланса
	ErrInsufficientBalance = errors.New("недостаточно очков на счёте")
	// ErrInvalidAmount — некорректная сумма: ноль, отрицательная или вне допустимых пределов
	ErrInvalidAmount = errors.New("некорректная сумма")
)

// Ошибки хранилища
var (
	// ErrNotFound — запись не найдена (или удалена параллельно)
	ErrNotFound = errors.New("запись не найдена")
	// ErrAlreadyExists — запись уже существует
	ErrAlreadyExists = errors.New("запись уже существует")
	// ErrConflict — запись изменилась между чтением и записью
	ErrConflict = errors.New("запись изменена параллельно")
	// ErrStoreUnavailable — хранилище недоступно (сеть, таймаут)
	ErrStoreUnavailable = errors.New("хранилище недоступно")
	// ErrWriteFailed — запись в хранилище не удалась
	ErrWriteFailed = errors.New("не удалось сохранить изменения")
	// ErrLeaderboardSync — не удалось обновить публичный счёт (не фатально)
	ErrLeaderboardSync = errors.New("не удалось обновить рейтинг")
)

// Ошибки задач
var (
	// ErrTaskAlreadyCompleted — задача уже выполнена
	ErrTaskAlreadyCompleted = errors.New("задача уже выполнена")
	// ErrTaskNotCompleted — задача ещё не выполнена, отменять нечего
	ErrTaskNotCompleted = errors.New("задача ещё не выполнена")
	// ErrInvalidRepeatType — неизвестный тип повторения
	ErrInvalidRepeatType = errors.New("неизвестный тип повторения задачи")
	// ErrEmptyTitle — пустое название задачи
	ErrEmptyTitle = errors.New("название задачи не может быть пустым")
	// ErrTitleTooLong — слишком длинное название задачи
	ErrTitleTooLong = errors.New("слишком длинное название задачи")
)

// Ошибки админки
var (
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)

// ErrorText возвращает текст ошибки для пользователя бота.
// Сбои хранилища показываются одной фразой, без деталей.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrWriteFailed), errors.Is(err, ErrConflict):
		return "⏳ Сервис временно недоступен, попробуйте позже"
	case errors.Is(err, ErrNotFound):
		return "❌ Не найдено"
	case errors.Is(err, ErrNotAuthenticated):
		return "❌ Сначала отправьте /start"
	}

	for _, known := range []error{
		ErrInsufficientBalance, ErrInvalidAmount,
		ErrTaskAlreadyCompleted, ErrTaskNotCompleted, ErrInvalidRepeatType, ErrEmptyTitle, ErrTitleTooLong,
		ErrWrongPassword, ErrTooManyAttempts,
	} {
		if errors.Is(err, known) {
			return "❌ " + capitalize(known.Error())
		}
	}
	return "❌ Что-то пошло не так"
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
