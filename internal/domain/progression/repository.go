package progression

import (
	"context"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// Repository определяет контракт хранилища счётчиков прогрессии.
// Реализация находится в infrastructure (postgres с redis-ускорителем
// суточного счётчика).
type Repository interface {
	// GetCounters возвращает счётчики ученика.
	// Для нового ученика возвращает нулевые счётчики, не ошибку.
	GetCounters(ctx context.Context, learnerID shared.LearnerID) (Counters, error)

	// ApplyUpdate атомарно записывает итог начисления:
	// xp_total инкрементом, суточный счётчик и день перезаписью.
	ApplyUpdate(ctx context.Context, learnerID shared.LearnerID, update Update) error

	// GetLabCompletionDay возвращает день последней сдачи лабораторной.
	// Пустой DayKey, если работа ещё не сдавалась.
	GetLabCompletionDay(ctx context.Context, learnerID shared.LearnerID, labID string) (shared.DayKey, error)

	// MarkLabCompleted фиксирует день сдачи лабораторной.
	MarkLabCompleted(ctx context.Context, learnerID shared.LearnerID, labID string, dayKey shared.DayKey) error
}
