package consequence

import (
	"sort"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER (без состояния)
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler реализует созревшие следствия над бандлом ресурсов.
//
// Сам планировщик без состояния: долговечность гарантии "не более одного
// раза" делегирована транзакционной записи вызывающего кода - применение
// эффектов к персистентному бандлу и MarkApplied должны быть одним
// атомарным шагом (см. Repository.MarkApplied).
type Scheduler struct{}

// NewScheduler создаёт планировщик.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Realize применяет эффекты следствия через леджер и помечает его
// применённым к моменту now. Возвращает новый бандл и изменённую копию
// следствия.
//
// Уже применённое следствие - идемпотентный no-op: бандл возвращается без
// изменений, ошибки нет. Так повторная запись после сбоя безопасна.
func (s *Scheduler) Realize(c *Consequence, bundle resource.Bundle, now time.Time) (resource.Bundle, *Consequence) {
	if c.IsApplied() {
		return bundle, c.Clone()
	}

	applied := c.Clone()
	appliedAt := now
	applied.AppliedAt = &appliedAt

	return resource.ApplyDelta(bundle, c.Effects), applied
}

// RealizeAll реализует список созревших следствий по порядку и возвращает
// итоговый бандл вместе с изменёнными копиями. Список должен быть
// предварительно упорядочен (ListDue/SortDue это гарантируют).
func (s *Scheduler) RealizeAll(due []*Consequence, bundle resource.Bundle, now time.Time) (resource.Bundle, []*Consequence) {
	applied := make([]*Consequence, 0, len(due))
	current := bundle

	for _, c := range due {
		var next *Consequence
		current, next = s.Realize(c, current, now)
		applied = append(applied, next)
	}

	return current, applied
}

// ══════════════════════════════════════════════════════════════════════════════
// PURE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// FilterDue отбирает созревшие неприменённые следствия из списка.
// Чистый аналог Repository.ListDue для кода, уже держащего следствия в руках.
func FilterDue(all []*Consequence, sessionID shared.SessionID, now time.Time) []*Consequence {
	var due []*Consequence
	for _, c := range all {
		if c.SessionID != sessionID {
			continue
		}
		if c.IsDue(now) {
			due = append(due, c)
		}
	}
	SortDue(due)
	return due
}

// SortDue упорядочивает следствия по возрастанию scheduledAt; ничьи
// разрываются порядком создания (Seq), чтобы одновременные эффекты
// компоновались детерминированно.
func SortDue(due []*Consequence) {
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].ScheduledAt.Equal(due[j].ScheduledAt) {
			return due[i].Seq < due[j].Seq
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
}
