// Package session содержит снапшот игровой сессии - контейнер ресурсов,
// репутации и состояния бизнеса одного ученика в одном практикуме.
package session

import (
	"context"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус жизненного цикла сессии.
type Status string

const (
	// StatusActive - сессия идёт, снапшот мутируется решениями и тиками.
	StatusActive Status = "active"
	// StatusCompleted - сессия завершена, снапшот заморожен.
	StatusCompleted Status = "completed"
	// StatusArchived - снапшот сжат и вынесен в архив (не удалён).
	StatusArchived Status = "archived"
)

// IsValid проверяет статус сессии.
func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusCompleted || s == StatusArchived
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT
// ══════════════════════════════════════════════════════════════════════════════

// Snapshot - персистентное состояние одной сессии.
// Принадлежит ровно одной паре ученик/сессия; создаётся при старте,
// мутируется решениями и тиками, архивируется при завершении.
type Snapshot struct {
	// SessionID - идентификатор сессии (UUID).
	SessionID shared.SessionID

	// LearnerID - ученик-владелец.
	LearnerID shared.LearnerID

	// Status - текущий статус жизненного цикла.
	Status Status

	// Resources - ресурсный бандл сессии.
	Resources resource.Bundle

	// Reputation - репутация по осям ("suppliers", "customers").
	Reputation map[string]int

	// Business - состояние бизнес-симуляции практикума.
	Business business.SimState

	// NextSeq - следующий порядковый номер следствия в сессии.
	// Монотонный счётчик, разрывающий ничьи при реализации.
	NextSeq int64

	// CreatedAt - момент старта сессии.
	CreatedAt time.Time

	// UpdatedAt - момент последней мутации.
	UpdatedAt time.Time

	// CompletedAt - момент завершения; nil для активной сессии.
	CompletedAt *time.Time
}

// NewSnapshot создаёт активную сессию со стартовыми ресурсами.
func NewSnapshot(sessionID shared.SessionID, learnerID shared.LearnerID, start resource.Bundle, now time.Time) *Snapshot {
	return &Snapshot{
		SessionID:  sessionID,
		LearnerID:  learnerID,
		Status:     StatusActive,
		Resources:  start,
		Reputation: map[string]int{},
		Business:   business.NewSimState(),
		NextSeq:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsActive проверяет, что сессия принимает решения и тики.
func (s *Snapshot) IsActive() bool {
	return s.Status == StatusActive
}

// AllocateSeq выдаёт следующий порядковый номер следствия.
func (s *Snapshot) AllocateSeq() int64 {
	seq := s.NextSeq
	s.NextSeq++
	return seq
}

// Complete завершает активную сессию и замораживает снапшот.
func (s *Snapshot) Complete(now time.Time) error {
	if s.Status != StatusActive {
		return shared.NewDomainError("session", "Complete",
			shared.ErrSessionNotActive, "only an active session can be completed")
	}
	s.Status = StatusCompleted
	completedAt := now
	s.CompletedAt = &completedAt
	s.UpdatedAt = now
	return nil
}

// Clone создаёт глубокую копию снапшота.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Resources = s.Resources.Clone()
	clone.Business = s.Business.Clone()
	clone.Reputation = make(map[string]int, len(s.Reputation))
	for axis, value := range s.Reputation {
		clone.Reputation[axis] = value
	}
	if s.CompletedAt != nil {
		completedAt := *s.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища сессий.
// Реализация находится в infrastructure/persistence/postgres.
type Repository interface {
	// Create сохраняет новую сессию.
	// Возвращает ErrSessionExists при повторном SessionID.
	Create(ctx context.Context, snapshot *Snapshot) error

	// GetByID возвращает сессию по ID.
	// Возвращает ErrSessionNotFound, если сессии нет.
	GetByID(ctx context.Context, sessionID shared.SessionID) (*Snapshot, error)

	// Update перезаписывает снапшот активной сессии.
	Update(ctx context.Context, snapshot *Snapshot) error

	// ListActiveByLearner возвращает активные сессии ученика.
	ListActiveByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*Snapshot, error)

	// ListActiveWithBusiness возвращает активные сессии с поданной или
	// одобренной регистрацией бизнеса (для фонового тика симуляции).
	ListActiveWithBusiness(ctx context.Context, limit int) ([]*Snapshot, error)

	// ListCompletedBefore возвращает завершённые, но ещё не архивированные
	// сессии со временем завершения до порога (для архивного прохода).
	ListCompletedBefore(ctx context.Context, before time.Time, limit int) ([]*Snapshot, error)

	// MarkArchived переводит завершённую сессию в archived после того,
	// как её сжатый снапшот записан в архив.
	MarkArchived(ctx context.Context, sessionID shared.SessionID, archivedAt time.Time) error
}
