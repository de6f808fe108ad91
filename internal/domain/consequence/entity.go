// Package consequence реализует отложенные следствия решений и их
// планировщик. Следствие создаётся при разрешении выбора и реализуется
// не более одного раза - это центральный инвариант корректности движка.
package consequence

import (
	"context"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет момент применения следствия.
type Type string

const (
	// TypeImmediate - применяется синхронно при разрешении выбора.
	TypeImmediate Type = "immediate"
	// TypeDelayed - применяется планировщиком после scheduledAt.
	TypeDelayed Type = "delayed"
)

// IsValid проверяет тип следствия.
func (t Type) IsValid() bool {
	return t == TypeImmediate || t == TypeDelayed
}

// Consequence - запланированный (или уже применённый) пакет эффектов,
// привязанный к решению ученика.
type Consequence struct {
	// ID - уникальный идентификатор (UUID).
	ID string

	// DecisionID - решение, породившее следствие.
	DecisionID string

	// SessionID - сессия-владелец.
	SessionID shared.SessionID

	// Type - немедленное или отложенное.
	Type Type

	// RuleID - идентификатор правила каталога для аудита.
	RuleID string

	// Effects - эффекты, применяемые при реализации.
	Effects []resource.Effect

	// ScheduledAt - момент, начиная с которого следствие "созрело".
	ScheduledAt time.Time

	// AppliedAt - момент реализации; nil, пока следствие не применено.
	// Единственный писатель этого поля - шаг Realize.
	AppliedAt *time.Time

	// Seq - порядок создания внутри сессии; разрывает ничьи по ScheduledAt,
	// чтобы одновременные следствия компоновались детерминированно.
	Seq int64

	// CreatedAt - время создания записи.
	CreatedAt time.Time
}

// IsDue проверяет, созрело ли следствие к моменту now.
func (c *Consequence) IsDue(now time.Time) bool {
	return c.AppliedAt == nil && !c.ScheduledAt.After(now)
}

// IsApplied проверяет, было ли следствие уже реализовано.
func (c *Consequence) IsApplied() bool {
	return c.AppliedAt != nil
}

// Clone создаёт глубокую копию следствия.
func (c *Consequence) Clone() *Consequence {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Effects = append([]resource.Effect{}, c.Effects...)
	if c.AppliedAt != nil {
		appliedAt := *c.AppliedAt
		clone.AppliedAt = &appliedAt
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища следствий.
// Реализация находится в infrastructure/persistence/postgres.
type Repository interface {
	// Create сохраняет новые следствия (обычно пачкой за одно решение).
	Create(ctx context.Context, consequences []*Consequence) error

	// GetByID возвращает следствие по ID.
	// Возвращает ErrConsequenceNotFound, если следствия нет.
	GetByID(ctx context.Context, id string) (*Consequence, error)

	// ListDue возвращает созревшие неприменённые следствия сессии:
	// scheduled_at <= now AND applied_at IS NULL,
	// упорядоченные по (scheduled_at, seq).
	ListDue(ctx context.Context, sessionID shared.SessionID, now time.Time) ([]*Consequence, error)

	// ListSessionsWithDue возвращает сессии, у которых есть созревшие
	// следствия (для фонового прохода).
	ListSessionsWithDue(ctx context.Context, now time.Time, limit int) ([]shared.SessionID, error)

	// MarkApplied атомарно проставляет applied_at, только если оно ещё NULL.
	// Возвращает ErrConsequenceApplied, если следствие уже применено
	// (вызывающий код трактует это как идемпотентный повтор, не как сбой).
	MarkApplied(ctx context.Context, id string, appliedAt time.Time) error
}
