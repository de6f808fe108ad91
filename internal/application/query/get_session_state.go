// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SESSION STATE QUERY
// Возвращает снапшот сессии для интерфейса практикума: ресурсы,
// состояние бизнеса, ожидающие следствия и оставшееся время регистрации.
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionStateQuery содержит параметры запроса состояния сессии.
type GetSessionStateQuery struct {
	// SessionID - идентификатор сессии.
	SessionID string

	// Now - момент чтения (пустой = сейчас).
	Now time.Time

	// IncludePending - включить список неприменённых следствий.
	IncludePending bool
}

// Validate проверяет корректность параметров.
func (q *GetSessionStateQuery) Validate() error {
	if !shared.SessionID(q.SessionID).IsValid() {
		return errors.New("valid session_id must be provided")
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}
	return nil
}

// PendingConsequenceDTO - ожидающее следствие для интерфейса.
type PendingConsequenceDTO struct {
	// ID - идентификатор следствия.
	ID string `json:"id"`

	// RuleID - правило каталога для аудита.
	RuleID string `json:"rule_id"`

	// ScheduledAt - момент созревания.
	ScheduledAt time.Time `json:"scheduled_at"`

	// Due - следствие уже созрело, но ещё не применено.
	Due bool `json:"due"`
}

// SessionStateDTO - состояние сессии для интерфейса.
type SessionStateDTO struct {
	// SessionID - идентификатор сессии.
	SessionID string `json:"session_id"`

	// LearnerID - ученик-владелец.
	LearnerID string `json:"learner_id"`

	// Status - статус жизненного цикла.
	Status string `json:"status"`

	// Currency, TimeUnits, Energy - скалярные ресурсы.
	Currency  int `json:"currency"`
	TimeUnits int `json:"time_units"`
	Energy    int `json:"energy"`

	// Inventory - склад сессии.
	Inventory map[string]int `json:"inventory"`

	// Reputation - репутация по осям.
	Reputation map[string]int `json:"reputation"`

	// RegistrationStatus - статус регистрации бизнеса.
	RegistrationStatus string `json:"registration_status"`

	// BusinessName - название бизнеса (пустое до подачи).
	BusinessName string `json:"business_name,omitempty"`

	// CashBalance - баланс бизнеса.
	CashBalance int `json:"cash_balance"`

	// RegistrationRemainingMinutes - сколько минут ждать одобрения.
	RegistrationRemainingMinutes int `json:"registration_remaining_minutes"`

	// Pending - неприменённые следствия (по запросу).
	Pending []PendingConsequenceDTO `json:"pending,omitempty"`

	// UpdatedAt - момент последней мутации.
	UpdatedAt time.Time `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetSessionStateHandler обрабатывает GetSessionStateQuery.
type GetSessionStateHandler struct {
	sessionRepo     session.Repository
	consequenceRepo consequence.Repository
	businessCfg     business.Config
}

// NewGetSessionStateHandler создаёт обработчик.
func NewGetSessionStateHandler(
	sessionRepo session.Repository,
	consequenceRepo consequence.Repository,
	businessCfg business.Config,
) *GetSessionStateHandler {
	if businessCfg.ProcessingWindow == 0 {
		businessCfg = business.DefaultConfig()
	}
	return &GetSessionStateHandler{
		sessionRepo:     sessionRepo,
		consequenceRepo: consequenceRepo,
		businessCfg:     businessCfg,
	}
}

// Handle выполняет запрос состояния сессии.
func (h *GetSessionStateHandler) Handle(ctx context.Context, q GetSessionStateQuery) (*SessionStateDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_session_state: %w", err)
	}

	snapshot, err := h.sessionRepo.GetByID(ctx, shared.SessionID(q.SessionID))
	if err != nil {
		return nil, fmt.Errorf("get_session_state: failed to get session: %w", err)
	}

	dto := &SessionStateDTO{
		SessionID:          string(snapshot.SessionID),
		LearnerID:          string(snapshot.LearnerID),
		Status:             string(snapshot.Status),
		Currency:           snapshot.Resources.Currency,
		TimeUnits:          snapshot.Resources.TimeUnits,
		Energy:             snapshot.Resources.Energy,
		Inventory:          snapshot.Resources.Inventory,
		Reputation:         snapshot.Reputation,
		RegistrationStatus: string(snapshot.Business.RegistrationStatus),
		CashBalance:        snapshot.Business.CashBalance,
		RegistrationRemainingMinutes: business.RegistrationRemainingMinutes(
			snapshot.Business, h.businessCfg, q.Now),
		UpdatedAt: snapshot.UpdatedAt,
	}
	if snapshot.Business.BusinessName != nil {
		dto.BusinessName = *snapshot.Business.BusinessName
	}

	if q.IncludePending {
		due, err := h.consequenceRepo.ListDue(ctx, snapshot.SessionID, q.Now)
		if err != nil {
			return nil, fmt.Errorf("get_session_state: failed to list due: %w", err)
		}
		dto.Pending = make([]PendingConsequenceDTO, 0, len(due))
		for _, c := range due {
			dto.Pending = append(dto.Pending, PendingConsequenceDTO{
				ID:          c.ID,
				RuleID:      c.RuleID,
				ScheduledAt: c.ScheduledAt,
				Due:         true,
			})
		}
	}

	return dto, nil
}
