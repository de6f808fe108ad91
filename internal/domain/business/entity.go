// Package business реализует жизненный цикл учебного бизнеса:
// регистрацию с окном обработки и периодическое рыночное возмущение
// денежного баланса.
package business

import (
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationStatus - статус регистрации бизнеса.
type RegistrationStatus string

const (
	// StatusNone - регистрация ещё не подавалась.
	StatusNone RegistrationStatus = "none"
	// StatusPending - заявка подана, ждёт окна обработки.
	StatusPending RegistrationStatus = "pending"
	// StatusApproved - бизнес одобрен.
	StatusApproved RegistrationStatus = "approved"
	// StatusRejected - заявка отклонена; повторная подача разрешена.
	StatusRejected RegistrationStatus = "rejected"
)

// IsValid проверяет статус регистрации.
func (s RegistrationStatus) IsValid() bool {
	switch s {
	case StatusNone, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// Loan - взятый займ.
type Loan struct {
	// ID - идентификатор займа.
	ID string
	// Principal - тело займа.
	Principal int
	// Repayment - сумма к возврату.
	Repayment int
	// DueAt - срок возврата.
	DueAt time.Time
}

// TaxObligation - начисленное налоговое обязательство.
type TaxObligation struct {
	// ID - идентификатор обязательства.
	ID string
	// Amount - сумма к уплате.
	Amount int
	// DueAt - срок уплаты.
	DueAt time.Time
}

// SimState - состояние симуляции бизнеса одной сессии.
// Мутируется только функциями этого пакета.
type SimState struct {
	// RegistrationStatus - текущий статус регистрации.
	RegistrationStatus RegistrationStatus

	// RegistrationSubmittedAt - момент подачи заявки; nil до первой подачи.
	RegistrationSubmittedAt *time.Time

	// BusinessName - название бизнеса; nil до подачи заявки.
	BusinessName *string

	// CashBalance - денежный баланс, никогда не отрицательный.
	CashBalance int

	// Inventory - склад бизнеса: товар -> количество.
	Inventory map[string]int

	// Loans - активные займы.
	Loans []Loan

	// TaxObligations - начисленные налоги.
	TaxObligations []TaxObligation

	// MarketExposure - весовой коэффициент рыночного риска, >= 0.
	// Выше экспозиция - больше разброс рыночных колебаний.
	MarketExposure float64

	// LastMarketUpdate - момент последнего применения рыночной дельты.
	LastMarketUpdate time.Time
}

// NewSimState создаёт пустое состояние до подачи регистрации.
func NewSimState() SimState {
	return SimState{
		RegistrationStatus: StatusNone,
		Inventory:          map[string]int{},
		MarketExposure:     1.0,
	}
}

// Clone создаёт глубокую копию состояния.
func (s SimState) Clone() SimState {
	clone := s
	clone.Inventory = make(map[string]int, len(s.Inventory))
	for itemID, quantity := range s.Inventory {
		clone.Inventory[itemID] = quantity
	}
	clone.Loans = append([]Loan{}, s.Loans...)
	clone.TaxObligations = append([]TaxObligation{}, s.TaxObligations...)
	if s.RegistrationSubmittedAt != nil {
		submittedAt := *s.RegistrationSubmittedAt
		clone.RegistrationSubmittedAt = &submittedAt
	}
	if s.BusinessName != nil {
		name := *s.BusinessName
		clone.BusinessName = &name
	}
	return clone
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config - параметры жизненного цикла бизнеса.
type Config struct {
	// ProcessingWindow - сколько заявка висит в pending до одобрения.
	ProcessingWindow time.Duration

	// MarketVolatility - базовая амплитуда рыночной дельты при экспозиции 1.0.
	MarketVolatility int
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		ProcessingWindow: 30 * time.Minute,
		MarketVolatility: 25,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// SubmitRegistration подаёт заявку на регистрацию бизнеса.
//
// Разрешённые переходы: none -> pending и rejected -> pending (повторная
// подача). Из pending и approved подача - типизированная ошибка, состояние
// не меняется. Денежный баланс при подаче не трогается.
func SubmitRegistration(state SimState, name string, now time.Time) (SimState, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return state, shared.NewDomainError("business", "SubmitRegistration",
			shared.ErrBusinessNameRequired, "business name must not be empty")
	}

	switch state.RegistrationStatus {
	case StatusPending:
		return state, shared.NewDomainError("business", "SubmitRegistration",
			shared.ErrRegistrationPending, "registration is already being processed")
	case StatusApproved:
		return state, shared.NewDomainError("business", "SubmitRegistration",
			shared.ErrRegistrationApproved, "business is already approved")
	}

	next := state.Clone()
	next.RegistrationStatus = StatusPending
	submittedAt := now
	next.RegistrationSubmittedAt = &submittedAt
	next.BusinessName = &trimmed
	return next, nil
}

// TickRegistration продвигает pending -> approved, когда окно обработки
// истекло. Любой другой статус возвращается без изменений; переход
// случается ровно один раз, повторные тики над approved - no-op.
func TickRegistration(state SimState, cfg Config, now time.Time) SimState {
	if state.RegistrationStatus != StatusPending || state.RegistrationSubmittedAt == nil {
		return state
	}
	if now.Sub(*state.RegistrationSubmittedAt) < cfg.ProcessingWindow {
		return state
	}

	next := state.Clone()
	next.RegistrationStatus = StatusApproved
	return next
}

// RegistrationRemainingMinutes возвращает, сколько минут осталось ждать
// одобрения. Ноль, если ждать нечего (нет pending-заявки или окно истекло).
func RegistrationRemainingMinutes(state SimState, cfg Config, now time.Time) int {
	if state.RegistrationStatus != StatusPending || state.RegistrationSubmittedAt == nil {
		return 0
	}
	remaining := state.RegistrationSubmittedAt.Add(cfg.ProcessingWindow).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

// ══════════════════════════════════════════════════════════════════════════════
// MARKET
// ══════════════════════════════════════════════════════════════════════════════

// MarketFluctuation возвращает ограниченную псевдослучайную дельту баланса.
// Амплитуда растёт с экспозицией: дельта равномерна в [-m, +m], где
// m = volatility * exposure. Источник случайности инжектируется, чтобы
// поведение было воспроизводимым.
func MarketFluctuation(exposure float64, volatility int, rng *rand.Rand) int {
	if exposure <= 0 || volatility <= 0 {
		return 0
	}
	magnitude := int(math.Round(float64(volatility) * exposure))
	if magnitude == 0 {
		return 0
	}
	return rng.Intn(2*magnitude+1) - magnitude
}

// Tick выполняет один шаг симуляции: продвигает регистрацию и, если
// регистрация хотя бы подана, применяет рыночную дельту к балансу.
//
// Баланс клампится в ноль снизу. Тик идемпотентен в пределах одного
// мгновения: если now не продвинулся дальше LastMarketUpdate, рыночная
// дельта не применяется повторно.
func Tick(state SimState, cfg Config, now time.Time, rng *rand.Rand) SimState {
	next := TickRegistration(state, cfg, now)

	if next.RegistrationStatus == StatusNone {
		return next
	}
	if !now.After(next.LastMarketUpdate) {
		return next
	}

	delta := MarketFluctuation(next.MarketExposure, cfg.MarketVolatility, rng)

	next = next.Clone()
	next.CashBalance += delta
	if next.CashBalance < 0 {
		next.CashBalance = 0
	}
	next.LastMarketUpdate = now
	return next
}
