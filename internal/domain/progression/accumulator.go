// Package progression реализует начисление опыта с суточным лимитом.
// Ядро - чистая функция CalculateXPUpdate; запись инкрементов выполняет
// вызывающий код атомарно.
package progression

import (
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// DefaultDailyCap - суточный лимит начисляемого опыта по умолчанию.
const DefaultDailyCap = 200

// ══════════════════════════════════════════════════════════════════════════════
// COUNTERS
// ══════════════════════════════════════════════════════════════════════════════

// Counters - персистентные счётчики прогрессии одного ученика.
type Counters struct {
	// XPTotal - суммарный опыт за всё время.
	XPTotal int

	// XPAwardedToday - опыт, начисленный за текущие сутки.
	XPAwardedToday int

	// DayKey - календарный день последнего начисления.
	// Смена ключа неявно обнуляет XPAwardedToday.
	DayKey shared.DayKey
}

// Update - описание полей, которые нужно записать после начисления.
// XPTotalDelta и XPTodayValue рассчитаны на атомарный инкремент и
// перезапись соответственно, чтобы параллельные начисления одного
// ученика не теряли обновления.
type Update struct {
	// XPTotalDelta - на сколько увеличить суммарный опыт.
	XPTotalDelta int

	// XPTodayValue - новое значение суточного счётчика.
	XPTodayValue int

	// DayKey - день, к которому относится суточный счётчик.
	DayKey shared.DayKey
}

// Result - итог расчёта начисления.
type Result struct {
	// XPGain - фактически начисленный опыт (усечённый лимитом).
	XPGain int

	// XPToday - суточный счётчик после начисления, никогда не выше лимита.
	XPToday int

	// IsCapped - начисление упёрлось в суточный лимит.
	IsCapped bool

	// Updates - что записать обратно в хранилище.
	Updates Update
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCUMULATOR
// ══════════════════════════════════════════════════════════════════════════════

// CalculateXPUpdate рассчитывает начисление опыта с учётом суточного лимита.
//
// Если сохранённый DayKey отличается от текущего, суточный счётчик
// обнуляется до проверки лимита (календарный день, не скользящее окно).
// Если rawReward не влезает в остаток лимита, XPGain усекается до
// остатка (возможно нуля) и IsCapped = true.
func CalculateXPUpdate(counters Counters, rawReward int, dayKey shared.DayKey, dailyCap int) (Result, error) {
	if rawReward < 0 {
		return Result{}, shared.NewDomainError("progression", "CalculateXPUpdate",
			shared.ErrInvalidReward, "raw reward must not be negative")
	}
	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}

	awardedToday := counters.XPAwardedToday
	if counters.DayKey != dayKey {
		awardedToday = 0
	}

	headroom := dailyCap - awardedToday
	if headroom < 0 {
		headroom = 0
	}

	gain := rawReward
	capped := false
	if gain > headroom {
		gain = headroom
		capped = true
	}

	today := awardedToday + gain
	return Result{
		XPGain:   gain,
		XPToday:  today,
		IsCapped: capped,
		Updates: Update{
			XPTotalDelta: gain,
			XPTodayValue: today,
			DayKey:       dayKey,
		},
	}, nil
}

// LabResult - итог начисления за лабораторную работу.
type LabResult struct {
	// Result - обычный расчёт начисления; нулевой, если работа уже сдана.
	Result

	// AlreadyCompleted - работа уже сдавалась сегодня, начисление пропущено.
	AlreadyCompleted bool
}

// CalculateLabAward начисляет опыт за дискретную активность (лабораторную)
// не более одного раза за календарный день. Повторная сдача в тот же день -
// не усечение, а полный пропуск: XPGain = 0, AlreadyCompleted = true.
func CalculateLabAward(counters Counters, lastCompletedDay shared.DayKey, rawReward int, dayKey shared.DayKey, dailyCap int) (LabResult, error) {
	if lastCompletedDay == dayKey {
		return LabResult{AlreadyCompleted: true}, nil
	}

	result, err := CalculateXPUpdate(counters, rawReward, dayKey, dailyCap)
	if err != nil {
		return LabResult{}, err
	}
	return LabResult{Result: result}, nil
}
