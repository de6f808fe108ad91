// Package resource содержит чистую алгебру ресурсов практической сессии.
// Это ядро симуляции - здесь нет I/O и внешних зависимостей, только
// детерминированные функции над бандлом ресурсов.
package resource

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// MaxEnergy - верхняя граница энергии. Валюта и время-единицы верхней
// границы не имеют.
const MaxEnergy = 100

// Kind определяет вид ресурса, на который действует эффект.
// Закрытое множество: новый вид ресурса добавляется сюда и в ApplyDelta,
// иначе switch в ApplyDelta его молча проигнорировать не сможет.
type Kind string

const (
	// KindCurrency - игровая валюта сессии.
	KindCurrency Kind = "currency"
	// KindTimeUnits - время-единицы (бюджет действий).
	KindTimeUnits Kind = "timeUnits"
	// KindEnergy - энергия, ограничена диапазоном [0, MaxEnergy].
	KindEnergy Kind = "energy"
	// KindInventory - позиция инвентаря, требует ItemID.
	KindInventory Kind = "inventory"
)

// IsValid проверяет, что вид ресурса известен.
func (k Kind) IsValid() bool {
	switch k {
	case KindCurrency, KindTimeUnits, KindEnergy, KindInventory:
		return true
	default:
		return false
	}
}

// Effect - один помеченный эффект над бандлом ресурсов.
// Amount может быть отрицательным; ItemID заполняется только для инвентаря.
type Effect struct {
	// Kind - вид ресурса.
	Kind Kind `json:"kind"`

	// ItemID - идентификатор позиции инвентаря (только для KindInventory).
	ItemID string `json:"item_id,omitempty"`

	// Amount - знаковая дельта.
	Amount int `json:"amount"`
}

// IsValid проверяет согласованность эффекта.
func (e Effect) IsValid() bool {
	if !e.Kind.IsValid() {
		return false
	}
	if e.Kind == KindInventory {
		return e.ItemID != ""
	}
	return e.ItemID == ""
}

// Currency создаёт эффект над валютой.
func Currency(amount int) Effect {
	return Effect{Kind: KindCurrency, Amount: amount}
}

// TimeUnits создаёт эффект над время-единицами.
func TimeUnits(amount int) Effect {
	return Effect{Kind: KindTimeUnits, Amount: amount}
}

// Energy создаёт эффект над энергией.
func Energy(amount int) Effect {
	return Effect{Kind: KindEnergy, Amount: amount}
}

// Inventory создаёт эффект над позицией инвентаря.
func Inventory(itemID string, amount int) Effect {
	return Effect{Kind: KindInventory, ItemID: itemID, Amount: amount}
}

// ══════════════════════════════════════════════════════════════════════════════
// BUNDLE
// ══════════════════════════════════════════════════════════════════════════════

// Bundle - бандл ресурсов одной сессии.
// Инварианты: Currency >= 0, Energy в [0, MaxEnergy], количества в
// Inventory >= 0. Инварианты поддерживаются ApplyDelta, а не валидацией.
type Bundle struct {
	// Currency - валюта, не бывает отрицательной.
	Currency int

	// TimeUnits - время-единицы; в минус не уходят,
	// клампятся в ноль так же, как валюта.
	TimeUnits int

	// Energy - энергия в диапазоне [0, MaxEnergy].
	Energy int

	// Inventory - количество по каждой позиции; ноль хранится явно,
	// ключ не удаляется (читатель отличает "0 штук" от "не было такой позиции").
	Inventory map[string]int
}

// NewBundle создаёт бандл со стартовыми значениями и пустым инвентарём.
func NewBundle(currency, timeUnits, energy int) Bundle {
	return Bundle{
		Currency:  clampFloor(currency),
		TimeUnits: clampFloor(timeUnits),
		Energy:    clampRange(energy, MaxEnergy),
		Inventory: make(map[string]int),
	}
}

// Clone создаёт глубокую копию бандла.
func (b Bundle) Clone() Bundle {
	clone := b
	clone.Inventory = make(map[string]int, len(b.Inventory))
	for id, qty := range b.Inventory {
		clone.Inventory[id] = qty
	}
	return clone
}

// ItemQuantity возвращает количество позиции инвентаря (0, если позиции нет).
func (b Bundle) ItemQuantity(itemID string) int {
	return b.Inventory[itemID]
}

// Equal сравнивает два бандла по значению.
func (b Bundle) Equal(other Bundle) bool {
	if b.Currency != other.Currency || b.TimeUnits != other.TimeUnits || b.Energy != other.Energy {
		return false
	}
	if len(b.Inventory) != len(other.Inventory) {
		return false
	}
	for id, qty := range b.Inventory {
		if other.Inventory[id] != qty {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER (применение эффектов)
// ══════════════════════════════════════════════════════════════════════════════

// ApplyDelta применяет список эффектов и возвращает новый бандл.
// Тотальная чистая функция: пути ошибки нет, вход не мутируется.
//
// Внутри одного вызова дельты по каждому полю (и по каждому ключу инвентаря)
// суммируются, после чего поле кламппится один раз: в ноль снизу, энергия
// ещё и в MaxEnergy сверху. Поэтому порядок эффектов внутри вызова не важен -
// повторяющиеся ключи инвентаря накапливаются, а не перезаписываются.
//
// Политика кламппинга: дельта, уводящая значение в минус, опускается до нуля
// (защита от испорченного или враждебного входа). Из-за этого
// ApplyDelta(ApplyDelta(b,e1),e2) == ApplyDelta(b,e1++e2) держится только
// пока первый вызов не кламппится: пол - не обратимая операция, и две
// стороны расходятся. Это осознанная политика, не баг.
//
// Пустой список эффектов возвращает равный бандл (тождество).
// Эффект с неизвестным Kind или без ItemID у инвентаря пропускается:
// валидация входа - забота движка решений, не леджера.
func ApplyDelta(bundle Bundle, effects []Effect) Bundle {
	result := bundle.Clone()

	var currencyDelta, timeDelta, energyDelta int
	for _, effect := range effects {
		switch effect.Kind {
		case KindCurrency:
			currencyDelta += effect.Amount
		case KindTimeUnits:
			timeDelta += effect.Amount
		case KindEnergy:
			energyDelta += effect.Amount
		case KindInventory:
			if effect.ItemID == "" {
				continue
			}
			result.Inventory[effect.ItemID] = result.Inventory[effect.ItemID] + effect.Amount
		}
	}

	result.Currency = clampFloor(result.Currency + currencyDelta)
	result.TimeUnits = clampFloor(result.TimeUnits + timeDelta)
	result.Energy = clampRange(result.Energy+energyDelta, MaxEnergy)
	for id, qty := range result.Inventory {
		result.Inventory[id] = clampFloor(qty)
	}

	return result
}

// WouldClamp сообщает, сработает ли пол (или потолок энергии) при применении
// эффектов. Полезно вызывающему коду, который хочет отличить "честную
// покупку" от "стоимость превысила баланс" до применения.
func WouldClamp(bundle Bundle, effects []Effect) bool {
	var currencyDelta, timeDelta, energyDelta int
	invDeltas := make(map[string]int)

	for _, effect := range effects {
		switch effect.Kind {
		case KindCurrency:
			currencyDelta += effect.Amount
		case KindTimeUnits:
			timeDelta += effect.Amount
		case KindEnergy:
			energyDelta += effect.Amount
		case KindInventory:
			if effect.ItemID == "" {
				continue
			}
			invDeltas[effect.ItemID] += effect.Amount
		}
	}

	if bundle.Currency+currencyDelta < 0 || bundle.TimeUnits+timeDelta < 0 {
		return true
	}
	if next := bundle.Energy + energyDelta; next < 0 || next > MaxEnergy {
		return true
	}
	for id, delta := range invDeltas {
		if bundle.Inventory[id]+delta < 0 {
			return true
		}
	}

	return false
}

func clampFloor(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func clampRange(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
