package decision

import (
	"errors"
	"fmt"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// ActionBusinessRegister - действие правила, подающего заявку на
// регистрацию бизнеса.
const ActionBusinessRegister = "business_register"

// Profile - срез профиля ученика, доступный правилам при разрешении выбора.
type Profile struct {
	// Skills - уровни навыков (например, "marketing": 3).
	Skills map[string]int

	// Reputation - репутация по осям ("suppliers", "customers").
	Reputation map[string]int
}

// Resolution - результат разрешения выбора.
// Немедленные эффекты применяет вызывающий код через леджер; каждая
// отложенная спецификация персистится как Consequence со
// scheduledAt = now + Delay.
type Resolution struct {
	// ChoiceID - разрешённый выбор.
	ChoiceID shared.ChoiceID

	// Action - метка действия правила (пусто, если правило чисто ресурсное).
	Action string

	// BusinessName - название бизнеса из полезной нагрузки; заполнено
	// только для правил с действием ActionBusinessRegister.
	BusinessName string

	// Immediate - эффекты для синхронного применения.
	Immediate []resource.Effect

	// Delayed - спецификации отложенных следствий.
	Delayed []DelayedSpec
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// Resolver разрешает выборы по таблице правил.
type Resolver struct {
	catalog *Catalog
}

// NewResolver создаёт Resolver над каталогом.
func NewResolver(catalog *Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// ResolveChoice разрешает выбор ученика в набор эффектов.
//
// Чистая функция над таблицей правил: неизвестный choiceID или невалидная
// полезная нагрузка - типизированная ошибка, никакой мутации состояния.
// Профиль влияет только на ускорение отложенных следствий (fast track).
func (r *Resolver) ResolveChoice(
	choiceID shared.ChoiceID,
	payload map[string]interface{},
	sessionID shared.SessionID,
	profile Profile,
) (Resolution, error) {
	rule, ok := r.catalog.Rule(choiceID)
	if !ok {
		return Resolution{}, shared.NewDomainError("decision", "Resolve", shared.ErrInvalidInput,
			fmt.Sprintf("unknown choice id %q", choiceID))
	}

	if rule.Schema != nil {
		// jsonschema ожидает interface{} с map[string]interface{} внутри.
		doc := map[string]interface{}{}
		for k, v := range payload {
			doc[k] = v
		}
		if err := rule.Schema.Validate(interface{}(doc)); err != nil {
			var ve *jsonschema.ValidationError
			if errors.As(err, &ve) {
				return Resolution{}, shared.WrapError("decision", "Resolve", shared.ErrInvalidInput,
					fmt.Sprintf("payload of choice %q rejected by contract", choiceID), err)
			}
			return Resolution{}, shared.WrapError("decision", "Resolve", shared.ErrInvalidInput,
				fmt.Sprintf("payload of choice %q cannot be validated", choiceID), err)
		}
	}

	group := rule.Base
	if rule.VariantKey != "" {
		variantName, ok := payload[rule.VariantKey].(string)
		if !ok {
			return Resolution{}, shared.NewDomainError("decision", "Resolve", shared.ErrInvalidInput,
				fmt.Sprintf("choice %q requires payload field %q", choiceID, rule.VariantKey))
		}
		variant, ok := rule.Variants[variantName]
		if !ok {
			return Resolution{}, shared.NewDomainError("decision", "Resolve", shared.ErrInvalidInput,
				fmt.Sprintf("choice %q has no variant %q", choiceID, variantName))
		}
		group = mergeGroups(rule.Base, variant)
	}

	delayed := group.Delayed
	if rule.FastTrackSkill != "" && profile.Skills[rule.FastTrackSkill] >= rule.FastTrackLevel && rule.FastTrackLevel > 0 {
		delayed = fastTrack(delayed)
	}

	res := Resolution{
		ChoiceID:  choiceID,
		Action:    rule.Action,
		Immediate: cloneEffects(group.Immediate),
		Delayed:   cloneDelayed(delayed),
	}
	if rule.Action == ActionBusinessRegister {
		// Схема правила уже гарантировала непустую строку.
		res.BusinessName, _ = payload["businessName"].(string)
	}
	return res, nil
}

// mergeGroups складывает базовые эффекты правила с эффектами варианта.
func mergeGroups(base, variant EffectGroup) EffectGroup {
	merged := EffectGroup{}
	merged.Immediate = append(append([]resource.Effect{}, base.Immediate...), variant.Immediate...)
	merged.Delayed = append(append([]DelayedSpec{}, base.Delayed...), variant.Delayed...)
	return merged
}

// fastTrack уполовинивает задержки отложенных следствий.
func fastTrack(delayed []DelayedSpec) []DelayedSpec {
	result := make([]DelayedSpec, len(delayed))
	for i, spec := range delayed {
		result[i] = spec
		result[i].Delay = spec.Delay / 2
	}
	return result
}

func cloneEffects(effects []resource.Effect) []resource.Effect {
	if len(effects) == 0 {
		return nil
	}
	return append([]resource.Effect{}, effects...)
}

func cloneDelayed(delayed []DelayedSpec) []DelayedSpec {
	if len(delayed) == 0 {
		return nil
	}
	result := make([]DelayedSpec, len(delayed))
	for i, spec := range delayed {
		result[i] = spec
		result[i].Effects = cloneEffects(spec.Effects)
	}
	return result
}
