// Package decision реализует движок разрешения выборов: таблица правил,
// валидация полезной нагрузки и вычисление немедленных и отложенных эффектов.
// Движок чистый: ни I/O, ни обращения к часам - всё приходит параметрами.
package decision

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultCatalogYAML []byte

// ══════════════════════════════════════════════════════════════════════════════
// YAML SPECS (формат каталога)
// ══════════════════════════════════════════════════════════════════════════════

type effectSpec struct {
	Kind   string `yaml:"kind"`
	ItemID string `yaml:"item_id"`
	Amount int    `yaml:"amount"`
}

type delayedSpec struct {
	RuleID       string       `yaml:"rule_id"`
	DelayMinutes int          `yaml:"delay_minutes"`
	Effects      []effectSpec `yaml:"effects"`
}

type variantSpec struct {
	Immediate []effectSpec  `yaml:"immediate"`
	Delayed   []delayedSpec `yaml:"delayed"`
}

type ruleSpec struct {
	ID             string                 `yaml:"id"`
	Title          string                 `yaml:"title"`
	Action         string                 `yaml:"action"`
	PayloadSchema  string                 `yaml:"payload_schema"`
	Immediate      []effectSpec           `yaml:"immediate"`
	Delayed        []delayedSpec          `yaml:"delayed"`
	VariantKey     string                 `yaml:"variant_key"`
	Variants       map[string]variantSpec `yaml:"variants"`
	FastTrackSkill string                 `yaml:"fast_track_skill"`
	FastTrackLevel int                    `yaml:"fast_track_level"`
}

type catalogSpec struct {
	Version int        `yaml:"version"`
	Rules   []ruleSpec `yaml:"rules"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPILED CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// DelayedSpec описывает отложенное следствие, которое вызывающий код
// персистит как Consequence со scheduledAt = now + Delay.
type DelayedSpec struct {
	// RuleID - идентификатор правила для аудита.
	RuleID string

	// Delay - относительная задержка до реализации.
	Delay time.Duration

	// Effects - эффекты, применяемые при реализации.
	Effects []resource.Effect
}

// EffectGroup - пара "немедленные + отложенные эффекты" одной ветки правила.
type EffectGroup struct {
	Immediate []resource.Effect
	Delayed   []DelayedSpec
}

// Rule - скомпилированное правило каталога.
type Rule struct {
	// ID - идентификатор выбора.
	ID shared.ChoiceID

	// Title - человекочитаемое название.
	Title string

	// Action - необязательная метка действия для вызывающего кода
	// (например, "business_register" запускает регистрацию бизнеса).
	Action string

	// Schema - скомпилированная JSON-схема полезной нагрузки (может быть nil).
	Schema *jsonschema.Schema

	// Base - эффекты правила без вариантов.
	Base EffectGroup

	// VariantKey - поле полезной нагрузки, выбирающее вариант (пусто = нет веток).
	VariantKey string

	// Variants - эффекты по вариантам.
	Variants map[string]EffectGroup

	// FastTrackSkill / FastTrackLevel - навык профиля, ускоряющий отложенные
	// следствия вдвое при достаточном уровне. Пустой навык = без ускорения.
	FastTrackSkill string
	FastTrackLevel int
}

// Catalog - таблица правил, ключ - идентификатор выбора.
type Catalog struct {
	rules map[shared.ChoiceID]*Rule
}

// LoadCatalog парсит YAML-каталог и компилирует схемы полезных нагрузок.
func LoadCatalog(raw []byte) (*Catalog, error) {
	var spec catalogSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, shared.WrapError("decision", "LoadCatalog", shared.ErrInvalidFormat, "cannot parse rule catalog", err)
	}
	if len(spec.Rules) == 0 {
		return nil, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat, "rule catalog has no rules")
	}

	catalog := &Catalog{rules: make(map[shared.ChoiceID]*Rule, len(spec.Rules))}

	for _, rs := range spec.Rules {
		id := shared.ChoiceID(rs.ID)
		if !id.IsValid() {
			return nil, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat,
				fmt.Sprintf("invalid rule id %q", rs.ID))
		}
		if _, exists := catalog.rules[id]; exists {
			return nil, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat,
				fmt.Sprintf("duplicate rule id %q", rs.ID))
		}

		rule := &Rule{
			ID:             id,
			Title:          rs.Title,
			Action:         rs.Action,
			VariantKey:     rs.VariantKey,
			FastTrackSkill: rs.FastTrackSkill,
			FastTrackLevel: rs.FastTrackLevel,
		}

		if rs.PayloadSchema != "" {
			schema, err := jsonschema.CompileString("rules/"+rs.ID+".schema.json", rs.PayloadSchema)
			if err != nil {
				return nil, shared.WrapError("decision", "LoadCatalog", shared.ErrInvalidFormat,
					fmt.Sprintf("payload schema of rule %q", rs.ID), err)
			}
			rule.Schema = schema
		}

		base, err := compileGroup(rs.ID, rs.Immediate, rs.Delayed)
		if err != nil {
			return nil, err
		}
		rule.Base = base

		if rs.VariantKey != "" {
			if len(rs.Variants) == 0 {
				return nil, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat,
					fmt.Sprintf("rule %q declares variant_key without variants", rs.ID))
			}
			rule.Variants = make(map[string]EffectGroup, len(rs.Variants))
			for name, vs := range rs.Variants {
				group, err := compileGroup(rs.ID+"/"+name, vs.Immediate, vs.Delayed)
				if err != nil {
					return nil, err
				}
				rule.Variants[name] = group
			}
		}

		catalog.rules[id] = rule
	}

	return catalog, nil
}

// DefaultCatalog возвращает встроенный каталог правил.
// Паника невозможна: встроенный YAML проверяется тестами пакета.
func DefaultCatalog() *Catalog {
	catalog, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("decision: embedded rule catalog is broken: %v", err))
	}
	return catalog
}

// Rule возвращает правило по идентификатору выбора.
func (c *Catalog) Rule(id shared.ChoiceID) (*Rule, bool) {
	rule, ok := c.rules[id]
	return rule, ok
}

// Len возвращает количество правил в каталоге.
func (c *Catalog) Len() int {
	return len(c.rules)
}

func compileGroup(context string, immediate []effectSpec, delayed []delayedSpec) (EffectGroup, error) {
	group := EffectGroup{}

	effects, err := compileEffects(context, immediate)
	if err != nil {
		return EffectGroup{}, err
	}
	group.Immediate = effects

	for _, ds := range delayed {
		if ds.RuleID == "" {
			return EffectGroup{}, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat,
				fmt.Sprintf("rule %s: delayed consequence without rule_id", context))
		}
		if ds.DelayMinutes <= 0 {
			return EffectGroup{}, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat,
				fmt.Sprintf("rule %s: delayed consequence %q needs a positive delay", context, ds.RuleID))
		}
		effects, err := compileEffects(context+"/"+ds.RuleID, ds.Effects)
		if err != nil {
			return EffectGroup{}, err
		}
		group.Delayed = append(group.Delayed, DelayedSpec{
			RuleID:  ds.RuleID,
			Delay:   time.Duration(ds.DelayMinutes) * time.Minute,
			Effects: effects,
		})
	}

	return group, nil
}

func compileEffects(context string, specs []effectSpec) ([]resource.Effect, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	effects := make([]resource.Effect, 0, len(specs))
	for _, es := range specs {
		effect := resource.Effect{
			Kind:   resource.Kind(es.Kind),
			ItemID: es.ItemID,
			Amount: es.Amount,
		}
		if !effect.IsValid() {
			return nil, shared.NewDomainError("decision", "LoadCatalog", shared.ErrInvalidFormat,
				fmt.Sprintf("rule %s: invalid effect kind=%q item_id=%q", context, es.Kind, es.ItemID))
		}
		effects = append(effects, effect)
	}
	return effects, nil
}
