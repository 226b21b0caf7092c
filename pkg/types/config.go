// Package types: contract document shapes. These mirror the YAML
// documents in a contracts bundle (execution, session, data, strategy
// templates, risk model, calendar, constitution, market instrument) —
// spec §4.2. Each document is loaded, normalised (list-keyed collections
// gain an id->item lookup table), and folded into one content hash that
// is stamped on every event.
package types

import "github.com/shopspring/decimal"

// Condition is a declarative rule condition: a map of suffixed keys
// (e.g. "bar_lag_seconds_gte", "gap_detected_eq") to a comparison value.
// Suffixes: _gte, _gt, _lte, _lt, _eq.
type Condition map[string]any

// DegradationEvent is one DVS/EQS rule: if Condition matches the current
// state, Penalties are applied.
type DegradationEvent struct {
	ID        string         `yaml:"id" json:"id"`
	Condition Condition      `yaml:"condition" json:"condition"`
	Penalties map[string]float64 `yaml:"penalties" json:"penalties"`
}

// DataContract is data_contract.yaml: the DVS rule set.
type DataContract struct {
	DVS struct {
		InitialValue      float64            `yaml:"initial_value" json:"initial_value"`
		RecoveryPerBar     float64            `yaml:"recovery_per_bar" json:"recovery_per_bar"`
		DegradationEvents  []DegradationEvent `yaml:"degradation_events" json:"degradation_events"`
		DegradationsByID   map[string]DegradationEvent `yaml:"-" json:"degradation_events_by_id"`
	} `yaml:"dvs" json:"dvs"`
}

// ExecutionContract is execution_contract.yaml: the EQS rule set.
type ExecutionContract struct {
	EQS struct {
		InitialValue        float64            `yaml:"initial_value" json:"initial_value"`
		SlippageMinExpected  float64            `yaml:"slippage_min_expected" json:"slippage_min_expected"`
		DegradationEvents    []DegradationEvent `yaml:"degradation_events" json:"degradation_events"`
		DegradationsByID     map[string]DegradationEvent `yaml:"-" json:"degradation_events_by_id"`
	} `yaml:"eqs" json:"eqs"`
}

// NoTradeWindow is one instrument-local HH:MM..HH:MM window during which
// entries are forbidden regardless of any other gate.
type NoTradeWindow struct {
	ID    string `yaml:"id" json:"id"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// SessionContract is session.yaml: no-trade windows and the flatten deadline.
type SessionContract struct {
	Timezone        string          `yaml:"timezone" json:"timezone"`
	FlattenDeadline string          `yaml:"flatten_deadline" json:"flatten_deadline"`
	NoTradeWindows  []NoTradeWindow `yaml:"no_trade_windows" json:"no_trade_windows"`
	WindowsByID     map[string]NoTradeWindow `yaml:"-" json:"no_trade_windows_by_id"`
}

// StrategyTemplate is one entry of strategy_templates.yaml.
type StrategyTemplate struct {
	ID                   string   `yaml:"id" json:"id"`
	BiasDependencies     []string `yaml:"bias_dependencies" json:"bias_dependencies"`
	RequiredConfirmation []string `yaml:"required_confirmation" json:"required_confirmation"`
	StopTicks            int      `yaml:"stop_ticks" json:"stop_ticks"`
	TargetTicks          int      `yaml:"target_ticks" json:"target_ticks"`
	Direction            string   `yaml:"direction" json:"direction"`
}

// StrategyTemplatesContract is strategy_templates.yaml.
type StrategyTemplatesContract struct {
	StrategyTemplates []StrategyTemplate          `yaml:"strategy_templates" json:"strategy_templates"`
	TemplatesByID     map[string]StrategyTemplate `yaml:"-" json:"strategy_templates_by_id"`
}

// KillSwitchTrigger is one declarative risk-model kill-switch condition.
type KillSwitchTrigger struct {
	ID        string    `yaml:"id" json:"id"`
	Condition Condition `yaml:"condition" json:"condition"`
}

// RiskModelContract is risk_model.yaml.
type RiskModelContract struct {
	MaxDailyLoss         decimal.Decimal `yaml:"max_daily_loss" json:"max_daily_loss"`
	MaxConsecutiveLosses int             `yaml:"max_consecutive_losses" json:"max_consecutive_losses"`
	MaxTradesPerDay      int             `yaml:"max_trades_per_day" json:"max_trades_per_day"`
	MaxPosition          int             `yaml:"max_position" json:"max_position"`
	KillSwitch           struct {
		Triggers     []KillSwitchTrigger          `yaml:"triggers" json:"triggers"`
		TriggersByID map[string]KillSwitchTrigger `yaml:"-" json:"triggers_by_id"`
	} `yaml:"kill_switch" json:"kill_switch"`
}

// Holiday is one full-session closure.
type Holiday struct {
	Date string `yaml:"date" json:"date"`
	Name string `yaml:"name" json:"name"`
}

// HalfDay is one early-close session.
type HalfDay struct {
	Date      string `yaml:"date" json:"date"`
	CloseTime string `yaml:"close_time" json:"close_time"`
}

// CalendarContract is calendar.yaml.
type CalendarContract struct {
	Holidays       []Holiday          `yaml:"holidays" json:"holidays"`
	HalfDays       []HalfDay          `yaml:"half_days" json:"half_days"`
	HolidayDates   map[string]Holiday `yaml:"-" json:"holiday_dates"`
	HalfDayDates   map[string]HalfDay `yaml:"-" json:"half_day_dates"`
}

// ConstitutionContract is constitution.yaml: the constitutional filter's
// own numeric thresholds (dvs/eqs minimums live here; loss/trade/position
// limits are shared with RiskModelContract and re-read from there).
type ConstitutionContract struct {
	DVSMinForEntry float64 `yaml:"dvs_min_for_entry" json:"dvs_min_for_entry"`
	EQSMinForEntry float64 `yaml:"eqs_min_for_entry" json:"eqs_min_for_entry"`
	TTLSeconds     int     `yaml:"ttl_seconds" json:"ttl_seconds"`
}

// MarketInstrumentContract is market_instrument.yaml: the single
// instrument's tick geometry and round-number levels.
type MarketInstrumentContract struct {
	Symbol      string            `yaml:"symbol" json:"symbol"`
	TickSize    decimal.Decimal   `yaml:"tick_size" json:"tick_size"`
	TickValue   decimal.Decimal   `yaml:"tick_value" json:"tick_value"`
	RoundLevels []decimal.Decimal `yaml:"round_levels" json:"round_levels"`
}

// SignalNorm is the configured min/max a raw signal value is scaled
// through before it contributes to a constraint's belief.
type SignalNorm struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Constraint is one Tier-1 belief constraint: a weighted combination of
// named signals decayed against its own previous belief.
type Constraint struct {
	ID          string             `yaml:"id" json:"id"`
	Weights     map[string]float64 `yaml:"weights" json:"weights"`
	DecayLambda float64            `yaml:"decay_lambda" json:"decay_lambda"`
}

// BeliefContract is belief_config.yaml: the constraint-signal matrix,
// per-signal normalisation ranges, optional tier normalisation mode,
// and the stability EWMA's alpha.
type BeliefContract struct {
	Constraints    []Constraint          `yaml:"constraints" json:"constraints"`
	SignalNorms    map[string]SignalNorm `yaml:"signal_norms" json:"signal_norms"`
	NormalizeMode  string                `yaml:"normalize_mode" json:"normalize_mode"`
	Stability      struct {
		Alpha float64 `yaml:"alpha" json:"alpha"`
	} `yaml:"stability" json:"stability"`
	ConstraintsByID map[string]Constraint `yaml:"-" json:"constraints_by_id"`
}

// DetectorSpec is one tagged-variant detector: a fixed Kind (currently
// only "signal_magnitude") evaluated over a named signal with a scale
// and an optional inversion, replacing the original's string-function-
// path dispatch with an enumerated kind plus per-kind parameters.
type DetectorSpec struct {
	Kind   string  `yaml:"kind" json:"kind"`
	Signal string  `yaml:"signal" json:"signal"`
	Scale  float64 `yaml:"scale" json:"scale"`
	Invert bool    `yaml:"invert" json:"invert"`
}

// BiasSpec is the static registry definition of one market bias.
type BiasSpec struct {
	ID               string         `yaml:"id" json:"id"`
	Category         string         `yaml:"category" json:"category"`
	Inputs           []string       `yaml:"inputs" json:"inputs"`
	Detectors        []DetectorSpec `yaml:"detectors" json:"detectors"`
	StrengthKind     string         `yaml:"strength_kind" json:"strength_kind"`
	ConfidenceKind   string         `yaml:"confidence_kind" json:"confidence_kind"`
	ConfidenceBelief string         `yaml:"confidence_belief" json:"confidence_belief"`
	ConflictsWith    []string       `yaml:"conflicts_with" json:"conflicts_with"`
	Supports         []string       `yaml:"supports" json:"supports"`
	Tags             []string       `yaml:"tags" json:"tags"`
	CapitalTierMin   string         `yaml:"capital_tier_min" json:"capital_tier_min"`
}

// BiasRegistryContract is bias_registry.yaml.
type BiasRegistryContract struct {
	Biases     []BiasSpec          `yaml:"biases" json:"biases"`
	BiasesByID map[string]BiasSpec `yaml:"-" json:"biases_by_id"`
}

// StrategySpec is the static registry definition of one strategy archetype.
type StrategySpec struct {
	ID                   string         `yaml:"id" json:"id"`
	StrategyClass        string         `yaml:"strategy_class" json:"strategy_class"`
	BiasDependencies     []string       `yaml:"bias_dependencies" json:"bias_dependencies"`
	SignatureDetectors   []DetectorSpec `yaml:"signature_detectors" json:"signature_detectors"`
	FailureSignatures    []DetectorSpec `yaml:"failure_signatures" json:"failure_signatures"`
	RecommendedPostures  []string       `yaml:"recommended_postures" json:"recommended_postures"`
}

// StrategyRegistryContract is strategy_registry.yaml.
type StrategyRegistryContract struct {
	Strategies     []StrategySpec          `yaml:"strategies" json:"strategies"`
	StrategiesByID map[string]StrategySpec `yaml:"-" json:"strategies_by_id"`
}

// AttributionRule is one ordered A0-A9 classification rule: the first
// whose Condition matches the trade's metrics wins.
type AttributionRule struct {
	ID           string    `yaml:"id" json:"id"`
	Condition    Condition `yaml:"condition" json:"condition"`
	ProcessScore float64   `yaml:"process_score" json:"process_score"`
	OutcomeScore float64   `yaml:"outcome_score" json:"outcome_score"`
}

// AttributionContract is attribution.yaml: the ordered rule set plus
// the fallback applied when no rule matches.
type AttributionContract struct {
	Rules   []AttributionRule `yaml:"rules" json:"rules"`
	Default AttributionRule   `yaml:"default" json:"default"`
}
