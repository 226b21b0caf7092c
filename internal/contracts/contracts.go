// Package contracts loads the versioned parameter documents (execution,
// session, data, strategy templates, risk, calendar, constitution,
// instrument, belief config, bias registry, strategy registry,
// attribution) that parameterise the engine, normalises each into an
// id->item lookup table, and stamps the whole bundle with a content
// hash. Two runs with different hashes never share a stream id (spec
// §4.2).
package contracts

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/themirrorplatform/constitutional-trader/pkg/types"
)

const (
	fileExecution   = "execution_contract.yaml"
	fileSession     = "session.yaml"
	fileData        = "data_contract.yaml"
	fileStrategy    = "strategy_templates.yaml"
	fileRisk        = "risk_model.yaml"
	fileCalendar    = "calendar.yaml"
	fileConstitution = "constitution.yaml"
	fileInstrument  = "market_instrument.yaml"
	fileBelief      = "belief_config.yaml"
	fileBiasRegistry     = "bias_registry.yaml"
	fileStrategyRegistry = "strategy_registry.yaml"
	fileAttribution      = "attribution.yaml"
)

// Bundle is the full, normalised contract set plus its content hash.
type Bundle struct {
	Execution        types.ExecutionContract
	Session          types.SessionContract
	Data             types.DataContract
	Strategy         types.StrategyTemplatesContract
	Risk             types.RiskModelContract
	Calendar         types.CalendarContract
	Constitution     types.ConstitutionContract
	Instrument       types.MarketInstrumentContract
	Belief           types.BeliefContract
	BiasRegistry     types.BiasRegistryContract
	StrategyRegistry types.StrategyRegistryContract
	Attribution      types.AttributionContract
	ConfigHash       string
}

// Load reads the twelve contract documents from dir, normalises lookup
// tables, and computes the bundle's content hash.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{}

	if err := readYAML(dir, fileExecution, &b.Execution); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileSession, &b.Session); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileData, &b.Data); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileStrategy, &b.Strategy); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileRisk, &b.Risk); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileCalendar, &b.Calendar); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileConstitution, &b.Constitution); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileInstrument, &b.Instrument); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileBelief, &b.Belief); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileBiasRegistry, &b.BiasRegistry); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileStrategyRegistry, &b.StrategyRegistry); err != nil {
		return nil, err
	}
	if err := readYAML(dir, fileAttribution, &b.Attribution); err != nil {
		return nil, err
	}

	b.normalize()
	b.ConfigHash = types.SHA256Hex(types.StableJSON(b))
	return b, nil
}

func readYAML(dir, name string, out any) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("contracts: read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("contracts: parse %s: %w", name, err)
	}
	return nil
}

// normalize builds the id->item lookup tables the engine reads at
// decision time, so every hot-path lookup is a map access rather than a
// linear scan of a YAML-ordered list.
func (b *Bundle) normalize() {
	b.Data.DVS.DegradationsByID = make(map[string]types.DegradationEvent, len(b.Data.DVS.DegradationEvents))
	for _, e := range b.Data.DVS.DegradationEvents {
		b.Data.DVS.DegradationsByID[e.ID] = e
	}

	b.Execution.EQS.DegradationsByID = make(map[string]types.DegradationEvent, len(b.Execution.EQS.DegradationEvents))
	for _, e := range b.Execution.EQS.DegradationEvents {
		b.Execution.EQS.DegradationsByID[e.ID] = e
	}

	b.Session.WindowsByID = make(map[string]types.NoTradeWindow, len(b.Session.NoTradeWindows))
	for _, w := range b.Session.NoTradeWindows {
		b.Session.WindowsByID[w.ID] = w
	}

	b.Strategy.TemplatesByID = make(map[string]types.StrategyTemplate, len(b.Strategy.StrategyTemplates))
	for _, t := range b.Strategy.StrategyTemplates {
		b.Strategy.TemplatesByID[t.ID] = t
	}

	b.Risk.KillSwitch.TriggersByID = make(map[string]types.KillSwitchTrigger, len(b.Risk.KillSwitch.Triggers))
	for _, t := range b.Risk.KillSwitch.Triggers {
		b.Risk.KillSwitch.TriggersByID[t.ID] = t
	}

	b.Calendar.HolidayDates = make(map[string]types.Holiday, len(b.Calendar.Holidays))
	for _, h := range b.Calendar.Holidays {
		b.Calendar.HolidayDates[h.Date] = h
	}
	b.Calendar.HalfDayDates = make(map[string]types.HalfDay, len(b.Calendar.HalfDays))
	for _, h := range b.Calendar.HalfDays {
		b.Calendar.HalfDayDates[h.Date] = h
	}

	b.Belief.ConstraintsByID = make(map[string]types.Constraint, len(b.Belief.Constraints))
	for _, c := range b.Belief.Constraints {
		b.Belief.ConstraintsByID[c.ID] = c
	}

	b.BiasRegistry.BiasesByID = make(map[string]types.BiasSpec, len(b.BiasRegistry.Biases))
	for _, s := range b.BiasRegistry.Biases {
		b.BiasRegistry.BiasesByID[s.ID] = s
	}

	b.StrategyRegistry.StrategiesByID = make(map[string]types.StrategySpec, len(b.StrategyRegistry.Strategies))
	for _, s := range b.StrategyRegistry.Strategies {
		b.StrategyRegistry.StrategiesByID[s.ID] = s
	}
}
