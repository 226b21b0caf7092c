package contracts

import (
	"path/filepath"
	"runtime"
	"testing"
)

func contractsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("could not determine test file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "contracts")
}

func TestLoadNormalizesLookupTables(t *testing.T) {
	b, err := Load(contractsDir(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(b.Execution.EQS.DegradationsByID) == 0 {
		t.Error("execution_contract.yaml: degradation_events_by_id not populated")
	}
	if len(b.Session.WindowsByID) == 0 {
		t.Error("session.yaml: no_trade_windows_by_id not populated")
	}
	if len(b.Data.DVS.DegradationsByID) == 0 {
		t.Error("data_contract.yaml: degradation_events_by_id not populated")
	}
	if len(b.Strategy.TemplatesByID) == 0 {
		t.Error("strategy_templates.yaml: strategy_templates_by_id not populated")
	}
	if len(b.Risk.KillSwitch.TriggersByID) == 0 {
		t.Error("risk_model.yaml: triggers_by_id not populated")
	}
	if len(b.Calendar.HolidayDates) == 0 {
		t.Error("calendar.yaml: holiday_dates not populated")
	}
	if len(b.Calendar.HalfDayDates) == 0 {
		t.Error("calendar.yaml: half_day_dates not populated")
	}
	if len(b.Belief.ConstraintsByID) == 0 {
		t.Error("belief_config.yaml: constraints_by_id not populated")
	}
	if len(b.BiasRegistry.BiasesByID) == 0 {
		t.Error("bias_registry.yaml: biases_by_id not populated")
	}
	if len(b.StrategyRegistry.StrategiesByID) == 0 {
		t.Error("strategy_registry.yaml: strategies_by_id not populated")
	}
	if len(b.Attribution.Rules) == 0 {
		t.Error("attribution.yaml: rules not populated")
	}

	if b.ConfigHash == "" {
		t.Error("config hash not computed")
	}
}

func TestLoadIsDeterministic(t *testing.T) {
	dir := contractsDir(t)
	b1, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b1.ConfigHash != b2.ConfigHash {
		t.Errorf("config hash not stable across loads: %s != %s", b1.ConfigHash, b2.ConfigHash)
	}
}

func TestDegradationEventIDsUnique(t *testing.T) {
	b, err := Load(contractsDir(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	seen := map[string]bool{}
	for _, e := range b.Data.DVS.DegradationEvents {
		if seen[e.ID] {
			t.Errorf("duplicate dvs degradation event id %q", e.ID)
		}
		seen[e.ID] = true
	}
}
