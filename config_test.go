package tempora

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateRejectsNonPositiveMaxConnections(t *testing.T) {
	c := DefaultConfig()
	c.Database.MaxConnections = 0

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected a validation error for MaxConnections=0")
	}
	if ce, ok := err.(*ConfigError); !ok || ce.Field != "database.maxConnections" {
		t.Fatalf("expected a ConfigError on database.maxConnections, got %v", err)
	}
}

func TestValidateRejectsOutOfRangePurgeProbability(t *testing.T) {
	c := DefaultConfig()
	c.Cache.PurgeProbability = 1.5

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected a validation error for an out-of-range purge probability")
	}
	if ce, ok := err.(*ConfigError); !ok || ce.Field != "cache.purgeProbability" {
		t.Fatalf("expected a ConfigError on cache.purgeProbability, got %v", err)
	}
}

func TestValidateRejectsNonPositiveTargetSliceRowThreshold(t *testing.T) {
	c := DefaultConfig()
	c.Planner.TargetSliceRowThreshold = 0

	err := c.Validate()
	if err == nil {
		t.Fatalf("expected a validation error for a zero row threshold")
	}
	if ce, ok := err.(*ConfigError); !ok || ce.Field != "planner.targetSliceRowThreshold" {
		t.Fatalf("expected a ConfigError on planner.targetSliceRowThreshold, got %v", err)
	}
}
