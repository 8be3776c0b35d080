package importer

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rules are the operator-tunable validation bounds for inbound reports.
// Loaded from YAML so the editorial team can widen the exchange list without
// a deploy.
type Rules struct {
	AllowedExchanges    []string `yaml:"allowed_exchanges" json:"allowed_exchanges"`
	MinPicks            int      `yaml:"min_picks" json:"min_picks"`
	MaxPicks            int      `yaml:"max_picks" json:"max_picks"`
	MaxTargetChangePct  float64  `yaml:"max_target_change_pct" json:"max_target_change_pct"`
	KnownSchemaVersions []string `yaml:"known_schema_versions" json:"known_schema_versions"`
}

func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var rules Rules
	if err := yaml.Unmarshal(content, &rules); err != nil {
		return Rules{}, err
	}

	if rules.MinPicks <= 0 || rules.MaxPicks < rules.MinPicks {
		return Rules{}, errors.New("invalid pick bounds in rules file")
	}
	if rules.MaxTargetChangePct <= 0 {
		rules.MaxTargetChangePct = DefaultRules().MaxTargetChangePct
	}
	if len(rules.KnownSchemaVersions) == 0 {
		rules.KnownSchemaVersions = DefaultRules().KnownSchemaVersions
	}

	return rules, nil
}

func DefaultRules() Rules {
	return Rules{
		AllowedExchanges:    []string{"NYSE", "NASDAQ", "AMEX", "LSE", "TSE", "HKEX"},
		MinPicks:            1,
		MaxPicks:            5,
		MaxTargetChangePct:  1000,
		KnownSchemaVersions: []string{"v1"},
	}
}
