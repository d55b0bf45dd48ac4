package compliance

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// policyFile is the on-disk shape of a banned-phrase policy.
type policyFile struct {
	Phrases []string `yaml:"phrases"`
}

// DefaultPolicy returns the built-in banned-phrase list for financial
// narratives. Order matters: violations are reported in this order.
func DefaultPolicy() []string {
	return []string{
		"guaranteed returns",
		"guaranteed profit",
		"risk-free",
		"no risk",
		"cannot lose",
		"can't lose",
		"sure thing",
		"certain to grow",
		"act now",
		"get rich",
	}
}

// LoadPolicy reads a YAML phrase list from path. An empty path returns the
// built-in default policy.
func LoadPolicy(path string) ([]string, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "compliance: read policy %s", path)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, eris.Wrapf(err, "compliance: parse policy %s", path)
	}
	if len(pf.Phrases) == 0 {
		return nil, eris.Errorf("compliance: policy %s contains no phrases", path)
	}

	return pf.Phrases, nil
}
