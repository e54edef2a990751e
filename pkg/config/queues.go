package config

import (
	"os"

	"gopkg.in/yaml.v3"

	errs "service-marketplace/pkg/errors"
)

// QueueSettings describes per-queue overrides loaded from the queues file.
// Values of zero mean "use the global default".
type QueueSettings struct {
	Name        string `yaml:"name"`
	Workers     int    `yaml:"workers"`
	RetryBudget int    `yaml:"retry_budget"`
	Prefetch    int    `yaml:"prefetch"`
}

type queuesFile struct {
	Queues []QueueSettings `yaml:"queues"`
}

// LoadQueueSettings reads per-queue settings from a YAML file. A missing
// path returns an empty map; unknown queue names are tolerated so the file
// can be shared across deployments.
func LoadQueueSettings(path string) (map[string]QueueSettings, error) {
	out := make(map[string]QueueSettings)
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewValidation("config.LoadQueueSettings", "cannot read queues file", err)
	}

	var qf queuesFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, errs.NewValidation("config.LoadQueueSettings", "cannot parse queues file", err)
	}

	for _, q := range qf.Queues {
		if q.Name == "" {
			return nil, errs.NewValidation("config.LoadQueueSettings", "queue entry missing name", nil)
		}
		if q.Workers < 0 || q.RetryBudget < 0 || q.Prefetch < 0 {
			return nil, errs.NewValidation("config.LoadQueueSettings", "queue settings must be non-negative: "+q.Name, nil)
		}
		out[q.Name] = q
	}
	return out, nil
}

// Apply merges file-level overrides over the given defaults.
func (q QueueSettings) Apply(defaultWorkers, defaultRetry, defaultPrefetch int) (workers, retry, prefetch int) {
	workers, retry, prefetch = defaultWorkers, defaultRetry, defaultPrefetch
	if q.Workers > 0 {
		workers = q.Workers
	}
	if q.RetryBudget > 0 {
		retry = q.RetryBudget
	}
	if q.Prefetch > 0 {
		prefetch = q.Prefetch
	}
	return workers, retry, prefetch
}
