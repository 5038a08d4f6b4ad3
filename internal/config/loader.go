package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/legionai/legion/internal/collective"
)

// Load reads path, resolves $include directives recursively, expands
// environment variables, and decodes the result into a Config with
// defaults applied. It is the single entry point cmd/legion uses; the
// finer-grained steps below are split out the way the teacher's loader
// splits LoadRaw from its config decode, so tests can exercise each
// stage independently.
func Load(path string) (*Config, error) {
	raw, err := loadRaw(path, map[string]bool{})
	if err != nil {
		return nil, err
	}

	expanded := os.Expand(string(raw), lookupEnv)

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// lookupEnv backs os.Expand; an unset variable expands to empty string,
// matching os.ExpandEnv's behavior (the teacher's loader uses
// os.ExpandEnv directly — Load needs os.Expand's pluggable lookup only
// so it can fall through a missing var without panicking on malformed
// ${} syntax, which os.Expand already tolerates).
func lookupEnv(key string) string {
	return os.Getenv(key)
}

// loadRaw reads path and recursively resolves any top-level "include" or
// "$include" key naming one or more paths (relative to path's directory)
// whose parsed content is merged underneath the including document,
// mirroring the teacher's $include semantics. seen guards against
// include cycles.
func loadRaw(path string, seen map[string]bool) (map[string]interface{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	if seen[abs] {
		return nil, fmt.Errorf("config: include cycle at %s", path)
	}
	seen[abs] = true

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}

	includes := extractIncludes(doc)
	if len(includes) == 0 {
		return doc, nil
	}

	dir := filepath.Dir(abs)
	merged := map[string]interface{}{}
	for _, inc := range includes {
		incPath := inc
		if !filepath.IsAbs(incPath) {
			incPath = filepath.Join(dir, incPath)
		}
		included, err := loadRaw(incPath, seen)
		if err != nil {
			return nil, err
		}
		mergeMaps(merged, included)
	}
	mergeMaps(merged, doc)
	return merged, nil
}

// extractIncludes pulls the "include"/"$include" key's value out of doc
// (as a list of paths, accepting either a single string or a sequence)
// and removes the key so it never reaches the final decode.
func extractIncludes(doc map[string]interface{}) []string {
	var raw interface{}
	for _, key := range []string{"$include", "include"} {
		if v, ok := doc[key]; ok {
			raw = v
			delete(doc, key)
			break
		}
	}
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// mergeMaps recursively merges src into dst, with src taking precedence
// on scalar conflicts; nested maps are merged key-by-key rather than
// replaced wholesale.
func mergeMaps(dst, src map[string]interface{}) {
	for k, v := range src {
		if existing, ok := dst[k]; ok {
			existingMap, existingIsMap := existing.(map[string]interface{})
			incomingMap, incomingIsMap := v.(map[string]interface{})
			if existingIsMap && incomingIsMap {
				mergeMaps(existingMap, incomingMap)
				continue
			}
		}
		dst[k] = v
	}
}

// LoadParticipants resolves the Collective's roster: Config.Collective's
// inline Participants if set, else the file at ParticipantsFile (itself
// $include-capable, decoded the same way Load decodes the root document).
func LoadParticipants(cfg *Config, baseDir string) ([]*collective.Participant, error) {
	if len(cfg.Collective.Participants) > 0 {
		return decodeParticipants(cfg.Collective.Participants)
	}
	if cfg.Collective.ParticipantsFile == "" {
		return nil, nil
	}

	path := cfg.Collective.ParticipantsFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	raw, err := loadRaw(path, map[string]bool{})
	if err != nil {
		return nil, err
	}
	list, _ := raw["participants"].([]interface{})
	configs := make([]ParticipantConfig, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			configs = append(configs, m)
		}
	}
	return decodeParticipants(configs)
}

// decodeParticipants round-trips each generic map through YAML into a
// collective.Participant, the same decode-via-remarshal trick the
// teacher's loader uses to turn loosely-typed includes into a concrete
// struct.
func decodeParticipants(configs []ParticipantConfig) ([]*collective.Participant, error) {
	out := make([]*collective.Participant, 0, len(configs))
	for _, c := range configs {
		b, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("config: marshal participant: %w", err)
		}
		var p collective.Participant
		if err := yaml.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("config: decode participant: %w", err)
		}
		out = append(out, &p)
	}
	return out, nil
}
