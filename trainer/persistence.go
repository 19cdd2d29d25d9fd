package trainer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"omnifuzz.local/fuzz/rl"
)

const criticFileName = "value_network.json"

func agentFileName(field string) string {
	return fmt.Sprintf("agent_%s.json", field)
}

// SaveModels writes every agent's policy parameters and each protocol's
// shared critic under dir: one directory per protocol, one file per field,
// plus one critic file.
func (t *Trainer) SaveModels(dir string) error {
	for protocol, array := range t.arrays {
		protocolDir := filepath.Join(dir, protocol)
		if err := os.MkdirAll(protocolDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", protocolDir, err)
		}

		for _, agent := range array.Agents() {
			path := filepath.Join(protocolDir, agentFileName(agent.FieldName()))
			if err := writeSnapshot(path, agent.Snapshot()); err != nil {
				return err
			}
		}

		criticPath := filepath.Join(protocolDir, criticFileName)
		if err := writeSnapshot(criticPath, array.Critic().Snapshot()); err != nil {
			return err
		}
	}
	t.logger.Info("models saved", "dir", dir)
	return nil
}

// LoadModels restores agent and critic parameters from dir. Missing files
// are skipped with a warning so partially trained checkpoints still load.
func (t *Trainer) LoadModels(dir string) error {
	for protocol, array := range t.arrays {
		protocolDir := filepath.Join(dir, protocol)

		for _, agent := range array.Agents() {
			path := filepath.Join(protocolDir, agentFileName(agent.FieldName()))
			snap, err := readSnapshot(path)
			if errors.Is(err, fs.ErrNotExist) {
				t.logger.Warn("agent checkpoint missing, keeping initial parameters", "protocol", protocol, "field", agent.FieldName(), "path", path)
				continue
			}
			if err != nil {
				return err
			}
			if err := agent.Restore(snap); err != nil {
				return fmt.Errorf("restore %s: %w", path, err)
			}
		}

		criticPath := filepath.Join(protocolDir, criticFileName)
		snap, err := readSnapshot(criticPath)
		if errors.Is(err, fs.ErrNotExist) {
			t.logger.Warn("critic checkpoint missing, keeping initial parameters", "protocol", protocol, "path", criticPath)
			continue
		}
		if err != nil {
			return err
		}
		if err := array.Critic().Restore(snap); err != nil {
			return fmt.Errorf("restore %s: %w", criticPath, err)
		}
	}
	t.logger.Info("models loaded", "dir", dir)
	return nil
}

func writeSnapshot(path string, snap rl.NetworkSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readSnapshot(path string) (rl.NetworkSnapshot, error) {
	var snap rl.NetworkSnapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}
