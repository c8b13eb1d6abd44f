package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keyframestudio/stage/internal/domain"
	"github.com/keyframestudio/stage/internal/pkg/curve"
	"github.com/keyframestudio/stage/internal/validator"
)

// shotFile is the YAML layout of a shot list
type shotFile struct {
	Shots []domain.ShotSpec `yaml:"shots"`
}

// loadShots reads and decodes every shot in a YAML shot file, in file order.
func loadShots(path string) ([]domain.Shot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shots: %w", err)
	}
	var file shotFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse shots %s: %w", path, err)
	}
	if len(file.Shots) == 0 {
		return nil, fmt.Errorf("%s defines no shots", path)
	}

	shots := make([]domain.Shot, 0, len(file.Shots))
	seen := make(map[string]bool, len(file.Shots))
	for i, spec := range file.Shots {
		if err := validator.ValidateApp(spec); err != nil {
			return nil, fmt.Errorf("shot %d: %w", i, err)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("shot %d: duplicate id %q", i, spec.ID)
		}
		seen[spec.ID] = true

		shot, err := spec.Decode()
		if err != nil {
			return nil, fmt.Errorf("shot %d: %w", i, err)
		}
		shots = append(shots, shot)
	}
	return shots, nil
}

// writeShots renders shots back to YAML with every default spelled out.
func writeShots(shots []domain.Shot) ([]byte, error) {
	var file shotFile
	for _, s := range shots {
		spec, err := domain.EncodeShot(s)
		if err != nil {
			return nil, err
		}
		file.Shots = append(file.Shots, spec)
	}
	return yaml.Marshal(file)
}

// loadWorld reads a YAML map of object id to position and velocity. An
// empty path yields an empty world.
func loadWorld(path string) (domain.WorldSnapshot, error) {
	world := domain.WorldSnapshot{}
	if path == "" {
		return world, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read world: %w", err)
	}
	if err := yaml.Unmarshal(data, &world); err != nil {
		return nil, fmt.Errorf("failed to parse world %s: %w", path, err)
	}

	ids := make([]string, 0, len(world))
	for id := range world {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if st := world[id]; !curve.Finite(st.Position) || !curve.Finite(st.Velocity) {
			return nil, fmt.Errorf("world %s: object %q has a non-finite state", path, id)
		}
	}
	return world, nil
}

// checkReferences fails on the first shot whose path follows an object that
// neither the world snapshot nor the baked tracks provide.
func checkReferences(shots []domain.Shot, world domain.WorldSnapshot, anims map[string]*domain.BakedAnimation) error {
	for _, s := range shots {
		for _, id := range domain.References(s.Path) {
			if _, ok := world[id]; ok {
				continue
			}
			if _, ok := anims[id]; ok {
				continue
			}
			return fmt.Errorf("shot %q: object %q is in neither the world nor the baked tracks", s.ID, id)
		}
	}
	return nil
}

// loadAnimations reads every <object>.json track written by "bake --out".
// Tracks are keyed by their object id.
func loadAnimations(dir string) (map[string]*domain.BakedAnimation, error) {
	if dir == "" {
		return nil, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	anims := make(map[string]*domain.BakedAnimation, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read animation: %w", err)
		}
		var anim domain.BakedAnimation
		if err := json.Unmarshal(data, &anim); err != nil {
			return nil, fmt.Errorf("failed to parse animation %s: %w", p, err)
		}
		if anim.ObjectID == "" {
			anim.ObjectID = strings.TrimSuffix(filepath.Base(p), ".json")
		}
		anims[anim.ObjectID] = &anim
	}
	return anims, nil
}

// writeAnimations stores each track as <dir>/<object>.json
func writeAnimations(dir string, anims map[string]*domain.BakedAnimation) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	ids := make([]string, 0, len(anims))
	for id := range anims {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var written []string
	for _, id := range ids {
		anim := anims[id]
		p := filepath.Join(dir, id+".json")
		data, err := json.MarshalIndent(anim, "", "  ")
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", p, err)
		}
		anim.DataPath = p
		written = append(written, p)
	}
	return written, nil
}
