package main

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"voxelterrain/internal/config"
)

func TestWriteConfigFromEnvJSON(t *testing.T) {
	t.Setenv(envConfigYAML, "")

	cfg := config.Default()
	cfg.World.DrawRange = 3
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	t.Setenv(envConfigJSON, string(data))

	path := filepath.Join(t.TempDir(), "terrain.json")
	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var decoded config.Config
	if err := json.Unmarshal(contents, &decoded); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if decoded.World.DrawRange != 3 {
		t.Fatalf("unexpected draw range: %d", decoded.World.DrawRange)
	}
}

func TestWriteConfigFromEnvYAML(t *testing.T) {
	cfg := config.Default()
	cfg.World.SeedOffset.X = 1234
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAML, base64.StdEncoding.EncodeToString(data))

	path := filepath.Join(t.TempDir(), "conf", "terrain.yml")
	wrote, err := writeConfigFromEnv(path)
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if !wrote {
		t.Fatalf("expected config to be written")
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if loaded.World.SeedOffset.X != 1234 {
		t.Fatalf("unexpected seed offset: %+v", loaded.World.SeedOffset)
	}
}

func TestWriteConfigFromEnvRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.World.ChunkSize = 0
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	t.Setenv(envConfigJSON, string(data))
	t.Setenv(envConfigYAML, "")

	path := filepath.Join(t.TempDir(), "terrain.json")
	if _, err := writeConfigFromEnv(path); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("invalid config must not be written, stat: %v", err)
	}
}

func TestWriteConfigFromEnvNoPayload(t *testing.T) {
	t.Setenv(envConfigJSON, "")
	t.Setenv(envConfigYAML, "")

	wrote, err := writeConfigFromEnv(filepath.Join(t.TempDir(), "unused.yml"))
	if err != nil {
		t.Fatalf("writeConfigFromEnv: %v", err)
	}
	if wrote {
		t.Fatalf("expected no config to be written")
	}
}
