package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	dcgan "github.com/LdDl/dcgan-go"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.BatchSize != 256 || cfg.NoiseDim != 100 || cfg.Epochs != 50 || cfg.LearningRate != 1e-4 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	opt := cfg.OptimizerConfig()
	if opt.Kind != dcgan.OptimizerAdam || opt.LearnRate != 1e-4 {
		t.Fatalf("unexpected optimizer %+v", opt)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	raw := "epochs: 3\nbatch_size: 8\nsynthetic: true\nsynthetic_size: 16\narchitecture: dense\nhidden: [32, 16]\noptimizer: rmsprop\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Epochs != 3 || cfg.BatchSize != 8 || !cfg.Synthetic || cfg.Optimizer != "rmsprop" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Hidden, []int{32, 16}) {
		t.Fatalf("unexpected hidden %v", cfg.Hidden)
	}
	if cfg.NoiseDim != 100 {
		t.Fatalf("absent keys must keep defaults, got noise_dim %d", cfg.NoiseDim)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":       "epochz: 3\n",
		"unknown optimizer": "optimizer: adagrad\n",
		"negative batch":    "batch_size: -1\n",
		"zero noise":        "noise_dim: 0\n",
		"bad architecture":  "architecture: resnet\n",
		"class w/o labels":  "class: 3\n",
		"dropout":           "dropout: 1.5\n",
	}
	for name, raw := range tests {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	cfg.ApplyOverrides(Overrides{Epochs: 2, Optimizer: "sgd", LearningRate: 0.01, Synthetic: true})
	if cfg.Epochs != 2 || cfg.Optimizer != "sgd" || cfg.LearningRate != 0.01 || !cfg.Synthetic {
		t.Fatalf("overrides are not applied: %+v", cfg)
	}
	if cfg.BatchSize != 256 {
		t.Fatal("zero overrides must keep config values")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Hidden = []int{64}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "batch_size: 256") {
		t.Fatalf("unexpected yaml:\n%s", raw)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, cfg) {
		t.Fatalf("expected %+v, got %+v", cfg, loaded)
	}
}

func TestPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "data"
	cfg.ImagesFile = "images.gz"
	if got := cfg.ImagesPath(); got != filepath.Join("data", "images.gz") {
		t.Fatalf("unexpected images path %s", got)
	}
	if cfg.LabelsPath() != "" {
		t.Fatal("labels path must be empty")
	}
	cfg.LabelsFile = "/abs/labels"
	if got := cfg.LabelsPath(); got != "/abs/labels" {
		t.Fatalf("absolute path must be kept, got %s", got)
	}
}
