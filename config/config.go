package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	dcgan "github.com/LdDl/dcgan-go"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ArchitectureDense = "dense"
	ArchitectureConv  = "conv"
)

// Config captures the knobs of a training run.
type Config struct {
	DataDir       string `yaml:"data_dir"`
	ImagesFile    string `yaml:"images_file"`
	LabelsFile    string `yaml:"labels_file"`
	Class         int    `yaml:"class"`
	Synthetic     bool   `yaml:"synthetic"`
	SyntheticSize int    `yaml:"synthetic_size"`

	Epochs        int `yaml:"epochs"`
	BatchSize     int `yaml:"batch_size"`
	NoiseDim      int `yaml:"noise_dim"`
	ImageHeight   int `yaml:"image_height"`
	ImageWidth    int `yaml:"image_width"`
	ImageChannels int `yaml:"image_channels"`

	Architecture string  `yaml:"architecture"`
	Hidden       []int   `yaml:"hidden"`
	BatchNorm    bool    `yaml:"batch_norm"`
	Dropout      float64 `yaml:"dropout"`
	LeakyAlpha   float64 `yaml:"leaky_alpha"`

	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	Beta1        float64 `yaml:"beta1"`
	Beta2        float64 `yaml:"beta2"`
	Epsilon      float64 `yaml:"epsilon"`

	Seed            int64  `yaml:"seed"`
	LogDir          string `yaml:"log_dir"`
	CheckpointDir   string `yaml:"checkpoint_dir"`
	CheckpointEvery int    `yaml:"checkpoint_every"`
	SampleEvery     int    `yaml:"sample_every"`
	LogEvery        int    `yaml:"log_every"`
}

// Default Fashion-MNIST run: 28x28 grayscale images, batches of 256, 100-dimensional noise, Adam with lr 1e-4 for 50 epochs
func Default() *Config {
	return &Config{
		DataDir:         "data",
		ImagesFile:      "train-images-idx3-ubyte.gz",
		Class:           -1,
		SyntheticSize:   1024,
		Epochs:          50,
		BatchSize:       256,
		NoiseDim:        100,
		ImageHeight:     28,
		ImageWidth:      28,
		ImageChannels:   1,
		Architecture:    ArchitectureConv,
		Hidden:          []int{256},
		BatchNorm:       true,
		Dropout:         0.3,
		LeakyAlpha:      0.3,
		Optimizer:       string(dcgan.OptimizerAdam),
		LearningRate:    1e-4,
		Beta1:           0.9,
		Beta2:           0.999,
		Epsilon:         1e-7,
		Seed:            1,
		LogDir:          "logs",
		CheckpointDir:   "checkpoints",
		CheckpointEvery: 15,
		SampleEvery:     1,
		LogEvery:        50,
	}
}

// Overrides captures CLI supplied values. Zero values mean "keep config value"
type Overrides struct {
	DataDir      string
	Synthetic    bool
	Epochs       int
	BatchSize    int
	NoiseDim     int
	Architecture string
	Optimizer    string
	LearningRate float64
	Seed         int64
	LogDir       string
	LogEvery     int
}

// Load reads Config from YAML on top of Default and validates it.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse config '%s'", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories
func Save(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	return os.WriteFile(path, raw, 0o644)
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.Synthetic {
		c.Synthetic = true
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NoiseDim > 0 {
		c.NoiseDim = o.NoiseDim
	}
	if o.Architecture != "" {
		c.Architecture = o.Architecture
	}
	if o.Optimizer != "" {
		c.Optimizer = o.Optimizer
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.LogDir != "" {
		c.LogDir = o.LogDir
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	positive := []struct {
		name  string
		value int
	}{
		{"epochs", c.Epochs},
		{"batch_size", c.BatchSize},
		{"noise_dim", c.NoiseDim},
		{"image_height", c.ImageHeight},
		{"image_width", c.ImageWidth},
		{"image_channels", c.ImageChannels},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be > 0 (got %d)", p.name, p.value)
		}
	}
	if c.Synthetic {
		if c.SyntheticSize < c.BatchSize {
			return fmt.Errorf("synthetic_size must be >= batch_size (got %d < %d)", c.SyntheticSize, c.BatchSize)
		}
	} else if c.ImagesFile == "" {
		return errors.New("images_file must be set unless synthetic data is used")
	}
	if c.Class >= 0 && c.LabelsFile == "" {
		return errors.New("class filter requires labels_file")
	}
	switch c.Architecture {
	case ArchitectureDense:
	case ArchitectureConv:
		if c.ImageHeight < 4 || c.ImageWidth < 4 {
			return fmt.Errorf("conv architecture needs images of at least 4x4 (got %dx%d)", c.ImageHeight, c.ImageWidth)
		}
	default:
		return fmt.Errorf("architecture '%s' is not handled", c.Architecture)
	}
	for i, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("hidden[%d] must be > 0 (got %d)", i, h)
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1) (got %v)", c.Dropout)
	}
	if c.LeakyAlpha < 0 {
		return fmt.Errorf("leaky_alpha must be >= 0 (got %v)", c.LeakyAlpha)
	}
	switch dcgan.OptimizerKind(c.Optimizer) {
	case dcgan.OptimizerAdam, dcgan.OptimizerRMSProp, dcgan.OptimizerSGD:
	default:
		return fmt.Errorf("optimizer '%s' is not handled", c.Optimizer)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.CheckpointEvery < 0 || c.SampleEvery < 0 {
		return errors.New("checkpoint_every and sample_every must be >= 0")
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 50
	}
	return nil
}

// ImagesPath Returns path of IDX images file
func (c *Config) ImagesPath() string {
	return joinData(c.DataDir, c.ImagesFile)
}

// LabelsPath Returns path of IDX labels file (empty if not set)
func (c *Config) LabelsPath() string {
	if c.LabelsFile == "" {
		return ""
	}
	return joinData(c.DataDir, c.LabelsFile)
}

func joinData(dir, file string) string {
	if filepath.IsAbs(file) || dir == "" {
		return file
	}
	return filepath.Join(dir, file)
}

// OptimizerConfig Returns update rule shared by both networks
func (c *Config) OptimizerConfig() dcgan.OptimizerConfig {
	return dcgan.OptimizerConfig{
		Kind:      dcgan.OptimizerKind(c.Optimizer),
		LearnRate: c.LearningRate,
		Beta1:     c.Beta1,
		Beta2:     c.Beta2,
		Epsilon:   c.Epsilon,
	}
}
