// Package checkpoint stores learnables of networks as numpy (.npy) files: one file per node, named after the node.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	dcgan "github.com/LdDl/dcgan-go"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	extension = ".npy"
	// StepFile Name of file holding index of the next training step
	StepFile = "step"
)

// FileName Returns path of file holding value of node n inside dir
func FileName(dir string, n *gorgonia.Node) string {
	return filepath.Join(dir, n.Name()+extension)
}

// Save Writes current values of nodes into dir (created if needed)
func Save(dir string, nodes gorgonia.Nodes) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "Can't create checkpoint directory '%s'", dir)
	}
	for _, n := range nodes {
		dense, ok := n.Value().(*tensor.Dense)
		if !ok || dense == nil {
			return fmt.Errorf("node '%s' has no dense value", n.Name())
		}
		if err := writeDense(FileName(dir, n), dense); err != nil {
			return errors.Wrapf(err, "Can't save node '%s'", n.Name())
		}
	}
	return nil
}

func writeDense(path string, dense *tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = dense.WriteNpy(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load Restores values of nodes from dir in place. Every node must have a file and stored shape must match
func Load(dir string, nodes gorgonia.Nodes) error {
	for _, n := range nodes {
		stored, err := readDense(FileName(dir, n))
		if err != nil {
			return errors.Wrapf(err, "Can't load node '%s'", n.Name())
		}
		if !stored.Shape().Eq(n.Shape()) {
			return errors.Wrapf(dcgan.ErrShapeMismatch, "node '%s' has shape %v, checkpoint holds %v", n.Name(), n.Shape(), stored.Shape())
		}
		if n.Value() == nil {
			return fmt.Errorf("node '%s' has no value to restore into", n.Name())
		}
		dst, ok := n.Value().Data().([]float64)
		if !ok {
			return fmt.Errorf("node '%s' must hold float64 values", n.Name())
		}
		src, ok := stored.Data().([]float64)
		if !ok {
			return fmt.Errorf("checkpoint of node '%s' holds %v values", n.Name(), stored.Dtype())
		}
		copy(dst, src)
	}
	return nil
}

func readDense(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dense := new(tensor.Dense)
	if err := dense.ReadNpy(f); err != nil {
		return nil, err
	}
	return dense, nil
}

// Exists Reports whether dir holds a file for every node
func Exists(dir string, nodes gorgonia.Nodes) bool {
	for _, n := range nodes {
		if _, err := os.Stat(FileName(dir, n)); err != nil {
			return false
		}
	}
	return len(nodes) > 0
}

// SaveStep Writes index of the next training step into dir (created if needed)
func SaveStep(dir string, step int) error {
	if step < 0 {
		return fmt.Errorf("step must be non-negative, got %d", step)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "Can't create checkpoint directory '%s'", dir)
	}
	path := filepath.Join(dir, StepFile)
	if err := os.WriteFile(path, []byte(strconv.Itoa(step)+"\n"), 0o644); err != nil {
		return errors.Wrapf(err, "Can't save step to '%s'", path)
	}
	return nil
}

// LoadStep Reads index of the next training step from dir. Missing file is reported with os.ErrNotExist in chain
func LoadStep(dir string) (int, error) {
	path := filepath.Join(dir, StepFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "Can't read step from '%s'", path)
	}
	step, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, errors.Wrapf(err, "Can't parse step from '%s'", path)
	}
	if step < 0 {
		return 0, fmt.Errorf("file '%s' holds negative step %d", path, step)
	}
	return step, nil
}
