// Package checkpoint persists serializable training state to durable
// storage and restores it on restart.
package checkpoint

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Serializable is an object that can be saved and restored.
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// IOError reports a failed checkpoint save or load. A failed save
// aborts only that checkpoint attempt; a failed load falls back to
// fresh initialization.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%v %v: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsNotExist returns whether an error reports that no checkpoint
// artifact exists at the requested path. Callers treat this as "start
// from fresh parameters", not as a failure.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Save serializes obj to path. The artifact is written to a temporary
// file first and renamed into place, so a failed save never clobbers
// the previous checkpoint.
func Save(path string, obj Serializable) error {
	data, err := obj.GobEncode()
	if err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &IOError{Op: "save", Path: path, Err: err}
	}

	return nil
}

// Load restores obj from the artifact at path. A missing artifact is
// reported through an error satisfying IsNotExist.
func Load(path string, obj Serializable) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &IOError{Op: "load", Path: path, Err: err}
	}
	if err := obj.GobDecode(data); err != nil {
		return &IOError{Op: "load", Path: path, Err: err}
	}
	return nil
}

// NStep checkpoints an object every interval steps.
type NStep struct {
	interval int
	path     string
	object   Serializable
}

// NewNStep returns a checkpointer that saves object to path every
// interval steps.
func NewNStep(interval int, path string, object Serializable) *NStep {
	return &NStep{
		interval: interval,
		path:     path,
		object:   object,
	}
}

// Checkpoint saves the tracked object if step falls on the interval.
// It returns the path written, or "" when no save was due.
func (n *NStep) Checkpoint(step int) (string, error) {
	if n.interval <= 0 || step == 0 || step%n.interval != 0 {
		return "", nil
	}
	if err := Save(n.path, n.object); err != nil {
		return "", err
	}
	return n.path, nil
}
