package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Install prefix layout:
//
//	prefix/
//	  .llarcfg.json   # receipt of the last successful install
//	  include/
//	  lib/
//	  ...
const cacheFile = ".llarcfg.json"

// receipt records a successful install. A later build whose plan has the same
// digest is skipped unless forced.
type receipt struct {
	Recipe     string    `json:"recipe"`
	Digest     string    `json:"digest"`
	Selections string    `json:"selections"`
	Args       []string  `json:"args"`
	Files      []string  `json:"files,omitempty"`
	BuildTime  time.Time `json:"build_time"`
}

func loadReceipt(dir string) (*receipt, error) {
	data, err := os.ReadFile(filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, err
	}
	var r receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func saveReceipt(dir string, r *receipt) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}
