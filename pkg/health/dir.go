package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DirChecker checks that a directory exists (or can be created) and is
// writable
type DirChecker struct {
	Path string
}

// NewDirChecker creates a new directory checker
func NewDirChecker(path string) *DirChecker {
	return &DirChecker{Path: path}
}

// Check creates the directory if needed and writes and removes a probe file
func (d *DirChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if err := os.MkdirAll(d.Path, 0755); err != nil {
		return result(CheckTypeDir, d.Path, start, fmt.Errorf("cannot create directory: %v", err), "")
	}

	probe, err := os.CreateTemp(d.Path, ".elementstates-probe-*")
	if err != nil {
		return result(CheckTypeDir, d.Path, start, fmt.Errorf("directory not writable: %v", err), "")
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return result(CheckTypeDir, d.Path, start, fmt.Errorf("cannot delete files: %v", err), "")
	}

	return result(CheckTypeDir, d.Path, start, nil, fmt.Sprintf("writable (%s)", filepath.Clean(d.Path)))
}

// Type returns the check type
func (d *DirChecker) Type() CheckType {
	return CheckTypeDir
}
