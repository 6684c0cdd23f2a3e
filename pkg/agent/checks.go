package agent

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckPaths verifies this rank's directories before any instruction
// arrives. With force-mkdir the missing ones are created; otherwise a
// missing path is fatal, reported before the worker ever spawns.
func (a *Agent) CheckPaths() error {
	task := a.cfg.Task(a.rank)

	outputPath := task.OutputPath
	if !a.worker.isMapper() {
		// A reducer's output path is a filebase, not a directory.
		outputPath = filepath.Dir(task.OutputPath)
	}
	logPath := filepath.Dir(task.LogFilebase)

	if a.cfg.ForceMkdir {
		paths := []string{outputPath, logPath, task.TmpDir}
		if !a.worker.isMapper() {
			paths = append(paths, task.InputPath)
		}
		for _, path := range paths {
			// MkdirAll is idempotent: ranks sharing a host race on the
			// same tmp dir and must all succeed.
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
		}
		return nil
	}

	if a.worker.isMapper() {
		matches, err := filepath.Glob(task.InputPath)
		if err != nil {
			return fmt.Errorf("bad input pattern %s: %w", task.InputPath, err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("input pattern %s does not match any file", task.InputPath)
		}
	} else {
		if _, err := os.Stat(task.InputPath); err != nil {
			return fmt.Errorf("input path %s does not exist", task.InputPath)
		}
	}
	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("output path %s does not exist", outputPath)
	}
	if _, err := os.Stat(logPath); err != nil {
		return fmt.Errorf("log path %s does not exist", logPath)
	}
	return nil
}
