// Package fileutil holds the file persistence discipline shared by the status store,
// the command inbox and the configuration writer.
package fileutil

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// WriteFileAtomic replaces path with data. Readers observe either the old or the new
// content, never a partial write.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	bw := bufio.NewWriterSize(tmpFile, 4*1024)
	if _, err := bw.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write failed: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("buffer flush failed: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("fsync failed: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("temp file close failed: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod failed: %w", err)
	}

	if err := renameWithRetry(tmpPath, path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", filepath.Base(path), err)
	}
	return nil
}

// WriteJSONAtomic encodes v as indented JSON and writes it with WriteFileAtomic
func WriteJSONAtomic(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding failed: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0644)
}

// ReadJSON decodes the JSON file at path into v. A missing file is reported with an
// error satisfying os.IsNotExist.
func ReadJSON(path string, v any) error {
	//nolint:gosec // G304: paths come from the application config
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%s is empty", filepath.Base(path))
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding error: %w", err)
	}
	return nil
}

// renameWithRetry handles file renaming with retry logic for Windows
func renameWithRetry(src, dst string) error {
	const maxRetries = 5
	const retryDelay = 10 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		// os.Rename does not replace an existing file on Windows
		if runtime.GOOS == "windows" {
			_ = os.Remove(dst)
		}

		err := os.Rename(src, dst)
		if err == nil {
			return nil
		}

		lastErr = err
		if runtime.GOOS == "windows" {
			time.Sleep(retryDelay * time.Duration(i+1))
			continue
		}
		return err
	}

	return lastErr
}
