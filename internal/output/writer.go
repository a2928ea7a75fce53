package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrOverwriteDeclined is returned when the user keeps an existing file.
var ErrOverwriteDeclined = errors.New("output file exists and overwrite was declined")

// ConfirmFunc asks whether an existing file may be replaced.
type ConfirmFunc func(path string) (bool, error)

// FileMode is the permission of written report files.
const FileMode os.FileMode = 0o600

// WriteFile writes data to path with owner-only permissions, creating parent
// directories. An existing file is replaced only when force is set or
// confirm approves.
func WriteFile(path string, data []byte, force bool, confirm ConfirmFunc) error {
	if _, err := os.Stat(path); err == nil && !force {
		if confirm == nil {
			return ErrOverwriteDeclined
		}
		ok, err := confirm(path)
		if err != nil {
			return fmt.Errorf("confirming overwrite: %w", err)
		}
		if !ok {
			return ErrOverwriteDeclined
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, FileMode)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	if err := f.Chmod(FileMode); err != nil {
		_ = f.Close()
		return fmt.Errorf("setting output file permissions: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing output file: %w", err)
	}
	return f.Close()
}
