package render

import (
	"os"
	"path/filepath"

	"github.com/John-Robertt/plugincfg-merge/internal/model"
)

const CodeOutputWrite = "OUTPUT_WRITE_ERROR"

// WriteFile replaces path with data through a temp file in the same
// directory, so a failed run never leaves a partial document behind.
func WriteFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return writeError(path, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return writeError(path, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return writeError(path, err)
	}
	if err = tmp.Close(); err != nil {
		return writeError(path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return writeError(path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return writeError(path, err)
	}
	return nil
}

func writeError(path string, err error) error {
	return &RenderError{
		AppError: model.AppError{
			Code:    CodeOutputWrite,
			Message: "failed to write merged document",
			Stage:   model.StageWriteOutput,
			URL:     path,
		},
		Cause: err,
	}
}
