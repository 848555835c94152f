package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileExporter writes each finished session to a CSV file in Dir
type FileExporter struct {
	Dir    string
	Logger *slog.Logger
}

// FileName returns the CSV file name of an export
func FileName(exp Export) string {
	return fmt.Sprintf("C%d_ID%s_headDirectionResults.csv", int(exp.Condition), exp.ParticipantID)
}

// Export writes exp to Dir, replacing any file of the same name
func (f *FileExporter) Export(ctx context.Context, exp Export) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(f.Dir, FileName(exp))

	tmp, err := os.CreateTemp(f.Dir, ".session-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, exp.Entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}

	if f.Logger != nil {
		f.Logger.Info("session exported",
			"session_id", exp.SessionID,
			"path", path,
			"rows", len(exp.Entries),
		)
	}

	return nil
}
