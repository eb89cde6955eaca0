package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// fallbackMaxBytes caps the payload size for the temp-dir fallback path.
// Large exports fail outright rather than silently filling the temp dir.
const fallbackMaxBytes = 1 << 20

// WriteFile writes an export document to dir/filename. If the primary write
// fails and the payload is small, it falls back to the system temp
// directory. Returns the path actually written.
func WriteFile(dir, filename, content string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	primary := filepath.Join(dir, filename)
	if err := os.WriteFile(primary, []byte(content), 0o644); err == nil {
		return primary, nil
	} else if len(content) > fallbackMaxBytes {
		return "", fmt.Errorf("transcript export failed: %w", err)
	} else {
		logger.Warn("Primary export path failed, using temp fallback",
			slog.String("path", primary),
			slog.String("error", err.Error()),
		)
	}

	fallback := filepath.Join(os.TempDir(), filename)
	if err := os.WriteFile(fallback, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("transcript export fallback failed: %w", err)
	}

	return fallback, nil
}
