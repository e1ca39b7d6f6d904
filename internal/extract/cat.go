package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/lu4p/cat"
)

// catExtractor handles .odt and .rtf through lu4p/cat. cat picks its parser by file
// extension, so the bytes go through a temp file named with ext.
func catExtractor(ext string) extractFunc {
	return func(content []byte) (string, error) {
		f, err := os.CreateTemp("", "cvsearch-*"+ext)
		if err != nil {
			return "", fmt.Errorf("temp file: %w", err)
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(content); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("temp file: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("temp file: %w", err)
		}
		text, err := cat.File(f.Name())
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return strings.TrimSpace(text), nil
	}
}
