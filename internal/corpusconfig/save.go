package corpusconfig

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
)

// Save writes cfg's serializable fields to path as indented JSON,
// replacing any existing file atomically. Used by `corpusctl
// print-config --save` to snapshot the resolved configuration as a
// project config file.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("corpusconfig: marshal: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(string(data)+"\n")); err != nil {
		return fmt.Errorf("corpusconfig: save %q: %w", path, err)
	}

	return nil
}
