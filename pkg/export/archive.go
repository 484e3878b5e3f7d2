package export

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/yourusername/report-export-app/pkg/model"
)

// BuildArchive packs the successful items of a manifest into a flat ZIP.
// Entry names are the sanitized entity names with a .png extension; when
// two entities sanitize to the same name a numeric suffix keeps the
// entries distinct. Failed items are simply absent.
func BuildArchive(items []model.ExportItem) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	seen := make(map[string]int)
	for _, it := range items {
		if it.Failed() {
			continue
		}
		name := model.SanitizeEntityName(it.EntityID)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		seen[model.SanitizeEntityName(it.EntityID)]++

		w, err := zw.Create(name + ".png")
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create archive entry %s: %w", name, err)
		}
		if _, err := w.Write(it.Bytes); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write archive entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
