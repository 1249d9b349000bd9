package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DocMeta is one document's recovery metadata: the fields a restarted
// process needs back in memory (doc-id identity and token length for
// ranking) plus the title, which is deliberately NOT kept in memory after a
// flush and is instead re-read from this sidecar on demand by a DiskReader.
type DocMeta struct {
	DocID  uint32 `json:"id"`
	DocKey string `json:"key"`
	Length int    `json:"len"`
	Title  string `json:"title"`
}

// docMetaSuffix is appended to a segment's base name to name its sidecar.
const docMetaSuffix = ".meta.json"

// DocMetaPath returns the sidecar path for the segment at segPath.
func DocMetaPath(segPath string) string {
	return segPath + docMetaSuffix
}

// WriteDocMeta atomically writes the per-document metadata for the segment
// named segmentName inside dataDir, following the same tmp-file-then-rename
// pattern Writer.Write uses for the segment itself.
func WriteDocMeta(dataDir, segmentName string, metas []DocMeta) error {
	finalPath := DocMetaPath(filepath.Join(dataDir, segmentName))
	tmpPath := finalPath + ".tmp"

	data, err := json.Marshal(metas)
	if err != nil {
		return fmt.Errorf("marshaling doc metadata: %w", err)
	}
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing doc metadata temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("renaming doc metadata file: %w", err)
	}
	return nil
}

// ReadDocMeta loads the sidecar written by WriteDocMeta for the segment at
// segPath. A missing sidecar is not an error: older segments predating this
// format simply recover no titles.
func ReadDocMeta(segPath string) ([]DocMeta, error) {
	data, err := os.ReadFile(DocMetaPath(segPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading doc metadata: %w", err)
	}
	var metas []DocMeta
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, fmt.Errorf("parsing doc metadata: %w", err)
	}
	return metas, nil
}
