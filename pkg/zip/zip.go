// Package zip bundles generated artifacts into a single downloadable archive.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

type Entry struct {
	Filename string
	Data     []byte
}

// Archive writes the entries into a zip archive. Entries that fail to encode
// are skipped rather than aborting the whole bundle.
func Archive(entries []Entry) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for i, entry := range entries {
		name := entry.Filename
		if name == "" {
			name = fmt.Sprintf("asset-%d", i+1)
		}
		w, err := zw.Create(name)
		if err != nil {
			continue
		}
		if _, err := w.Write(entry.Data); err != nil {
			continue
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
