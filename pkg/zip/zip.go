// Package zip bundles generated assets into a single archive for download.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
)

type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs the assets into a zip. Assets without a filename or
// data are skipped; colliding filenames get a numeric suffix so every asset
// survives the round trip.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	used := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := strings.TrimSpace(asset.Filename)
		if name == "" || len(asset.Data) == 0 {
			continue
		}
		base := name
		if n := used[base]; n > 0 {
			ext := path.Ext(base)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), n, ext)
		}
		used[base]++
		w, err := zw.Create(name)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
