package container

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// mimeTypes covers the resource files shipped with converted articles.
var mimeTypes = map[string]string{
	".html":  "text/html;charset=utf-8",
	".htm":   "text/html;charset=utf-8",
	".css":   "text/css",
	".js":    "application/javascript",
	".json":  "application/json",
	".txt":   "text/plain;charset=utf-8",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".ico":   "image/x-icon",
	".woff":  "application/font-woff",
	".woff2": "font/woff2",
	".ttf":   "application/x-font-ttf",
	".otf":   "application/x-font-opentype",
	".eot":   "application/vnd.ms-fontobject",
}

// MimeType returns the content type for a file name, or "" when the
// extension is unknown.
func MimeType(name string) string {
	return mimeTypes[strings.ToLower(filepath.Ext(name))]
}

// AddDir adds every file under dir with a known content type. Keys are the
// slash separated path relative to dir joined to prefix. When include is
// non-empty only its top level entries are added. It returns the number of
// files added.
func AddDir(w Writer, dir, prefix string, include ...string) (int, error) {
	allowed := make(map[string]struct{}, len(include))
	for _, name := range include {
		allowed[name] = struct{}{}
	}

	added := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if len(allowed) > 0 {
			top, _, _ := strings.Cut(rel, "/")
			if _, ok := allowed[top]; !ok {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			return nil
		}
		contentType := MimeType(p)
		if contentType == "" {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		if err := w.Add(data, contentType, path.Join(prefix, rel)); err != nil {
			return err
		}
		added++
		return nil
	})
	return added, err
}
