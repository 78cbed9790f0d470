package converter

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// ContentType returns the container content type of articles written in
// the given encoding.
func ContentType(encodingName string) string {
	return "text/html;charset=" + encodingName
}

// encode converts s to the named encoding. Characters the encoding cannot
// represent are written as numeric character references.
func encode(s, name string) ([]byte, error) {
	if name == "" {
		return []byte(s), nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if canonical, _ := htmlindex.Name(enc); canonical == "utf-8" {
		return []byte(s), nil
	}
	out, err := encoding.HTMLEscapeUnsupported(enc.NewEncoder()).String(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode as %s: %w", name, err)
	}
	return []byte(out), nil
}
