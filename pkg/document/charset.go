package document

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode converts data from charset to UTF-8. Charset names follow the
// WHATWG encoding labels ("shift_jis", "euc-jp", "windows-1252"). An empty
// charset means UTF-8. A leading UTF-8 byte order mark is removed.
func Decode(data []byte, charset string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return bytes.TrimPrefix(data, utf8BOM), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", charset, err)
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", charset, err)
	}
	return bytes.TrimPrefix(out, utf8BOM), nil
}
