package httpapi

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultFileName = "plugin-cfg"

// outputFileName validates the optional fileName query value and adds the
// .xml extension when it has none.
func outputFileName(raw string) (string, error) {
	base := strings.TrimSpace(raw)
	if base == "" {
		base = defaultFileName
	}
	if strings.ContainsAny(base, "\r\n\x00") {
		return "", requestError("INVALID_ARGUMENT", "fileName contains control characters", "")
	}
	if strings.Contains(base, "/") || strings.Contains(base, "\\") {
		return "", requestError("INVALID_ARGUMENT", "fileName must not contain path separators", "")
	}
	if len(base) > 200 {
		return "", requestError("INVALID_ARGUMENT", "fileName is too long", "max=200 bytes")
	}
	if !hasExt(base) {
		base += ".xml"
	}
	return base, nil
}

func hasExt(name string) bool {
	i := strings.LastIndexByte(name, '.')
	return i > 0 && i < len(name)-1
}

func contentDispositionAttachment(filename string) string {
	// RFC 6266 + RFC 5987.
	escaped := strings.ReplaceAll(filename, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", escaped, pctEncode(filename))
}

func pctEncode(s string) string {
	// QueryEscape uses '+' for spaces; rewrite to %20.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
