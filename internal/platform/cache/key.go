package cache

import "github.com/valyala/bytebufferpool"

// Key joins non-empty parts with ':' under prefix, e.g. Key("dashboard", "profile", id).
func Key(prefix string, parts ...string) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if prefix != "" {
		_, _ = buf.WriteString(prefix)
	}
	for _, part := range parts {
		if part == "" {
			continue
		}
		if buf.Len() > 0 {
			_ = buf.WriteByte(':')
		}
		_, _ = buf.WriteString(part)
	}

	return buf.String()
}
