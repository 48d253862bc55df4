package api

import (
	"io"
	"strings"

	"walrus-agent/internal/chat"
)

// writeEvent 写出一个 SSE 事件，多行内容拆分为多个 data 行。
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(event)
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(chat.NormalizeNewlines(data), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
