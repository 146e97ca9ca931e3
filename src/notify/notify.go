// Package notify pops a short summary of a finished analysis.
package notify

import (
	"fmt"
	"strings"

	"cad-lingo/src/analysis"
	"cad-lingo/src/render"
)

const maxMessageRunes = 200

// Show displays a non-blocking notification.
func Show(title, message string) {
	go func() {
		if err := show(title, truncate(message), false); err != nil {
			logFallback(title, message, err)
		}
	}()
}

// ShowBlocking displays a notification and waits for it to be dismissed.
// It is meant for fatal startup errors.
func ShowBlocking(title, message string) {
	if err := show(title, message, true); err != nil {
		logFallback(title, message, err)
	}
}

// Summary builds the notification for a successful analysis.
func Summary(results []analysis.Result) (string, string) {
	if len(results) == 0 {
		return "KẾT QUẢ DỊCH THUẬT", "Chưa có dữ liệu phân tích"
	}
	matches := 0
	for _, r := range results {
		if r.IsDictionaryMatch {
			matches++
		}
	}
	title := fmt.Sprintf("KẾT QUẢ DỊCH THUẬT: Tìm thấy %d mục", len(results))
	if matches > 0 {
		title += fmt.Sprintf(" (%d từ điển)", matches)
	}
	return title, render.Text(results)
}

// Failure builds the notification for a failed analysis.
func Failure(err error) (string, string) {
	msg := "Vui lòng kiểm tra API Key hoặc kết nối mạng và thử lại."
	if err != nil {
		msg = err.Error() + "\n\n" + msg
	}
	return "LỖI PHÂN TÍCH", msg
}

func truncate(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= maxMessageRunes {
		return string(r)
	}
	return string(r[:maxMessageRunes]) + "..."
}
