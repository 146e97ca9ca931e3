package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"cad-lingo/src/analysis"
)

func TestSummary(t *testing.T) {
	title, msg := Summary(nil)
	assert.Equal(t, "KẾT QUẢ DỊCH THUẬT", title)
	assert.Equal(t, "Chưa có dữ liệu phân tích", msg)

	title, msg = Summary([]analysis.Result{
		{Original: "Pier", Translated: "Trụ cầu", IsDictionaryMatch: true},
		{Original: "Layer", Translated: "Lớp"},
	})
	assert.Equal(t, "KẾT QUẢ DỊCH THUẬT: Tìm thấy 2 mục (1 từ điển)", title)
	assert.Contains(t, msg, "VI: Trụ cầu")
}

func TestFailure(t *testing.T) {
	title, msg := Failure(errors.New("HTTP 401"))
	assert.Equal(t, "LỖI PHÂN TÍCH", title)
	assert.True(t, strings.HasPrefix(msg, "HTTP 401\n\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ngắn", truncate("  ngắn "))

	long := strings.Repeat("ệ", maxMessageRunes+5)
	got := truncate(long)
	assert.Equal(t, maxMessageRunes+3, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
