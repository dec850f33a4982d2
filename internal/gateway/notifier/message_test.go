package notifier

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	msg := StructuredMessage{
		Icon:  "🟢",
		Title: "开仓 BTC/USDT LONG",
		Sections: []MessageSection{
			{Title: "订单", Lines: []string{"entry=100.00", "size=0.5", "  ", ""}},
			{Title: "风控", Lines: []string{"sl=97.60", "tp=104.80"}},
		},
		Footer:    "trace=abc123",
		Timestamp: time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	out := msg.RenderMarkdown()

	assert.True(t, strings.HasPrefix(out, "🟢 开仓 BTC/USDT LONG"))
	assert.Contains(t, out, "```")
	assert.Contains(t, out, "- entry=100.00")
	assert.Contains(t, out, "风控")
	assert.Contains(t, out, "- tp=104.80")
	assert.Contains(t, out, "trace=abc123")
	assert.Contains(t, out, "时间：2026-03-01 12:30:00 UTC")
	// 空行被过滤。
	assert.NotContains(t, out, "- \n")
}

func TestRenderMarkdownEmptySections(t *testing.T) {
	msg := StructuredMessage{
		Title:    "提示",
		Sections: []MessageSection{{Title: "空", Lines: []string{"", "  "}}},
	}
	out := msg.RenderMarkdown()
	assert.Equal(t, "提示", out)
}

func TestRenderMarkdownEscapesCodeFence(t *testing.T) {
	msg := StructuredMessage{
		Sections: []MessageSection{{Lines: []string{"payload ``` injection"}}},
	}
	out := msg.RenderMarkdown()
	assert.Contains(t, out, "payload ''' injection")
}

func TestRenderMarkdownTruncatesLongBody(t *testing.T) {
	lines := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		lines = append(lines, strings.Repeat("x", 20))
	}
	msg := StructuredMessage{Title: "long", Sections: []MessageSection{{Lines: lines}}}
	out := msg.RenderMarkdown()
	assert.LessOrEqual(t, len(out), maxStructuredMessageLen+3)
	assert.True(t, strings.HasSuffix(out, "..."))
}
