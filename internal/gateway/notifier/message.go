package notifier

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Telegram 对单条消息有约 4096 字节的硬限制，留出余量给推送端续写。
const maxStructuredMessageLen = 3800

// MessageSection 表示通知中的一个段落。
type MessageSection struct {
	Title string
	Lines []string
}

// StructuredMessage 描述统一格式的交易事件推送：头部 图标+标题，中间若干
// 代码块段落，尾部 footer 与时间戳。
type StructuredMessage struct {
	Icon      string
	Title     string
	Sections  []MessageSection
	Footer    string
	Timestamp time.Time
}

// RenderMarkdown 生成 Markdown 文本。空行被剔除，超长消息按字符边界截断。
func (m StructuredMessage) RenderMarkdown() string {
	var b strings.Builder

	if header := strings.TrimSpace(m.Icon + " " + m.Title); header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}

	sections := m.cleanedSections()
	if len(sections) > 0 {
		b.WriteString("```\n")
		for idx, sec := range sections {
			if sec.Title != "" {
				b.WriteString(sec.Title)
				b.WriteString("\n")
			}
			for _, line := range sec.Lines {
				b.WriteString("- ")
				b.WriteString(line)
				b.WriteString("\n")
			}
			if idx != len(sections)-1 {
				b.WriteString("\n")
			}
		}
		b.WriteString("```\n\n")
	}

	if footer := strings.TrimSpace(m.Footer); footer != "" {
		b.WriteString(escapeFence(footer))
		b.WriteString("\n")
	}
	if !m.Timestamp.IsZero() {
		b.WriteString("时间：" + m.Timestamp.Format("2006-01-02 15:04:05 MST"))
	}

	return truncateRunes(strings.TrimSpace(b.String()), maxStructuredMessageLen)
}

// cleanedSections 去掉空行与整段为空的段落，并转义会破坏代码块的围栏。
func (m StructuredMessage) cleanedSections() []MessageSection {
	out := make([]MessageSection, 0, len(m.Sections))
	for _, sec := range m.Sections {
		lines := make([]string, 0, len(sec.Lines))
		for _, line := range sec.Lines {
			if text := strings.TrimSpace(line); text != "" {
				lines = append(lines, escapeFence(text))
			}
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, MessageSection{
			Title: escapeFence(strings.TrimSpace(sec.Title)),
			Lines: lines,
		})
	}
	return out
}

func escapeFence(s string) string {
	return strings.ReplaceAll(s, "```", "'''")
}

// truncateRunes 按字节上限截断，但不会切到半个字符中间。
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}
