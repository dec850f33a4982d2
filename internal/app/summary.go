package app

import (
	"fmt"
	"strings"

	sbcfg "sharkbot/internal/config"

	"gopkg.in/yaml.v3"
)

// StartupSummary 是启动时打印的生效配置摘要。
type StartupSummary struct {
	Symbols       []string
	FastInterval  string
	SlowInterval  string
	CycleSeconds  int
	HotReload     bool
	EffectiveYAML string
}

func buildStartupSummary(cfg *sbcfg.Config, hotReload bool) *StartupSummary {
	s := &StartupSummary{
		Symbols:      cfg.Market.Symbols,
		FastInterval: cfg.Market.FastInterval,
		SlowInterval: cfg.Market.SlowInterval,
		CycleSeconds: cfg.App.CycleSeconds,
		HotReload:    hotReload,
	}
	s.EffectiveYAML = renderEffectiveConfig(cfg)
	return s
}

// renderEffectiveConfig 序列化脱敏后的生效配置。
func renderEffectiveConfig(cfg *sbcfg.Config) string {
	redacted := *cfg
	if redacted.Notify.Telegram.BotToken != "" {
		redacted.Notify.Telegram.BotToken = "***"
	}
	if redacted.Notify.Discord.WebhookURL != "" {
		redacted.Notify.Discord.WebhookURL = "***"
	}
	out, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Sprintf("(marshal failed: %v)", err)
	}
	return string(out)
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[监控范围]")
	fmt.Printf("  币种: %s\n", formatList(s.Symbols))
	fmt.Printf("  快周期: %s  慢周期: %s\n", s.FastInterval, s.SlowInterval)
	fmt.Printf("  评估间隔: %ds\n", s.CycleSeconds)
	fmt.Printf("  权重热更新: %v\n", s.HotReload)
	fmt.Println()

	fmt.Println("[生效配置]")
	for _, line := range strings.Split(strings.TrimRight(s.EffectiveYAML, "\n"), "\n") {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
