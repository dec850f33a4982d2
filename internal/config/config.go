// Package config 负责加载与校验运行配置。支持 include 拆分：被包含的文件先
// 合并，包含者自身最后合并，因此同名键以包含者为准。
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取 path 及其 include 链，解码、补默认值并校验。
func Load(path string) (*Config, error) {
	files, err := expandIncludes(path)
	if err != nil {
		return nil, err
	}

	merged := viper.New()
	merged.SetConfigType("yaml")
	for _, file := range files {
		sub := viper.New()
		sub.SetConfigFile(file)
		if err := sub.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败 (%s): %w", file, err)
		}
		if err := merged.MergeConfigMap(sub.AllSettings()); err != nil {
			return nil, fmt.Errorf("合并配置文件失败 (%s): %w", file, err)
		}
	}

	var cfg Config
	decodeOpt := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}
	if err := merged.Unmarshal(&cfg, decodeOpt); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 记录用户显式写过的键：显式的零值（比如 false）不会被默认值覆盖。
	explicit := make(keySet)
	markExplicitKeys("", merged.AllSettings(), explicit)
	cfg.applyDefaults(explicit)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandIncludes 把入口文件展开成深度优先的合并顺序，入口文件排在最后。
func expandIncludes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := includeWalker{
		done:   make(map[string]bool),
		onPath: make(map[string]bool),
	}
	files, err := w.walk(abs)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		files = []string{abs}
	}
	return files, nil
}

type includeWalker struct {
	done   map[string]bool
	onPath map[string]bool
}

func (w *includeWalker) walk(path string) ([]string, error) {
	path = filepath.Clean(path)
	if w.onPath[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if w.done[path] {
		return nil, nil
	}
	w.onPath[path] = true
	defer delete(w.onPath, path)

	includes, err := readIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("解析 include 失败 (%s): %w", path, err)
	}

	var ordered []string
	base := filepath.Dir(path)
	for _, inc := range includes {
		target := inc
		if !filepath.IsAbs(target) {
			target = filepath.Join(base, target)
		}
		sub, err := w.walk(target)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}

	w.done[path] = true
	return append(ordered, path), nil
}

func readIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		if strs, okStr := raw.([]string); okStr {
			items = make([]any, len(strs))
			for i, s := range strs {
				items[i] = s
			}
		} else {
			return nil, fmt.Errorf("include must be a string array")
		}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// markExplicitKeys 把 viper 的嵌套 settings 压平成 "section.key" 并登记。
// 数组与标量都算显式；空键跳过。
func markExplicitKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			if name := strings.ToLower(strings.TrimSpace(k)); name != "" {
				markExplicitKeys(joinKey(prefix, name), v, dest)
			}
		}
	case map[any]any:
		for k, v := range val {
			str, ok := k.(string)
			if !ok {
				continue
			}
			if name := strings.ToLower(strings.TrimSpace(str)); name != "" {
				markExplicitKeys(joinKey(prefix, name), v, dest)
			}
		}
	case []any:
		if prefix != "" {
			dest.mark(prefix)
		}
		for _, item := range val {
			markExplicitKeys(prefix, item, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
