package loader

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sharkbot/internal/logger"
	"sharkbot/internal/signal"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/viper"
)

// weightsSchemaJSON 约束 profile 文件：每条时间框下是 指标名 -> 非负权重。
const weightsSchemaJSON = `{
  "type": "object",
  "properties": {
    "weights_sets": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": {"type": "number", "minimum": 0}
      }
    }
  },
  "required": ["weights_sets"]
}`

// FileConfig 映射 weights_sets。
type FileConfig struct {
	WeightsSets map[string]map[string]float64 `mapstructure:"weights_sets"`
}

// Snapshot 对外暴露的只读权重快照，按时间框索引。
type Snapshot struct {
	Version  int64
	LoadedAt time.Time
	Sets     map[string]signal.WeightTable
}

// ChangeListener 在权重文件变更时被调用。
type ChangeListener func(Snapshot)

// WeightsLoader 负责从 YAML 文件中加载指标权重表，并监听热更新。
// 文件校验失败时保留上一份快照继续运行。
type WeightsLoader struct {
	path   string
	v      *viper.Viper
	schema *jsonschema.Schema

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []ChangeListener
}

// NewWeightsLoader 读取权重文件并开始监听 FS 事件。
func NewWeightsLoader(path string) (*WeightsLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("weights loader requires path")
	}
	schema, err := compileWeightsSchema()
	if err != nil {
		return nil, fmt.Errorf("compile weights schema failed: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read weights config failed: %w", err)
	}
	l := &WeightsLoader{path: path, v: v, schema: schema}
	if err := l.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Errorf("weights reload failed (%s): %v", evt.Name, err)
			return
		}
		l.notify()
	})
	v.WatchConfig()
	return l, nil
}

// Snapshot 返回当前权重快照（深拷贝）。
func (l *WeightsLoader) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSnapshot(l.snapshot)
}

// Table 返回指定时间框的权重表；未配置时返回内置默认。
func (l *WeightsLoader) Table(timeframe string) signal.WeightTable {
	l.mu.RLock()
	defer l.mu.RUnlock()
	key := strings.ToLower(strings.TrimSpace(timeframe))
	if tbl, ok := l.snapshot.Sets[key]; ok {
		return tbl
	}
	return signal.DefaultWeights
}

// Subscribe 注册监听器，并立即收到一次完整快照。
func (l *WeightsLoader) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSnapshot(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("weights listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *WeightsLoader) notify() {
	l.mu.RLock()
	snap := cloneSnapshot(l.snapshot)
	listeners := append([]ChangeListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb ChangeListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("weights listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *WeightsLoader) reload() error {
	var fileCfg FileConfig
	if err := l.v.Unmarshal(&fileCfg); err != nil {
		return fmt.Errorf("parse weights config failed: %w", err)
	}
	if err := l.validateFile(fileCfg); err != nil {
		return err
	}
	sets := make(map[string]signal.WeightTable, len(fileCfg.WeightsSets))
	for tf, raw := range fileCfg.WeightsSets {
		key := strings.ToLower(strings.TrimSpace(tf))
		if key == "" {
			continue
		}
		// 文件里只写需要覆盖的指标，其余沿用默认权重。
		sets[key] = signal.DefaultWeights.Merged(signal.NewWeightTable(rawToTable(raw)))
	}
	l.mu.Lock()
	l.snapshot = Snapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Sets:     sets,
	}
	l.mu.Unlock()
	logger.Infof("Weights loader reloaded %d timeframe sets from %s", len(sets), filepath.Base(l.path))
	return nil
}

func (l *WeightsLoader) validateFile(cfg FileConfig) error {
	if l.schema == nil {
		return nil
	}
	doc := map[string]any{"weights_sets": map[string]any{}}
	setsDoc := doc["weights_sets"].(map[string]any)
	for tf, raw := range cfg.WeightsSets {
		inner := make(map[string]any, len(raw))
		for name, w := range raw {
			inner[name] = w
		}
		setsDoc[tf] = inner
	}
	if err := l.schema.Validate(doc); err != nil {
		return fmt.Errorf("weights config schema violation: %w", err)
	}
	return nil
}

func rawToTable(raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for name, w := range raw {
		out[name] = w
	}
	return out
}

func cloneSnapshot(src Snapshot) Snapshot {
	dst := Snapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Sets:     make(map[string]signal.WeightTable, len(src.Sets)),
	}
	for tf, tbl := range src.Sets {
		dst.Sets[tf] = tbl
	}
	return dst
}

func compileWeightsSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("weights.json", strings.NewReader(weightsSchemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile("weights.json")
}

// TableFromConfig 把主配置内联的 weights_sets 段转成权重表（无热更新）。
func TableFromConfig(raw map[string]float64) signal.WeightTable {
	if len(raw) == 0 {
		return signal.DefaultWeights
	}
	return signal.DefaultWeights.Merged(signal.NewWeightTable(raw))
}
