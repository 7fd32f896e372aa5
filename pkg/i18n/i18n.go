// Package i18n provides a bilingual (English/Chinese) catalog of log and
// status messages used throughout the engine.
package i18n

import (
	"reflect"
	"sync"
)

// Language selects which message set Get returns.
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds every translatable format string. Fields are exported so
// reflection can look them up by name.
type Messages struct {
	// System
	Starting           string
	ConfigLoaded       string
	ConfigLoadFailed   string
	UsingDataDir       string
	BarStoreInitFailed string
	ShuttingDown       string

	// Session Supervisor
	AccountConnecting   string
	AccountConnected    string
	AccountConnectFail  string
	AccountLockedAuth   string
	AccountLockedMax    string
	AccountProbeSuccess string
	AccountProbeFailed  string
	AccountDead         string

	// Mirror Engine
	MirrorOpened   string
	MirrorClosed   string
	MirrorModified string
	MirrorSkipped  string
	MirrorSendFail string

	// Strategy Runtime
	StrategyStarted      string
	StrategyStopped      string
	StrategyInitFailed   string
	StrategyPanic        string
	StrategyParamFallback string

	// Data Sync Worker
	DataSyncProgress string
	DataSyncDone     string
	DataSyncSkip     string
	DataSyncFailed   string

	// Risk
	RiskBreach string

	// Backtest
	BacktestStart  string
	BacktestReport string
}

var catalogs = map[Language]Messages{
	LangEN: {
		Starting:           "starting mt5copier core",
		ConfigLoaded:       "config loaded, checkInterval=%s",
		ConfigLoadFailed:   "failed to load config: %v",
		UsingDataDir:       "using data directory %s",
		BarStoreInitFailed: "failed to initialize bar store: %v",
		ShuttingDown:       "shutting down",

		AccountConnecting:   "account %s: connecting",
		AccountConnected:    "account %s: connected, ping=%dms",
		AccountConnectFail:  "account %s: connect failed: %v",
		AccountLockedAuth:   "account %s: invalid credentials, locked",
		AccountLockedMax:    "account %s: failure count reached maximum, locked",
		AccountProbeSuccess: "account %s: credential probe succeeded",
		AccountProbeFailed:  "account %s: credential probe failed, locked",
		AccountDead:         "account %s: strategy task died, returning to error",

		MirrorOpened:   "mirror %s: opened %s %s vol=%.2f for master ticket %d",
		MirrorClosed:   "mirror %s: closed follower trade for master ticket %d",
		MirrorModified: "mirror %s: modified sl/tp for master ticket %d",
		MirrorSkipped:  "mirror %s: skipped master ticket %d: %s",
		MirrorSendFail: "mirror %s: order send failed retcode=%d comment=%q",

		StrategyStarted:       "strategy %s started on account %s",
		StrategyStopped:       "strategy %s stopped on account %s",
		StrategyInitFailed:    "strategy %s: on_init failed",
		StrategyPanic:         "strategy %s: on_bar panicked: %v",
		StrategyParamFallback: "strategy %s: parameter %q invalid, using default",

		DataSyncProgress: "已下载 %d/%d",
		DataSyncDone:     "data sync done: %s %s",
		DataSyncSkip:     "data sync: %s %s up to date, skipping",
		DataSyncFailed:   "data sync failed for %s %s: %v",

		RiskBreach: "global risk stop triggered: equity %.2f below threshold %.2f",

		BacktestStart:  "backtest started: %s %s %s -> %s",
		BacktestReport: "backtest finished: trades=%d winRate=%.1f%% finalEquity=%.2f maxDD=%.2f",
	},
	LangZH: {
		Starting:           "mt5copier 核心启动中",
		ConfigLoaded:       "配置已加载，checkInterval=%s",
		ConfigLoadFailed:   "配置加载失败: %v",
		UsingDataDir:       "使用数据目录 %s",
		BarStoreInitFailed: "行情数据库初始化失败: %v",
		ShuttingDown:       "正在关闭",

		AccountConnecting:   "账户 %s: 正在连接",
		AccountConnected:    "账户 %s: 已连接, ping=%dms",
		AccountConnectFail:  "账户 %s: 连接失败: %v",
		AccountLockedAuth:   "账户 %s: 凭证无效，已锁定",
		AccountLockedMax:    "账户 %s: 失败次数达到上限，已锁定",
		AccountProbeSuccess: "账户 %s: 凭证校验成功",
		AccountProbeFailed:  "账户 %s: 凭证校验失败，已锁定",
		AccountDead:         "账户 %s: 策略任务已退出，转为错误状态",

		MirrorOpened:   "跟单 %s: 已开仓 %s %s 手数=%.2f，对应主账户单号 %d",
		MirrorClosed:   "跟单 %s: 已平仓，对应主账户单号 %d",
		MirrorModified: "跟单 %s: 已修改止损止盈，对应主账户单号 %d",
		MirrorSkipped:  "跟单 %s: 跳过主账户单号 %d: %s",
		MirrorSendFail: "跟单 %s: 下单失败 retcode=%d comment=%q",

		StrategyStarted:       "策略 %s 已在账户 %s 启动",
		StrategyStopped:       "策略 %s 已在账户 %s 停止",
		StrategyInitFailed:    "策略 %s: on_init 失败",
		StrategyPanic:         "策略 %s: on_bar 发生异常: %v",
		StrategyParamFallback: "策略 %s: 参数 %q 无效，使用默认值",

		DataSyncProgress: "已下载 %d/%d",
		DataSyncDone:     "数据同步完成: %s %s",
		DataSyncSkip:     "数据同步: %s %s 已是最新，跳过",
		DataSyncFailed:   "数据同步失败 %s %s: %v",

		RiskBreach: "触发全局风控停止: 权益 %.2f 低于阈值 %.2f",

		BacktestStart:  "回测开始: %s %s %s -> %s",
		BacktestReport: "回测结束: 交易次数=%d 胜率=%.1f%% 最终权益=%.2f 最大回撤=%.2f",
	},
}

var (
	mu      sync.RWMutex
	current = LangEN
)

// SetLanguage switches the active language for subsequent Get calls.
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := catalogs[lang]; ok {
		current = lang
	}
}

// Get looks up a format string by field name in the active catalog,
// falling back to English if the key is missing.
func Get(key string) string {
	mu.RLock()
	lang := current
	mu.RUnlock()

	if s := lookup(lang, key); s != "" {
		return s
	}
	return lookup(LangEN, key)
}

func lookup(lang Language, key string) string {
	msgs, ok := catalogs[lang]
	if !ok {
		return ""
	}
	v := reflect.ValueOf(msgs)
	f := v.FieldByName(key)
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}
