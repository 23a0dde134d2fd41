package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/config"
)

func TestInitLoggerDefaultsToConsole(t *testing.T) {
	var console bytes.Buffer
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"}, &console)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != &console {
		t.Fatalf("未指定文件时应输出到 console")
	}

	logger.WithFields(RecordFields("run", "a.d", "https://example.com/", "written")).Info("hello")
	line := console.String()
	if !strings.Contains(line, `"outcome":"written"`) || !strings.Contains(line, `"msg":"hello"`) {
		t.Fatalf("应输出 JSON 结构化日志: %s", line)
	}
}

func TestInitLoggerNilConsoleUsesStderr(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "warn"}, nil)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stderr {
		t.Fatalf("console 为空时应输出到 stderr")
	}
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "loud"}, nil); err == nil {
		t.Fatalf("无效日志级别应返回错误")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 不受目录权限限制")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	var console bytes.Buffer
	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "diskcache-extract.log"),
	}
	logger, err := InitLogger(cfg, &console)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != &console {
		t.Fatalf("fallback 时应退回 console")
	}
	if !strings.Contains(console.String(), "logger_fallback") {
		t.Fatalf("fallback 应记录警告: %s", console.String())
	}
}

func TestInitLoggerCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "diskcache-extract.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg, nil)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}
