package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/Wiiplay123/QtNetworkDiskCacheExtractor/internal/version"
)

const (
	appName   = version.Name
	configEnv = "DISKCACHE_EXTRACT_CONFIG"

	// exitInterrupted 与 shell 对 SIGINT 的约定一致。
	exitInterrupted = 130
	exitUsage       = 2
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// exitError 携带退出码，由 run 统一转换，避免在命令内部直接 os.Exit。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func exitf(code int, format string, args ...any) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

// run 解析参数并执行子命令，返回退出码，方便测试。
func run(ctx context.Context, args []string) int {
	app := newApp()
	err := app.RunContext(ctx, append([]string{appName}, args...))
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintln(stdErr, exitErr.err.Error())
		}
		return exitErr.code
	}
	fmt.Fprintln(stdErr, err.Error())
	return 1
}

func newApp() *cli.App {
	return &cli.App{
		Name:           appName,
		Usage:          "从磁盘缓存目录中恢复 *.d 记录里的资源文件",
		HideVersion:    true,
		Writer:         stdOut,
		ErrWriter:      stdErr,
		ExitErrHandler: func(*cli.Context, error) {},
		OnUsageError:   usageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "配置文件路径（默认 ./config.toml，不存在时仅使用默认值）",
				EnvVars: []string{configEnv},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "覆盖配置中的 LogLevel",
			},
		},
		Commands: []*cli.Command{
			listCommand(),
			extractCommand(),
			inspectCommand(),
			catalogCommand(),
			checkConfigCommand(),
			versionCommand(),
		},
	}
}

func usageError(_ *cli.Context, err error, _ bool) error {
	return &exitError{code: exitUsage, err: fmt.Errorf("解析参数失败: %w", err)}
}
