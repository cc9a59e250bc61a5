package app

import (
	"errors"
	"fmt"
	"strings"
)

// Command はporttfolioバイナリのサブコマンド。
type Command string

const (
	CommandServe       Command = "serve"
	CommandWorker      Command = "worker"
	CommandMigrate     Command = "migrate"
	CommandHealthcheck Command = "healthcheck"
)

// ErrUnknownCommand は未対応のサブコマンドが指定された場合に返される。
var ErrUnknownCommand = errors.New("unknown command")

// commands はサブコマンドと説明の一覧。Usageの表示順を兼ねる。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "serve the web application (default)"},
	{CommandWorker, "delete expired provider sessions periodically"},
	{CommandMigrate, "apply database migrations and report the schema version"},
	{CommandHealthcheck, "check the local /health endpoint (container healthcheck)"},
}

// ParseCommand は先頭の引数をサブコマンドとして解釈する。
// 引数なしはserve。2つ目以降の引数は無視する。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 || args[0] == "" {
		return CommandServe, nil
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("%w %q\n%s", ErrUnknownCommand, args[0], Usage())
}

// Usage はサブコマンド一覧のヘルプ文字列を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: porttfolio [command]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.desc)
	}
	return b.String()
}
