package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/manicko/mko-birth-reminder-bot/internal/app"
	"github.com/manicko/mko-birth-reminder-bot/internal/config"
	"github.com/manicko/mko-birth-reminder-bot/internal/logger"
)

const usage = `Usage: bot [-home DIR] [command]

Commands:
  run             start the bot (default)
  init-db         create the database and apply migrations
  export-config   write config.yaml and secrets.yaml into the settings directory
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	fs.Usage = func() { _, _ = fmt.Fprint(os.Stderr, usage) }
	home := fs.String("home", "", "settings directory (default: $BIRTHDAY_BOT_HOME or the user config dir)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cmd, rest := "run", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "export-config":
		return exportConfig(*home, rest)
	case "init-db", "run":
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	cfg, err := config.Load(*home)
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		return 2
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		return 2
	}
	// Ensure logger flush; ignore sync error (common on some platforms).
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	if cmd == "init-db" {
		if err := app.InitDB(ctx, cfg, log); err != nil {
			log.Error("init db failed", zap.Error(err))
			return 1
		}
		return 0
	}

	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return 1
	}
	if err := application.Run(ctx); err != nil {
		log.Error("app run failed", zap.Error(err))
		return 1
	}
	return 0
}

func exportConfig(home string, args []string) int {
	fs := flag.NewFlagSet("export-config", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite existing files without asking")
	dest := fs.String("dest", "", "target directory (default: the settings directory)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := *dest
	if dir == "" {
		dir = home
	}
	if dir == "" {
		dir = os.Getenv("BIRTHDAY_BOT_HOME")
	}
	if dir == "" {
		var err error
		if dir, err = config.DefaultHome(); err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	in := bufio.NewReader(os.Stdin)
	confirm := func(path string) bool {
		_, _ = fmt.Fprintf(os.Stdout, "%s exists. Overwrite? [y/N] ", path)
		line, _ := in.ReadString('\n')
		return strings.EqualFold(strings.TrimSpace(line), "y")
	}

	written, err := config.ExportDefaults(dir, *force, confirm)
	for _, p := range written {
		_, _ = fmt.Fprintln(os.Stdout, "written:", p)
	}
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "export-config:", err)
		return 1
	}
	return 0
}
