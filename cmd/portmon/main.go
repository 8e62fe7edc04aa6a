package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/portdeck/serial"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	logDir := flag.String("logdir", "", "traffic log directory (overrides config)")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	cfg, err := serial.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}

	logger := newLogger(cfg.LogDir, *verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := serial.NewRegistry(cfg, logger)
	defer reg.Shutdown()

	go reg.RunDiscovery(ctx, cfg.DiscoveryInterval.Get())

	// Stdin commands are funneled through a channel so the registry is
	// only ever touched from the tick goroutine.
	commands := make(chan string, 16)
	go readCommands(commands)

	fmt.Fprintln(os.Stderr, "portmon: type 'help' for commands, Ctrl+D or Ctrl+C to exit")

	ticker := time.NewTicker(cfg.TickInterval.Get())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-commands:
			if !ok {
				return
			}
			runCommand(reg, line)
		case <-ticker.C:
			reg.Tick()
			printEvents(reg)
		}
	}
}

// newLogger writes human-readable output to stderr and the full stream
// to a rotated file under the log directory.
func newLogger(dir string, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "portmon.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	return zerolog.New(io.MultiWriter(console, file)).
		Level(level).
		With().Timestamp().Logger()
}

func readCommands(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			out <- line
		}
	}
}

// printEvents drains each session's buffered events and renders them
// with the session's scheme.
func printEvents(reg *serial.Registry) {
	for _, info := range reg.Sessions() {
		for _, e := range reg.DrainEvents(info.Name) {
			switch ev := e.(type) {
			case serial.StateEvent:
				fmt.Printf("[%s] state: %s\n", info.Name, ev.State)
			case serial.DataEvent:
				fmt.Printf("[%s] %s\n", info.Name, serial.Decode(ev.Data, reg.Scheme(info.Name)))
			case serial.ErrorEvent:
				fmt.Printf("[%s] error: %s\n", info.Name, ev.Data)
			}
		}
	}
}

func runCommand(reg *serial.Registry, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		fmt.Fprint(os.Stderr, `commands:
  ports                     list discovered ports and states
  open <port> [baud]        open a port (default 115200 8N1)
  close <port>              close a port
  send <port> <text...>     queue text for sending
  scheme <port> <scheme>    set encoding (utf-8, hex, binary, ascii, utf-16, utf-32, gbk)
  linefeed <port> <on|off>  toggle trailing line feed on sends
  clear <port>              clear an errored port
  history <port>            show sent command history
  stats <port>              show session counters
`)

	case "ports":
		sessions := reg.Sessions()
		if len(sessions) == 0 {
			fmt.Println("no ports discovered")
			return
		}
		for _, info := range sessions {
			fmt.Printf("%-20s %s\n", info.Name, info.State)
		}

	case "open":
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr, "usage: open <port> [baud]")
			return
		}
		settings := serial.DefaultSettings(args[0])
		if len(args) > 1 {
			var baud int
			if _, err := fmt.Sscanf(args[1], "%d", &baud); err != nil {
				fmt.Fprintf(os.Stderr, "bad baud rate %q\n", args[1])
				return
			}
			settings.BaudRate = serial.BaudRate(baud)
		}
		report(reg.RequestOpen(args[0], settings))

	case "close":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: close <port>")
			return
		}
		report(reg.RequestClose(args[0]))

	case "send":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: send <port> <text...>")
			return
		}
		report(reg.QueueSend(args[0], strings.Join(args[1:], " ")))

	case "scheme":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: scheme <port> <scheme>")
			return
		}
		scheme, err := serial.ParseScheme(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		report(reg.SetScheme(args[0], scheme))

	case "linefeed":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: linefeed <port> <on|off>")
			return
		}
		report(reg.SetLineFeed(args[0], args[1] == "on"))

	case "clear":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: clear <port>")
			return
		}
		report(reg.ClearError(args[0]))

	case "history":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: history <port>")
			return
		}
		for i, entry := range reg.History(args[0]) {
			fmt.Printf("%3d  %s\n", i+1, entry)
		}

	case "stats":
		if len(args) != 1 {
			fmt.Fprintln(os.Stderr, "usage: stats <port>")
			return
		}
		snap, err := reg.Metrics(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		fmt.Printf("reads=%d bytes_read=%d writes=%d bytes_written=%d read_errors=%d write_errors=%d dropped=%d\n",
			snap.Reads, snap.BytesRead, snap.Writes, snap.BytesWritten,
			snap.ReadErrors, snap.WriteErrors, snap.DroppedMessages)
		if path := reg.TrafficLogPath(args[0]); path != "" {
			fmt.Printf("traffic log: %s\n", path)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q, try 'help'\n", cmd)
	}
}

func report(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
