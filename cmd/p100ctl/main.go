// Command p100ctl is an interactive diagnostic console for Steinway
// Lyngdorf P100/P200 processors.
//
// It connects over TCP or serial, drives the processor through the
// control facades, and can tap the raw protocol traffic to the terminal
// or a CBOR capture file.
//
// Usage:
//
//	p100ctl [flags]
//
// Flags:
//
//	-host string     Device address (TCP control port)
//	-port int        TCP port (default 84)
//	-serial string   Serial device path (instead of -host)
//	-baud int        Serial baud rate (default 115200)
//	-config string   YAML configuration file
//	-capture string  Write all protocol traffic to a CBOR capture file
//	-verb int        Initial feedback level 0-2 (default 1)
//	-log-level string  Log level: debug, info, warn, error (default "warn")
//
// Examples:
//
//	# Connect over the network
//	p100ctl -host 192.168.1.50
//
//	# Connect over serial with a capture file
//	p100ctl -serial /dev/ttyUSB0 -capture session.cbor
//
// Interactive commands:
//
//	power on|off|status [z2]   - Zone power control
//	vol <dB> | up [step] | down [step] | status [z2]
//	mute on|off|toggle|status [z2]
//	src                        - List sources
//	src <index|name>           - Select a source
//	src status                 - Show the active source
//	mode                       - List audio modes
//	mode <index|name>|next|prev|status
//	audtype                    - Show the input audio format
//	status                     - Dump the cached device state
//	monitor on|off             - Mirror raw frames to the terminal
//	verb <0-2>                 - Change the feedback level
//	send <text>                - Send a raw command verb
//	quit                       - Exit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"

	"github.com/p100-protocol/p100-go/pkg/device"
	"github.com/p100-protocol/p100-go/pkg/monitor"
	"github.com/p100-protocol/p100-go/pkg/protocol"
)

var (
	flagHost     = flag.String("host", "", "Device address (TCP control port)")
	flagPort     = flag.Int("port", protocol.DefaultTCPPort, "TCP port")
	flagSerial   = flag.String("serial", "", "Serial device path (instead of -host)")
	flagBaud     = flag.Int("baud", protocol.DefaultBaudRate, "Serial baud rate")
	flagConfig   = flag.String("config", "", "YAML configuration file")
	flagCapture  = flag.String("capture", "", "Write protocol traffic to a CBOR capture file")
	flagVerb     = flag.Int("verb", int(protocol.FeedbackStatus), "Initial feedback level 0-2")
	flagLogLevel = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "p100ctl:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(*flagLogLevel),
	}))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "p100> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("create readline: %w", err)
	}
	defer rl.Close()

	// The tap fans out to the terminal and the capture file; the capture
	// path is handled here, not by the session, so it must not open the
	// file a second time.
	capturePath := cfg.CaptureFile
	cfg.CaptureFile = ""

	tap := &consoleTap{w: rl.Stdout()}
	sess, err := device.NewSession(cfg,
		device.WithLogger(logger),
		device.WithMonitor(buildTap(tap, capturePath)),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	endpoint := cfg.Host
	if endpoint == "" {
		endpoint = cfg.SerialPort
	}
	fmt.Fprintf(rl.Stdout(), "Connecting to %s...\n", endpoint)
	if err := sess.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	fmt.Fprintln(rl.Stdout(), "Connected. Type 'help' for commands.")

	c := &console{sess: sess, tap: tap, out: rl.Stdout()}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			return nil
		}
		if err := c.handle(ctx, input); err != nil {
			fmt.Fprintln(rl.Stdout(), "error:", err)
		}
	}
}

// buildConfig merges the config file (if any) with command line flags.
// Flags win.
func buildConfig() (device.Config, error) {
	cfg := device.DefaultConfig()
	if *flagConfig != "" {
		loaded, err := device.LoadConfig(*flagConfig)
		if err != nil {
			return device.Config{}, err
		}
		cfg = loaded
	}

	if *flagHost != "" {
		cfg.Host = *flagHost
		cfg.SerialPort = ""
	}
	if *flagSerial != "" {
		cfg.SerialPort = *flagSerial
		cfg.Host = ""
	}
	if *flagPort != protocol.DefaultTCPPort {
		cfg.Port = *flagPort
	}
	if *flagBaud != protocol.DefaultBaudRate {
		cfg.BaudRate = *flagBaud
	}
	if *flagCapture != "" {
		cfg.CaptureFile = *flagCapture
	}
	cfg.FeedbackLevel = protocol.FeedbackLevel(*flagVerb)

	return cfg, cfg.Validate()
}

// buildTap combines the terminal tap with an optional capture file.
func buildTap(console *consoleTap, capturePath string) monitor.Logger {
	if capturePath == "" {
		return console
	}
	fl, err := monitor.NewFileLogger(capturePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "p100ctl: capture disabled:", err)
		return console
	}
	return monitor.NewMultiLogger(console, fl)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// consoleTap mirrors wire frames to the terminal when enabled.
type consoleTap struct {
	w io.Writer

	mu sync.Mutex
	on bool
}

func (t *consoleTap) setEnabled(on bool) {
	t.mu.Lock()
	t.on = on
	t.mu.Unlock()
}

// Log implements monitor.Logger.
func (t *consoleTap) Log(e monitor.Event) {
	t.mu.Lock()
	on := t.on
	t.mu.Unlock()
	if !on || e.Frame == nil {
		return
	}
	fmt.Fprintf(t.w, "  [%s] %s %s\n", e.Direction, e.Frame.Kind, e.Frame.Payload)
}

// console dispatches interactive commands to the session facades.
type console struct {
	sess *device.Session
	tap  *consoleTap
	out  io.Writer
}

func (c *console) handle(ctx context.Context, input string) error {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "help":
		c.printHelp()
		return nil
	case "power":
		return c.power(ctx, args)
	case "vol":
		return c.volume(ctx, args)
	case "mute":
		return c.mute(ctx, args)
	case "src":
		return c.source(ctx, args)
	case "mode":
		return c.audioMode(ctx, args)
	case "audtype":
		typ, err := c.sess.AudioMode.AudioType(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, typ)
		return nil
	case "status":
		c.printStatus()
		return nil
	case "monitor":
		return c.monitor(args)
	case "verb":
		return c.verb(ctx, args)
	case "send":
		if len(args) == 0 {
			return errors.New("usage: send <text>")
		}
		_, err := c.sess.Submit(ctx, protocol.Command{Text: strings.Join(args, " ")})
		return err
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
}

// zoneOf interprets a trailing zone argument; the default is the main
// zone.
func zoneOf(args []string) (protocol.Zone, []string) {
	if n := len(args); n > 0 {
		switch strings.ToLower(args[n-1]) {
		case "z2", "zone2":
			return protocol.Zone2, args[:n-1]
		case "main":
			return protocol.ZoneMain, args[:n-1]
		}
	}
	return protocol.ZoneMain, args
}

func (c *console) power(ctx context.Context, args []string) error {
	zone, args := zoneOf(args)
	if len(args) == 0 {
		return errors.New("usage: power on|off|status [z2]")
	}
	switch args[0] {
	case "on":
		return c.sess.Power.On(ctx, zone)
	case "off":
		return c.sess.Power.Off(ctx, zone)
	case "status":
		st, err := c.sess.Power.Status(ctx, zone)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s power: %s\n", zone, st)
		return nil
	default:
		return errors.New("usage: power on|off|status [z2]")
	}
}

func (c *console) volume(ctx context.Context, args []string) error {
	zone, args := zoneOf(args)
	if len(args) == 0 {
		return errors.New("usage: vol <dB>|up|down|status [z2]")
	}
	switch args[0] {
	case "up", "down":
		var step float64
		if len(args) > 1 {
			v, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("bad step %q", args[1])
			}
			step = v
		}
		if args[0] == "up" {
			return c.sess.Volume.Up(ctx, zone, step)
		}
		return c.sess.Volume.Down(ctx, zone, step)
	case "status":
		db, err := c.sess.Volume.Get(ctx, zone)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s volume: %.1f dB\n", zone, db)
		return nil
	default:
		db, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad volume %q", args[0])
		}
		return c.sess.Volume.Set(ctx, zone, db)
	}
}

func (c *console) mute(ctx context.Context, args []string) error {
	zone, args := zoneOf(args)
	if len(args) == 0 {
		return errors.New("usage: mute on|off|toggle|status [z2]")
	}
	switch args[0] {
	case "on":
		return c.sess.Volume.Mute(ctx, zone)
	case "off":
		return c.sess.Volume.Unmute(ctx, zone)
	case "toggle":
		return c.sess.Volume.ToggleMute(ctx, zone)
	case "status":
		muted, err := c.sess.Volume.IsMuted(ctx, zone)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s muted: %v\n", zone, muted)
		return nil
	default:
		return errors.New("usage: mute on|off|toggle|status [z2]")
	}
}

func (c *console) source(ctx context.Context, args []string) error {
	if len(args) == 0 {
		list, err := c.sess.Source.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range list {
			fmt.Fprintf(c.out, "  %d: %s\n", s.Index, s.Name)
		}
		return nil
	}
	if args[0] == "status" {
		cur, err := c.sess.Source.Current(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "source %d: %s\n", cur.Index, cur.Name)
		return nil
	}
	if idx, err := strconv.Atoi(args[0]); err == nil {
		return c.sess.Source.Select(ctx, idx)
	}
	return c.sess.Source.SelectByName(ctx, strings.Join(args, " "))
}

func (c *console) audioMode(ctx context.Context, args []string) error {
	if len(args) == 0 {
		list, err := c.sess.AudioMode.List(ctx)
		if err != nil {
			return err
		}
		for _, m := range list {
			fmt.Fprintf(c.out, "  %d: %s\n", m.Index, m.Name)
		}
		return nil
	}
	switch args[0] {
	case "next":
		return c.sess.AudioMode.Next(ctx)
	case "prev":
		return c.sess.AudioMode.Previous(ctx)
	case "status":
		cur, err := c.sess.AudioMode.Current(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "audio mode %d: %s\n", cur.Index, cur.Name)
		return nil
	}
	if idx, err := strconv.Atoi(args[0]); err == nil {
		return c.sess.AudioMode.Select(ctx, idx)
	}
	return c.sess.AudioMode.SelectByName(ctx, strings.Join(args, " "))
}

func (c *console) monitor(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: monitor on|off")
	}
	switch args[0] {
	case "on":
		c.tap.setEnabled(true)
	case "off":
		c.tap.setEnabled(false)
	default:
		return errors.New("usage: monitor on|off")
	}
	return nil
}

func (c *console) verb(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: verb <0-2>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || !protocol.FeedbackLevel(n).Valid() {
		return fmt.Errorf("bad feedback level %q", args[0])
	}
	return c.sess.SetFeedbackLevel(ctx, protocol.FeedbackLevel(n))
}

func (c *console) printStatus() {
	snap := c.sess.Snapshot()
	fmt.Fprintf(c.out, "link:       %s\n", c.sess.ConnectionState())
	fmt.Fprintf(c.out, "main:       power=%s volume=%.1f dB muted=%v\n",
		snap.Main.Power, snap.Main.VolumeDB, snap.Main.Muted)
	fmt.Fprintf(c.out, "zone2:      power=%s volume=%.1f dB muted=%v\n",
		snap.Zone2.Power, snap.Zone2.VolumeDB, snap.Zone2.Muted)
	fmt.Fprintf(c.out, "source:     %d %s\n", snap.SourceIndex, snap.SourceName)
	fmt.Fprintf(c.out, "audio mode: %d %s\n", snap.AudioModeIndex, snap.AudioModeName)
	fmt.Fprintf(c.out, "audio type: %s\n", snap.AudioType)
	if !snap.LastUpdate.IsZero() {
		fmt.Fprintf(c.out, "updated:    %s\n", snap.LastUpdate.Format("15:04:05"))
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  power on|off|status [z2]          zone power
  vol <dB>|up [step]|down [step]|status [z2]
  mute on|off|toggle|status [z2]
  src                               list sources
  src <index|name>                  select source
  src status                        active source
  mode                              list audio modes
  mode <index|name>|next|prev|status
  audtype                           input audio format
  status                            cached device state
  monitor on|off                    mirror raw frames
  verb <0-2>                        feedback level
  send <text>                       raw command verb
  quit
`)
}
