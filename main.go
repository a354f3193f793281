package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/whyrusleeping/pianojam/config"
	"github.com/whyrusleeping/pianojam/notes"
	"github.com/whyrusleeping/pianojam/osc"
	"github.com/whyrusleeping/pianojam/record"
	"github.com/whyrusleeping/pianojam/relay"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// set with -ldflags "-X main.version=1.2.3 -X main.commit=abcd123 -X main.date=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "console":
		err = runConsoleCmd(os.Args[2:])
	case "play":
		err = runPlay(os.Args[2:])
	case "tone":
		err = runTone(os.Args[2:])
	case "render":
		err = runRender(os.Args[2:])
	case "export-midi":
		err = runExportMidi(os.Args[2:])
	case "relay":
		err = runRelay(os.Args[2:])
	case "midi":
		err = runMidi(os.Args[2:])
	case "init-config":
		err = runInitConfig(os.Args[2:])
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		usage()
	default:
		log.Printf("unknown command: %s", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("pianojam - a playable tone keyboard with recording and playback")
	fmt.Println("")
	fmt.Println("usage:")
	fmt.Println("  pianojam <command> [options]")
	fmt.Println("")
	fmt.Println("commands:")
	fmt.Println("  console      interactive keyboard console")
	fmt.Println("  play         play a recorded CSV take")
	fmt.Println("  tone         sound one note")
	fmt.Println("  render       render a CSV take to WAV")
	fmt.Println("  export-midi  convert a CSV take to a Standard MIDI File")
	fmt.Println("  relay        run a relay hub for playing together")
	fmt.Println("  midi         play from a MIDI controller (build with -tags portmidi)")
	fmt.Println("  init-config  write the default config file")
	fmt.Println("  version      print version information")
	fmt.Println("")
	fmt.Println("examples:")
	fmt.Println("  pianojam console -headless -script session.txt")
	fmt.Println("  pianojam play -file take.csv")
	fmt.Println("  pianojam render -in take.csv -out take.wav -echo 250ms -lowpass 3000")
	fmt.Println("  pianojam relay -addr :5190")
}

func printVersion() {
	fmt.Printf("pianojam %s (commit %s, built %s)\n", version, commit, date)
}

// commonFlags are shared by every command that loads the config.
type commonFlags struct {
	config   *string
	headless *bool
	debug    *bool
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		config:   fs.String("config", "", "config file (default: user config dir)"),
		headless: fs.Bool("headless", false, "play into a silent device instead of the sound card"),
		debug:    fs.Bool("debug", false, "debug logging"),
	}
}

func (cf *commonFlags) load() (*config.Config, *zap.Logger, error) {
	path := *cf.config
	explicit := path != ""
	if !explicit {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicit {
			return nil, nil, err
		}
	}
	if *cf.headless {
		cfg.Headless = true
	}
	if *cf.debug {
		cfg.LogLevel = "debug"
	}

	lg, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, lg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	zc := zap.NewProductionConfig()
	if cfg.LogDev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func startEngine(cf *commonFlags) (*Engine, *zap.Logger, error) {
	cfg, lg, err := cf.load()
	if err != nil {
		return nil, nil, err
	}
	e, err := NewEngine(cfg, openDevice(cfg, lg), lg)
	if err != nil {
		lg.Sync()
		return nil, nil, err
	}
	return e, lg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runConsoleCmd(args []string) error {
	fs := flag.NewFlagSet("console", flag.ExitOnError)
	cf := addCommonFlags(fs)
	script := fs.String("script", "", "run commands from a file instead of prompting")
	connect := fs.String("connect", "", "relay hub to join, overrides relay_url")
	_ = fs.Parse(args)

	e, lg, err := startEngine(cf)
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer e.Close()

	url := e.cfg.RelayURL
	if *connect != "" {
		url = *connect
	}
	if url != "" {
		if err := e.Connect(url); err != nil {
			lg.Warn("could not join relay, playing alone", zap.Error(err))
		}
	}
	if e.cfg.MidiDevice >= 0 {
		if err := e.AttachMidi(e.cfg.MidiDevice); err != nil {
			lg.Warn("no midi controller", zap.Error(err))
		}
	}

	sys := NewSystem()
	registerCommands(sys, e)

	if *script != "" {
		fi, err := os.Open(*script)
		if err != nil {
			return err
		}
		defer fi.Close()
		failed, err := runScript(sys, fi, os.Stdout)
		if err != nil {
			return errors.Wrap(err, "reading script")
		}
		if failed > 0 {
			return errors.Errorf("%d script lines failed", failed)
		}
		return nil
	}

	runConsole(sys, e.table, os.Stdout)
	return nil
}

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	cf := addCommonFlags(fs)
	file := fs.String("file", "", "CSV take to play")
	_ = fs.Parse(args)
	if *file == "" && fs.NArg() > 0 {
		*file = fs.Arg(0)
	}
	if *file == "" {
		return errors.New("play needs -file")
	}

	e, lg, err := startEngine(cf)
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer e.Close()

	n, skipped, err := e.Load(*file)
	if err != nil {
		return err
	}
	lg.Info("playing take", zap.String("file", *file), zap.Int("notes", n), zap.Int("skipped", skipped))
	if err := e.Play(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	select {
	case <-e.sched.Done():
	case <-ctx.Done():
		e.sched.Stop()
	}
	return nil
}

func runTone(args []string) error {
	fs := flag.NewFlagSet("tone", flag.ExitOnError)
	cf := addCommonFlags(fs)
	note := fs.String("note", "A4", "note to sound")
	timbre := fs.String("timbre", "", "timbre, default from config")
	dur := fs.Duration("dur", time.Second, "how long to hold the note")
	_ = fs.Parse(args)

	e, lg, err := startEngine(cf)
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer e.Close()

	t := e.cfg.TimbreValue()
	if *timbre != "" {
		if t, err = osc.ParseTimbre(*timbre); err != nil {
			return err
		}
	}

	k := notes.Key(*note)
	if _, ok := e.table.Frequency(k); !ok {
		return errors.Errorf("unknown note %q", *note)
	}
	if err := e.voices.NoteOn(k, t); err != nil {
		return err
	}
	time.Sleep(*dur)
	e.voices.NoteOff(k)
	// let the fade finish
	time.Sleep(50 * time.Millisecond)
	return nil
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	in := fs.String("in", "", "CSV take")
	out := fs.String("out", "take.wav", "WAV file to write")
	amp := fs.Float64("volume", 0.5, "amplitude of each note")
	echo := fs.Duration("echo", 0, "echo delay, 0 disables")
	decay := fs.Float64("decay", 0.4, "echo decay")
	lowpass := fs.Float64("lowpass", 0, "low-pass cutoff in hz, 0 disables")
	compress := fs.Bool("compress", false, "compress peaks")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.New("render needs -in")
	}

	ivs, skipped, err := record.LoadFile(*in)
	if err != nil {
		return err
	}
	if skipped > 0 {
		fmt.Fprintf(os.Stderr, "skipped %d malformed lines\n", skipped)
	}
	return exportWAV(*out, ivs, notes.Standard(), *amp, effectOpts{
		Echo:     *echo,
		Decay:    *decay,
		LowPass:  *lowpass,
		Compress: *compress,
	})
}

func runExportMidi(args []string) error {
	fs := flag.NewFlagSet("export-midi", flag.ExitOnError)
	in := fs.String("in", "", "CSV take")
	out := fs.String("out", "take.mid", "MIDI file to write")
	_ = fs.Parse(args)
	if *in == "" {
		return errors.New("export-midi needs -in")
	}

	ivs, _, err := record.LoadFile(*in)
	if err != nil {
		return err
	}
	return exportMIDI(*out, ivs)
}

func runRelay(args []string) error {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	cf := addCommonFlags(fs)
	addr := fs.String("addr", "", "listen address, overrides listen_addr")
	_ = fs.Parse(args)

	cfg, lg, err := cf.load()
	if err != nil {
		return err
	}
	defer lg.Sync()
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	hub := relay.NewHub(lg.Named("hub"))
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           hub,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		hub.Close()
		srv.Shutdown(sctx)
	}()

	lg.Info("relay listening", zap.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runMidi(args []string) error {
	fs := flag.NewFlagSet("midi", flag.ExitOnError)
	cf := addCommonFlags(fs)
	device := fs.Int("device", -2, "portmidi input id, -1 for the default, default from config")
	list := fs.Bool("list", false, "list inputs and exit")
	_ = fs.Parse(args)

	if *list {
		devs, err := listMidiDevices()
		if err != nil {
			return err
		}
		for i, d := range devs {
			fmt.Printf("%d: %s\n", i, d)
		}
		return nil
	}

	e, lg, err := startEngine(cf)
	if err != nil {
		return err
	}
	defer lg.Sync()
	defer e.Close()

	id := e.cfg.MidiDevice
	if *device != -2 {
		id = *device
	}
	if err := e.AttachMidi(id); err != nil {
		return err
	}
	if e.cfg.RelayURL != "" {
		if err := e.Connect(e.cfg.RelayURL); err != nil {
			lg.Warn("could not join relay, playing alone", zap.Error(err))
		}
	}

	lg.Info("listening for midi, ctrl-c to quit")
	ctx, cancel := signalContext()
	defer cancel()
	<-ctx.Done()
	return nil
}

func runInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	path := fs.String("config", "", "where to write (default: user config dir)")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(args)

	p := *path
	if p == "" {
		dp, err := config.DefaultPath()
		if err != nil {
			return err
		}
		p = dp
	}
	if _, err := os.Stat(p); err == nil && !*force {
		return errors.Errorf("%s exists, use -force to overwrite", p)
	}
	if err := config.Default().Save(p); err != nil {
		return err
	}
	fmt.Println("wrote", p)
	return nil
}
