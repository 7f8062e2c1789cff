package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"igate/config"
	"igate/device/aprsis"
	"igate/device/serial"
	"igate/gateway"
	"igate/report"
	"igate/station"
	"igate/ui"
)

const (
	appName    = "igate"
	appVersion = "0.9"
)

type options struct {
	configPath string
	tui        bool
	decode     bool
	echo       bool
	logLevel   string
	listPorts  bool
}

func parseFlags() options {
	var o options
	pflag.StringVar(&o.configPath, "config", "config.toml", "configuration file")
	pflag.BoolVar(&o.tui, "tui", false, "show the live monitor instead of the console log")
	pflag.BoolVarP(&o.decode, "decode", "d", false, "decode MIC-E packets")
	pflag.BoolVarP(&o.echo, "echo", "i", false, "show lines received from APRS-IS")
	pflag.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error")
	pflag.BoolVar(&o.listPorts, "list-ports", false, "list serial ports and exit")
	pflag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	if opts.listPorts {
		ports, err := serial.Ports()
		if err != nil {
			log.Fatal("cannot list serial ports", "err", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	conf, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}
	if pflag.CommandLine.Changed("decode") {
		conf.Gateway.DecodeMicE = opts.decode
	}
	if pflag.CommandLine.Changed("echo") {
		conf.APRSIS.Echo = opts.echo
	}
	if opts.logLevel != "" {
		conf.Report.LogLevel = opts.logLevel
	}

	if err := run(conf, opts.tui); err != nil {
		log.Fatal("igate stopped", "err", err)
	}
}

// newLogger sets up diagnostics. With the monitor on screen they go to
// the log file, or nowhere.
func newLogger(conf config.Config, tui bool) (*log.Logger, io.Closer, error) {
	var w io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	switch {
	case conf.Report.LogFile != "":
		f, err := os.OpenFile(conf.Report.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	case tui:
		w = io.Discard
	}

	logger := log.NewWithOptions(w, log.Options{ReportTimestamp: true, Prefix: appName})
	level, err := log.ParseLevel(conf.Report.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger.SetLevel(level)
	return logger, closer, nil
}

func run(conf config.Config, tui bool) error {
	logger, logCloser, err := newLogger(conf, tui)
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log.SetDefault(logger)

	if err := conf.CheckPasscode(); err != nil {
		logger.Warn("APRS-IS will not verify this login", "err", err)
	}

	lat, lon, err := conf.Position()
	if err != nil {
		return err
	}
	alt, err := conf.Altitude()
	if err != nil {
		return err
	}
	if pos, compressed, err := conf.PositionReport(); err != nil {
		logger.Warn("station position cannot be formatted", "position", pos, "err", err)
	} else {
		logger.Info("station position", "position", pos, "compressed", compressed)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	stations := station.New(time.Now(), reg)
	if conf.Metrics.Listen != "" {
		go serveMetrics(conf.Metrics.Listen, reg, logger)
	}

	var reporter gateway.Reporter
	var events ui.Events
	if tui {
		events = make(ui.Events, 256)
		reporter = events
	} else {
		console, err := report.NewConsole(os.Stdout, conf.Report.TimeFormat)
		if err != nil {
			return err
		}
		reporter = console
	}

	sessionOpts := []aprsis.Option{
		aprsis.WithLogger(logger),
		aprsis.WithProber(aprsis.HTTPProbe{URL: conf.APRSIS.ProbeURL, Timeout: conf.APRSIS.ProbeTimeout.Duration}),
	}
	if conf.APRSIS.Echo {
		sessionOpts = append(sessionOpts, aprsis.WithLineHandler(func(line string) {
			reporter.Report(gateway.Event{Time: time.Now(), Kind: gateway.EventServer, Payload: line})
		}))
	}
	session := aprsis.New(aprsis.Config{
		Host:           conf.APRSIS.Host,
		Port:           conf.APRSIS.Port,
		Callsign:       conf.FullCall(),
		Passcode:       conf.Station.Passcode,
		Software:       appName + " " + appVersion,
		RangeKm:        conf.APRSIS.RangeKm,
		ConnectTimeout: conf.APRSIS.ConnectTimeout.Duration,
		LoginTimeout:   conf.APRSIS.LoginTimeout.Duration,
		RetryDelay:     conf.APRSIS.RetryDelay.Duration,
		ProbeCache:     conf.APRSIS.ProbeCache.Duration,
	}, sessionOpts...)
	if err := session.Connect(ctx); err != nil {
		return err
	}
	defer session.Close()

	port, err := serial.Open(ctx, conf.Serial.Device, conf.Serial.Baud)
	if err != nil {
		return err
	}
	// Closing the port is what unblocks a pending read on shutdown.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	gw := gateway.New(gateway.Config{
		Callsign:     conf.FullCall(),
		Latitude:     lat,
		Longitude:    lon,
		Altitude:     alt,
		BeaconText:   conf.Station.BeaconText,
		BulletinText: conf.Bulletin(),
		BeaconPeriod: conf.Gateway.BeaconPeriod.Duration,
		StatusPeriod: conf.Gateway.StatusPeriod.Duration,
		BeaconDelay:  conf.Gateway.BeaconDelay.Duration,
		DecodeMicE:   conf.Gateway.DecodeMicE,
		ReplyQueries: conf.Gateway.ReplyQueries,
	}, serial.NewLineReader(port), session, stations, reporter, logger)

	logger.Info("gateway running", "call", conf.FullCall(), "serial", conf.Serial.Device)
	go gw.Announce(ctx)

	runErr := make(chan error, 1)
	go func() {
		runErr <- gw.Run(ctx)
		stop()
	}()

	if tui {
		title := fmt.Sprintf("IGate %s", conf.FullCall())
		p := tea.NewProgram(ui.New(title, events, stations, func() string { return session.State().String() }), tea.WithAltScreen())
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			logger.Error("monitor failed", "err", err)
		}
		stop()
	}

	err = <-runErr
	report.WriteSummary(os.Stdout, stations.Snapshot(), stations.Calls(), stations.Started(), time.Now())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}
