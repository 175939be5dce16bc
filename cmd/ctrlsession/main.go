// Command ctrlsession runs the Control Session gateway: it subscribes to the
// dialplan/conference command topics, spawns one Session actor per call, and
// serves an admin console and a Prometheus endpoint alongside it.
//
// Process supervision here is grounded on CallMap.NewCallMap's two
// background goroutines (cmd/b2bua_radius/call_map.go): one select loop over
// signal channels, one periodic maintenance loop — generalized from
// SIGHUP/SIGUSR2/SIGPROF/SIGTERM semantics to this process's own signals, and
// from a manual time.Sleep loop to registry.StartSweep's cron schedule.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dialplan-gateway/ctrlsession/internal/busadapter/redisbus"
	"github.com/dialplan-gateway/ctrlsession/internal/cli"
	"github.com/dialplan-gateway/ctrlsession/internal/config"
	"github.com/dialplan-gateway/ctrlsession/internal/fakes"
	"github.com/dialplan-gateway/ctrlsession/internal/registry"
	"github.com/dialplan-gateway/ctrlsession/internal/session"
	"github.com/dialplan-gateway/ctrlsession/internal/switchadapter/fakeswitch"
)

func main() {
	iniPath := flag.String("config", "", "path to the .ini configuration file")
	dotenvPath := flag.String("dotenv", "", "path to a .env file to seed the process environment")
	logfile := flag.String("logfile", "", "rotate logs to this path instead of stderr")
	flag.Parse()

	log := newLogger(*logfile)

	settings, err := config.Load(*iniPath, *dotenvPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)

	rdb := redis.NewClient(&redis.Options{Addr: settings.RedisAddr})
	bus := redisbus.New(rdb, log.WithField("component", "bus"))

	driver := fakeswitch.New(100 * time.Millisecond)
	channelRegistry := fakes.NewRegistry()

	sessions := registry.New(log.WithField("component", "registry"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	if err := sessions.StartSweep(sweepCtx, settings.RegistrySweepCron, func(_ context.Context, ids []string) {
		log.WithField("active_sessions", len(ids)).Debug("registry sweep")
	}); err != nil {
		log.WithError(err).Fatal("failed to start registry sweep")
	}

	admin, err := cli.Listen(settings.AdminSocket, sessions, log.WithField("component", "cli"))
	if err != nil {
		log.WithError(err).Fatal("failed to start admin console")
	}
	go admin.Run()
	defer admin.Close()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(settings.MetricsAddr, mux); err != nil {
			log.WithError(err).Warn("metrics server exited")
		}
	}()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			log.WithField("active_sessions", sessions.Len()).Info("SIGHUP: dumping registry stats")
		}
	}()

	onCommand := func(raw map[string]interface{}) {
		callID, _ := raw["Call-ID"].(string)
		if callID == "" {
			log.Warn("dropping command with no Call-ID")
			return
		}
		sess, ok := sessions.Lookup(callID)
		if !ok {
			sess = spawnSession(ctx, settings, callID, driver, bus, channelRegistry, sessions, metrics, log)
		}
		sess.Post(session.DialplanCommandEvent{Raw: raw})
	}

	color.Info.Println("ctrlsession started")
	if err := redisbus.Subscribe(ctx, rdb, log, onCommand); err != nil && ctx.Err() == nil {
		log.WithError(err).Error("bus subscription exited")
	}

	log.Info("shutting down: draining active sessions")
	if err := sessions.DrainAll(context.Background(), 10*time.Second); err != nil {
		log.WithError(err).Warn("drain did not complete cleanly")
	}
}

func spawnSession(
	ctx context.Context,
	settings *config.Settings,
	callID string,
	driver *fakeswitch.Driver,
	bus *redisbus.Client,
	channelRegistry *fakes.Registry,
	sessions *registry.Registry,
	metrics *session.Metrics,
	log *logrus.Entry,
) *session.Session {
	sessCtx, cancel := context.WithCancel(ctx)

	sess := session.NewSession(session.Params{
		Node:        settings.Node,
		CallID:      callID,
		FetchID:     callID,
		ControllerQ: "controller",
		ControllerP: "ctrlsession",
		Driver:      driver,
		Bus:         bus,
		Registry:    channelRegistry,
		Config:      settings.SessionConfig(),
		Log:         log,
		Metrics:     metrics,
		OnTerminated: func(id string) {
			driver.Unbind(id)
			sessions.Drop(id)
		},
		OnRenamed: func(oldID, newID string) {
			driver.Unbind(oldID)
			sessions.Rename(oldID, newID)
			if renamed, ok := sessions.Lookup(newID); ok {
				driver.Bind(newID, renamed)
			}
		},
	})

	driver.Bind(callID, sess)
	sessions.Put(callID, sess, cancel)
	go sess.Run(sessCtx)
	return sess
}

func newLogger(path string) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if path != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}
	return logrus.NewEntry(logger)
}
