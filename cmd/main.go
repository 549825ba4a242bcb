package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bugsnag/panicwrap"
	"github.com/deskhive/api/data/events"
	"github.com/deskhive/api/data/mutate"
	"github.com/deskhive/api/data/query"
	"github.com/deskhive/api/internal/api/realtime"
	"github.com/deskhive/api/internal/configure"
	"github.com/deskhive/api/internal/global"
	"github.com/deskhive/api/internal/health"
	"github.com/deskhive/api/internal/monitoring"
	"github.com/deskhive/api/internal/pprof"
	"github.com/deskhive/api/internal/svc/auth"
	"github.com/deskhive/api/internal/svc/calls"
	"github.com/deskhive/api/internal/svc/chat"
	"github.com/deskhive/api/internal/svc/guard"
	"github.com/deskhive/api/internal/svc/mongo"
	"github.com/deskhive/api/internal/svc/notifier"
	"github.com/deskhive/api/internal/svc/presence"
	"github.com/deskhive/api/internal/svc/prometheus"
	"github.com/deskhive/api/internal/svc/redis"
	"go.uber.org/zap"
)

var (
	Version = "development"
	Unix    = ""
	Time    = "unknown"
	User    = "unknown"
)

func init() {
	debug.SetGCPercent(2000)
	if i, err := strconv.Atoi(Unix); err == nil {
		Time = time.Unix(int64(i), 0).Format(time.RFC3339)
	}
}

func main() {
	config := configure.New()

	exitStatus, err := panicwrap.BasicWrap(func(s string) {
		zap.S().Errorw("panic detected",
			"panic", s,
		)
	})
	if err != nil {
		zap.S().Errorw("failed to setup panic handler",
			"error", err,
		)
		os.Exit(2)
	}

	if exitStatus >= 0 {
		os.Exit(exitStatus)
	}

	if !config.NoHeader {
		zap.S().Info("DeskHive Realtime Gateway")
		zap.S().Infof("Version: %s", Version)
		zap.S().Infof("build.Time: %s", Time)
		zap.S().Infof("build.User: %s", User)
	}

	zap.S().Debugf("MaxProcs: %d", runtime.GOMAXPROCS(0))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	gCtx, cancel := global.WithCancel(global.New(context.Background(), config))

	{
		gCtx.Inst().Redis, err = redis.New(gCtx, redis.Options{
			Username:   config.Redis.Username,
			Password:   config.Redis.Password,
			Database:   config.Redis.Database,
			Sentinel:   config.Redis.Sentinel,
			Addresses:  config.Redis.Addresses,
			MasterName: config.Redis.MasterName,
		})
		if err != nil {
			zap.S().Fatalw("failed to setup redis handler",
				"error", err,
			)
		}
	}

	{
		gCtx.Inst().Mongo, err = mongo.New(gCtx, mongo.Options{
			URI:    config.Mongo.URI,
			DB:     config.Mongo.DB,
			Direct: config.Mongo.Direct,
		})
		if err != nil {
			zap.S().Fatalw("failed to setup mongo handler",
				"error", err,
			)
		}
	}

	{
		gCtx.Inst().Notifier, err = notifier.New(gCtx, notifier.Options{
			URI:           config.Nats.URI,
			SubjectPrefix: config.Nats.SubjectPrefix,
		})
		if err != nil {
			zap.S().Fatalw("failed to setup nats handler",
				"error", err,
			)
		}
	}

	{
		gCtx.Inst().Prometheus = prometheus.New(prometheus.Options{
			Labels: config.Monitoring.Labels.ToMap(),
		})
	}

	{
		gCtx.Inst().Events = events.NewPublisher(gCtx.Inst().Redis)
		gCtx.Inst().Query = query.New(gCtx.Inst().Mongo, gCtx.Inst().Redis)
		gCtx.Inst().Mutate = mutate.New(mutate.InstanceOptions{
			Mongo: gCtx.Inst().Mongo,
			Redis: gCtx.Inst().Redis,
			Query: gCtx.Inst().Query,
		})
	}

	{
		rt := config.Realtime

		gCtx.Inst().Auth = auth.New(auth.AuthorizerOptions{
			JWTSecret: config.Credentials.JWTSecret,
		})

		gCtx.Inst().Guard = guard.New(guard.Options{
			CallRateLimit:     rt.CallRateLimit,
			CallRateWindow:    time.Duration(rt.CallRateWindowSeconds) * time.Second,
			TypingMinInterval: time.Duration(rt.TypingIntervalMs) * time.Millisecond,
		})

		gCtx.Inst().Presence = presence.New(gCtx.Inst().Redis, gCtx.Inst().Events, presence.Options{
			OnlineTTL:  time.Duration(rt.PresenceOnlineTTLSeconds) * time.Second,
			OfflineTTL: time.Duration(rt.PresenceOfflineTTLSeconds) * time.Second,
		})

		gCtx.Inst().Chat = chat.New(chat.Options{
			Store:           gCtx.Inst().Mutate,
			Profiles:        gCtx.Inst().Query,
			Redis:           gCtx.Inst().Redis,
			Events:          gCtx.Inst().Events,
			Notifier:        gCtx.Inst().Notifier,
			Guard:           gCtx.Inst().Guard,
			PayloadMaxBytes: rt.PayloadMaxBytes,
			ActiveConvTTL:   time.Duration(rt.ActiveConversationTTLSeconds) * time.Second,
		})

		gCtx.Inst().Calls = calls.New(calls.Options{
			Store:                 gCtx.Inst().Mutate,
			Dir:                   gCtx.Inst().Query,
			Redis:                 gCtx.Inst().Redis,
			Events:                gCtx.Inst().Events,
			Notifier:              gCtx.Inst().Notifier,
			Guard:                 gCtx.Inst().Guard,
			SignalPayloadMaxBytes: rt.SignalPayloadMaxBytes,
			SDPTTL:                time.Duration(rt.SDPTTLSeconds) * time.Second,
			ICETTL:                time.Duration(rt.ICETTLSeconds) * time.Second,
		})
	}

	wg := sync.WaitGroup{}

	if gCtx.Config().Health.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-health.New(gCtx)
		}()
	}
	if gCtx.Config().Monitoring.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-monitoring.New(gCtx)
		}()
	}
	if gCtx.Config().PProf.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-pprof.New(gCtx)
		}()
	}

	done := make(chan struct{})
	go func() {
		<-sig
		cancel()
		go func() {
			select {
			case <-time.After(time.Minute):
			case <-sig:
			}
			zap.S().Fatal("force shutdown")
		}()

		zap.S().Info("shutting down")

		wg.Wait()

		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := realtime.New(gCtx); err != nil {
			zap.S().Fatalw("gateway failed",
				"error", err,
			)
		}
	}()

	zap.S().Info("running")

	<-done

	zap.S().Info("shutdown")
	os.Exit(0)
}
