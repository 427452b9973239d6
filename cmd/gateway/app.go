package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zhihao1021/tjoy/data/database"
	"github.com/zhihao1021/tjoy/data/database/mgo"
	"github.com/zhihao1021/tjoy/global/config"
	"github.com/zhihao1021/tjoy/logger"
	"github.com/zhihao1021/tjoy/middleware"
	"github.com/zhihao1021/tjoy/service/chat"
	"github.com/zhihao1021/tjoy/service/kafka"
	"github.com/zhihao1021/tjoy/service/metrics"
	"github.com/zhihao1021/tjoy/service/nacos"
	"github.com/zhihao1021/tjoy/service/natsx"
	"github.com/zhihao1021/tjoy/service/storage"
	"github.com/zhihao1021/tjoy/service/storage/redis"
	"github.com/zhihao1021/tjoy/service/translate"
	"github.com/zhihao1021/tjoy/tools/ids"
	"github.com/zhihao1021/tjoy/tools/safe"
	"github.com/zhihao1021/tjoy/tools/security"
)

// closers run in reverse order on shutdown
type closers []func(ctx context.Context)

func (cs *closers) add(f func(ctx context.Context)) { *cs = append(*cs, f) }

func (cs closers) run(ctx context.Context) {
	for i := len(cs) - 1; i >= 0; i-- {
		cs[i](ctx)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	var done closers
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		done.run(sctx)
	}()

	if cfg.Nacos.Enabled {
		src, err := remoteConfig(cfg)
		if err != nil {
			return err
		}
		done.add(func(context.Context) { _ = src.Close() })
	}

	// 1. ambient
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	log := logger.Named("gateway")
	if err := ids.SetNodeID(cfg.NodeID); err != nil {
		return err
	}
	log.Info("starting", zap.Int64("node_id", cfg.NodeID), zap.String("store", cfg.Store.Driver))

	// 2. collaborators
	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	done.add(closeStore)

	auth, err := newResolver(cfg.JWT)
	if err != nil {
		return err
	}

	opts := []chat.HubOption{
		chat.WithOptions(cfg.WS),
		chat.WithLogger(logger.Named("chat")),
		chat.WithAuthenticator(auth),
	}
	if cfg.Translate.APIKey != "" {
		opts = append(opts, chat.WithTranslator(translate.NewDeepL(cfg.Translate)))
	} else {
		log.Warn("translation disabled: no api key")
	}

	var nm *natsx.Manager
	if cfg.NATS.Enabled {
		nm, err = natsx.NewManager(cfg.NATS.Config, natsMiddlewares(ctx, cfg.NATS)...)
		if err != nil {
			return err
		}
		done.add(func(context.Context) { _ = nm.Close() })
		if err := cfg.NATS.Events.Routes(nm, cfg.NATS.JetStream); err != nil {
			return err
		}
		opts = append(opts, chat.WithPublishers(natsx.NewMessagePublisher(nm, cfg.NATS.Events, cfg.NodeID)))
	}
	if cfg.Kafka.Enabled {
		kp, err := kafka.NewProducer(cfg.Kafka.Config, cfg.NodeID, logger.Named("kafka"))
		if err != nil {
			return err
		}
		done.add(func(context.Context) { _ = kp.Close() })
		opts = append(opts, chat.WithPublishers(kp))
	}
	if cfg.Redis.Enabled {
		rdb, err := redis.Open(ctx, cfg.Redis.Config)
		if err != nil {
			return err
		}
		done.add(func(context.Context) { _ = rdb.Close() })
		p := storage.NewRedisPresence(rdb, "node-"+strconv.FormatInt(cfg.NodeID, 10), cfg.Redis.PresenceTTL, logger.Named("presence"))
		safe.Go(log, "presence-refresh", func() { p.Run(ctx) })
		opts = append(opts, chat.WithPresence(p))
	}

	// 3. hub
	hub := chat.NewHub(store, opts...)
	done.add(func(ctx context.Context) {
		if err := hub.Close(ctx); err != nil {
			log.Warn("hub close", zap.Error(err))
		}
	})
	if nm != nil {
		// 成员变更由业务服务广播，网关只做失效
		h := natsx.MembershipHandler(logger.Named("membership"), hub.Members().Invalidate)
		if err := nm.Subscribe(natsx.BizMembershipChanged, h); err != nil {
			return err
		}
	}

	// 4. http
	gin.SetMode(cfg.HTTP.Mode)
	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: middleware.NewRouter(hub, middleware.RouteOpt{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Metrics:        metrics.Handler(),
			Log:            logger.Named("http"),
		}),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	// hijacked websocket conns are not tracked by Shutdown, the hub closes them
	done.add(func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
	})

	errc := make(chan error, 1)
	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		return nil
	case err := <-errc:
		return err
	}
}

// remoteConfig overlays the Nacos document on cfg and keeps the log level live.
func remoteConfig(cfg *config.AppConfig) (*nacos.Source, error) {
	src, err := nacos.NewSource(cfg.Nacos, logger.Named("nacos"))
	if err != nil {
		return nil, err
	}
	doc, err := src.Fetch()
	if err != nil {
		return nil, err
	}
	if err := cfg.Overlay([]byte(doc)); err != nil {
		return nil, err
	}
	err = src.Watch(func(data string) {
		lvl, err := config.LogLevelOf([]byte(data))
		if err != nil || lvl == "" {
			return
		}
		if err := logger.SetLevel(lvl); err != nil {
			logger.Warn("nacos log level", zap.String("level", lvl), zap.Error(err))
			return
		}
		logger.Info("log level changed", zap.String("level", lvl))
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func openStore(ctx context.Context, c config.StoreConfig) (chat.Store, func(context.Context), error) {
	switch c.Driver {
	case config.DriverPostgres:
		s, err := database.OpenPg(ctx, c.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) { s.Close() }, nil
	case config.DriverMongo:
		mc := c.Mongo
		s, err := mgo.Open(ctx, &mc)
		if err != nil {
			return nil, nil, err
		}
		return s, func(ctx context.Context) { _ = s.Close(ctx) }, nil
	default:
		s := database.NewMemoryStore()
		for _, sd := range c.Memory.Seed {
			for _, u := range sd.Users {
				if err := s.AddMember(ctx, sd.Conversation, u); err != nil {
					return nil, nil, err
				}
			}
		}
		return s, func(context.Context) {}, nil
	}
}

// natsMiddlewares 订阅侧中间件，目前只有去重
func natsMiddlewares(ctx context.Context, c config.NATSConfig) []natsx.Middleware {
	if c.IdemTTL <= 0 {
		return nil
	}
	return []natsx.Middleware{natsx.IdemMiddleware(natsx.NewMemIdem(ctx, c.IdemTTL), c.IdemTTL)}
}

func newResolver(c config.JWTConfig) (*security.Resolver, error) {
	opts := security.Options{Alg: c.Alg, Leeway: c.Leeway, Secret: []byte(c.Secret)}
	if c.Alg == "ES256" {
		pub, priv, err := security.LoadECKeys(c.PublicKey, c.PrivateKey)
		if err != nil {
			return nil, err
		}
		opts.PublicKey, opts.PrivateKey = pub, priv
	}
	return security.NewResolver(opts)
}
