package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HighK/chatrelay/global"
	"github.com/HighK/chatrelay/logger"
	"github.com/HighK/chatrelay/middleware"
	"github.com/HighK/chatrelay/module/chat/store"
	"github.com/HighK/chatrelay/service/chat"
	"github.com/HighK/chatrelay/service/mgo"
	"github.com/HighK/chatrelay/service/pgsql"
	"github.com/HighK/chatrelay/service/storage"
	rds "github.com/HighK/chatrelay/service/storage/redis"
	"github.com/HighK/chatrelay/tools/ids"
)

func main() {
	cfg, err := global.LoadConfig()
	if err != nil {
		logger.Errorf("load config: %v", err)
		return
	}
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Relational store is always required: cursors, summaries, profiles.
	if err := pgsql.InitPool(ctx, cfg.PostgresURL); err != nil {
		logger.Errorf("postgres init: %v", err)
		return
	}
	defer pgsql.ClosePool()
	rooms := store.NewRoomStore(pgsql.GetPool())

	// Document store only matters on the durable path.
	var msgs chat.MessageStore
	if cfg.DurableStore {
		err := mgo.Connect(ctx, &mgo.Config{
			Uri:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Username: cfg.MongoUser,
			Password: cfg.MongoPassword,
		})
		if err != nil {
			logger.Errorf("mongo connect: %v", err)
			return
		}
		defer func() { _ = mgo.Close(context.Background()) }()

		ms := store.NewMessageStore(mgo.GetDB())
		if err := ms.EnsureIndexes(ctx); err != nil {
			logger.Warnf("mongo indexes: %v", err)
		}
		msgs = ms
	} else {
		logger.Warn("durable storage disabled, messages get wall-clock ids")
	}

	// Presence is optional; without redis it degrades to a no-op.
	if cfg.RedisAddr != "" {
		if err := rds.InitRedis(rds.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}); err != nil {
			logger.Warnf("redis init: %v", err)
		}
	}
	presence := storage.NewPresence(rds.GetRedis(), 5*time.Minute)

	srv := chat.NewServer(cfg, msgs, rooms, presence)
	srv.Run(ctx)

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Origin(cfg.AllowedOrigins))
	r.GET("/chat", srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shCtx)
	}()

	logger.Infof("[http] listening on %s", cfg.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("http server: %v", err)
	}
	_ = rds.CloseRedis()
}
