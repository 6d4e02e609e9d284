package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"mask-relay/internal/api"
	"mask-relay/internal/api/router"
	"mask-relay/internal/env"
	"mask-relay/internal/queue"
	"mask-relay/internal/websocket"
)

const (
	apiPrefix       = ""
	shutdownTimeout = 15 * time.Second
	bridgeBuffer    = 256
)

func main() {
	listenAddr := env.GetOrDefault(env.ListenAddr, ":8080")
	allowedOrigins := env.GetList(env.AllowedOrigins)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := websocket.NewHub()

	bridgeDone := make(chan struct{})
	if redisURL := env.Get(env.ChatRedisURL); redisURL != "" {
		client := websocket.NewRedisClient(redisURL, env.Get(env.ChatRedisPass))
		bridge := websocket.NewBridge(client, hub.InstanceID(), bridgeBuffer)
		hub.AttachBridge(bridge)
		go func() {
			defer close(bridgeDone)
			defer client.Close()
			if err := bridge.Run(ctx, hub.Remote); err != nil {
				log.Printf("redis bridge stopped: %v", err)
			}
		}()
		log.Printf("relay %s fanning out through redis at %s", hub.InstanceID(), redisURL)
	} else {
		close(bridgeDone)
	}

	go hub.Run(ctx)

	handler := websocket.NewHandler(hub, websocket.HandlerOptions{
		AllowedOrigins: allowedOrigins,
		SendBuffer:     env.GetInt(env.SendBuffer, 32),
	})

	queueManager := queue.NewRequestQueueManager(
		env.GetInt(env.QueueSize, 10),
		env.GetInt(env.Workers, 10),
	)

	server := api.NewAPIServer(
		api.Config{ListenAddr: listenAddr, AllowedOrigins: allowedOrigins},
		queueManager,
		handler,
		router.UtilsRoutes(apiPrefix),
		router.RelayRoutes(apiPrefix),
	)

	go func() {
		if err := server.Run(); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()

	log.Printf("relay websocket at ws://localhost%s%s/ws", listenAddr, apiPrefix)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"relay": func(ctx context.Context) error {
				if err := server.Shutdown(ctx); err != nil {
					return err
				}
				stop()
				select {
				case <-hub.Done():
				case <-ctx.Done():
					return ctx.Err()
				}
				select {
				case <-bridgeDone:
				case <-ctx.Done():
					return ctx.Err()
				}
				queueManager.Shutdown()
				return nil
			},
		},
	)

	exitCode := <-wait
	log.Printf("relay exited with code: %d", exitCode)
	os.Exit(exitCode)
}
