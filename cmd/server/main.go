// Command transitcat-server exposes the dispatcher over HTTP: POST
// /query accepts a full request document and returns its reply array;
// GET /health reports process and (if CACHE_ENABLED) Redis
// reachability. The database is not checked by /health.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/antigravity/transitcat/internal/cache"
	"github.com/antigravity/transitcat/internal/dispatch"
	"github.com/antigravity/transitcat/internal/ingest"
	"github.com/antigravity/transitcat/internal/jsonval"
)

func main() {
	log.Println("Starting transitcat server...")

	cacheEnabled := getEnv("CACHE_ENABLED", "false") == "true"
	if cacheEnabled {
		if _, err := cache.GetClient(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer cache.Close()
		log.Println("✓ Redis connection established")
	}

	if getEnv("INGEST_ON_BOOT", "false") == "true" {
		runBootIngest()
	}

	app := fiber.New(fiber.Config{
		AppName:      "transitcat",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	app.Get("/health", healthHandler)
	app.Post("/query", queryHandler(cacheEnabled))

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "endpoint not found"})
	})

	port := getEnv("SERVER_PORT", "8080")
	addr := fmt.Sprintf(":%s", port)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down gracefully...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("🚀 Server listening on http://localhost%s", addr)
	log.Printf("❤️  Health check: http://localhost%s/health", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func runBootIngest() {
	connString := getEnv("DATABASE_URL", "")
	if connString == "" {
		log.Println("INGEST_ON_BOOT set but DATABASE_URL is empty, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := ingest.Pool(ctx, connString)
	if err != nil {
		log.Fatalf("Failed to connect to ingestion database: %v", err)
	}
	defer pool.Close()

	var stopCount int
	if err := pool.QueryRow(ctx, "SELECT count(*) FROM stop").Scan(&stopCount); err != nil {
		log.Printf("Warning: ingestion database health check failed: %v", err)
		return
	}

	log.Printf("✓ Ingestion database reachable (%d stops on record)", stopCount)
	log.Println("Boot-time ingestion completed (catalogue is rebuilt per /query call from its own request document; this step only validates connectivity)")
}

func healthHandler(c *fiber.Ctx) error {
	status := fiber.Map{"status": "ok"}

	if getEnv("CACHE_ENABLED", "false") == "true" {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := cache.HealthCheck(ctx); err != nil {
			status["cache"] = "unreachable"
		} else {
			status["cache"] = "ok"
			if stats, err := cache.Stats(ctx); err == nil {
				status["cache_pool"] = fiber.Map{
					"hits":        stats["hits"],
					"misses":      stats["misses"],
					"total_conns": stats["total_conns"],
				}
			}
		}
	}

	return c.JSON(status)
}

func queryHandler(cacheEnabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := c.Body()

		doc, err := jsonval.ParseString(string(body))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("malformed request document: %v", err))
		}

		var replyBytes []byte
		if cacheEnabled {
			replyBytes, err = cachedReply(c.Context(), body, doc)
		} else {
			replyBytes, err = computeReply(doc)
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("dispatch failed: %v", err))
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(replyBytes)
	}
}

func computeReply(doc jsonval.Value) ([]byte, error) {
	reply, err := dispatch.Run(doc)
	if err != nil {
		return nil, err
	}
	return []byte(reply.PrintString()), nil
}

// cachedReply serves body's reply from cache when present. On a miss it
// acquires a distributed lock before dispatching, so that concurrent
// requests for the same document wait for the first one's result
// instead of each paying the full catalogue/render/route cost.
func cachedReply(ctx context.Context, body []byte, doc jsonval.Value) ([]byte, error) {
	key := cache.ReplyKey(body)

	getCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	reply, err := cache.GetReply(getCtx, key)
	cancel()
	if err == nil && reply != nil {
		return reply, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	acquired, err := cache.AcquireLock(lockCtx, key, 5*time.Second)
	cancel()
	if err != nil {
		log.Printf("cache: failed to acquire lock: %v", err)
	} else if !acquired {
		waitCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		waited, err := cache.WaitForReply(waitCtx, key, 3*time.Second)
		cancel()
		if err == nil && waited != nil {
			return waited, nil
		}
		// Whoever held the lock never published a reply; fall through
		// and compute it ourselves rather than waiting forever.
	}
	defer func() {
		if acquired {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := cache.ReleaseLock(releaseCtx, key); err != nil {
				log.Printf("cache: failed to release lock: %v", err)
			}
		}
	}()

	replyBytes, err := computeReply(doc)
	if err != nil {
		return nil, err
	}

	setCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.SetReply(setCtx, key, replyBytes, 10*time.Minute); err != nil {
		log.Printf("cache: failed to store reply: %v", err)
	}

	return replyBytes, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}
