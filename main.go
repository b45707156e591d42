package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/angelluvianoolivares/SmartTaskManager/api"
	"github.com/angelluvianoolivares/SmartTaskManager/engine"
	"github.com/angelluvianoolivares/SmartTaskManager/notify"
	"github.com/angelluvianoolivares/SmartTaskManager/ocr"
	"github.com/angelluvianoolivares/SmartTaskManager/storage"
	"github.com/angelluvianoolivares/SmartTaskManager/timer"
)

const defaultVisionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.New()

	redisConn := os.Getenv("REDIS_CONNECTION_STRING")
	if redisConn == "" {
		log.Fatal("missing redis config")
	}
	redisOpts, err := redis.ParseURL(redisConn)
	if err != nil {
		parts := strings.Split(redisConn, ",")
		redisOpts = &redis.Options{Addr: parts[0]}
		for _, p := range parts[1:] {
			kv := strings.SplitN(p, "=", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.ToLower(kv[0]) {
			case "password":
				redisOpts.Password = kv[1]
			case "ssl":
				if strings.ToLower(kv[1]) == "true" {
					redisOpts.TLSConfig = &tls.Config{}
				}
			}
		}
	}
	rc := redis.NewClient(redisOpts)

	keys := storage.DefaultKeys()
	if v := os.Getenv("FOLDERS_KEY"); v != "" {
		keys.Folders = v
	}
	if v := os.Getenv("TASKS_KEY"); v != "" {
		keys.Tasks = v
	}
	kv := storage.NewRedisKV(rc)

	notifier := notify.NewLogNotifier(logger)
	var sched *engine.ReminderScheduler
	timers := timer.New(func(key string) {
		sched.HandleFire(context.Background(), key)
	})
	sched = engine.NewReminderScheduler(timers, notifier, logger)
	store := engine.NewTaskStore(kv, keys, sched, logger)
	sched.Bind(store)

	// Persisted tasks whose reminders were lost to a crash or restart get
	// their schedules re-derived before traffic is served.
	if err := store.ReconcileSchedules(context.Background()); err != nil {
		log.Fatalf("reconcile schedules: %v", err)
	}

	visionEndpoint := os.Getenv("VISION_ENDPOINT")
	if visionEndpoint == "" {
		visionEndpoint = defaultVisionEndpoint
	}
	recognizer := ocr.NewVisionClient(visionEndpoint, os.Getenv("VISION_API_KEY"))
	extractor := ocr.NewExtractor(recognizer, logger)

	ttl := 24 * time.Hour
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Fatalf("invalid DEDUPER_TTL: %v", err)
		}
		ttl = d
	}
	deduper := api.NewRedisDeduper(rc, ttl)

	var auth api.Authenticator
	switch {
	case os.Getenv("AUTH_DISABLED") == "1":
		auth = api.AllowAll{}
	case os.Getenv("TEST_JWT_SECRET") != "":
		auth = api.NewTestAuth([]byte(os.Getenv("TEST_JWT_SECRET")))
	default:
		jwtAudience := os.Getenv("JWT_AUDIENCE")
		domainName := os.Getenv("JWT_DOMAIN")
		if jwtAudience == "" || domainName == "" {
			log.Fatal("missing auth config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domainName)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+domainName+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	api.Register(e, store, extractor, auth, deduper, logger)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}
