package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/raushankrgupta/fitchy/api"
	"github.com/raushankrgupta/fitchy/cache"
	"github.com/raushankrgupta/fitchy/config"
	"github.com/raushankrgupta/fitchy/detector"
	"github.com/raushankrgupta/fitchy/imagehost"
	"github.com/raushankrgupta/fitchy/links"
	"github.com/raushankrgupta/fitchy/pipeline"
	"github.com/raushankrgupta/fitchy/policy"
	"github.com/raushankrgupta/fitchy/scrapers"
	"github.com/raushankrgupta/fitchy/search"
	"github.com/raushankrgupta/fitchy/session"
	"github.com/raushankrgupta/fitchy/utils"
)

func main() {
	config.LoadConfig()
	ctx := context.Background()

	rules, err := policy.Load(config.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to load policy: %v", err)
	}

	hosts := imagehost.NewChainFromConfig(ctx)
	fmt.Printf("Image hosts: %s\n", strings.Join(hosts.Hosts(), ", "))

	opts := pipeline.Options{
		Policy:         rules,
		Searcher:       search.NewClient(config.SerpAPIKey),
		Uploader:       hosts,
		Enricher:       scrapers.NewRegistry(config.ScraperBrowserFallback),
		ResolveLink:    utils.ResolveShortenedURL,
		DefaultCountry: config.DefaultCountry,
		Affiliate: links.Affiliate{
			TrendyolPartnerID: config.TrendyolPartnerID,
			SkimlinksID:       config.SkimlinksID,
		},
	}
	if config.SerpAPIKey == "" {
		log.Println("SERPAPI_KEY is not set, search endpoints will answer with an error")
	}

	// Detection
	engine, err := detector.NewEngine()
	if err != nil {
		log.Printf("Detector disabled: %v", err)
	} else {
		fmt.Printf("Detector: %s\n", engine.Name())
		opts.Detector = detector.New(engine, rules)
	}

	// Shopping cache, shared through Postgres when configured
	memCache := cache.NewMemory(cache.DefaultTTL, cache.DefaultCapacity)
	opts.Cache = memCache
	if config.DatabaseURL != "" {
		pg, err := cache.OpenPostgres(ctx, config.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pg.Close()
		opts.Cache = cache.NewTiered(memCache, pg)
	}

	// Detect sessions, shared through MongoDB when configured
	if config.MongoURI != "" {
		client, err := utils.ConnectMongo(ctx, config.MongoURI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer client.Disconnect(context.Background())

		store := session.NewMongoStore(utils.SessionCollection(client), session.DefaultMaxAge)
		if err := store.EnsureIndexes(ctx); err != nil {
			log.Printf("Failed to create session indexes: %v", err)
		}
		opts.Sessions = store
	}

	handler := api.NewHandler(pipeline.New(opts))

	// CORS Middleware
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	handler.Register(mux, corsMiddleware)

	server := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           utils.LatencyMiddleware(utils.RecoverMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("Server starting on port %s...\n", config.Port)
	fmt.Printf("Usage: curl -F file=@outfit.jpg -F country=tr \"http://localhost:%s/detect\"\n", config.Port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
