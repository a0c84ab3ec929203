package main

import (
	"log"
	"path/filepath"

	"wcl_check/cache"
	"wcl_check/config"
	"wcl_check/wcl"

	"github.com/dpapathanasiou/go-recaptcha"
	"github.com/gin-gonic/gin"
)

var (
	cfg         *config.Config
	svcProvider *wcl.Provider
	csResults   *cache.Storage
)

func main() {
	var err error
	cfg, err = config.Load("config.yml")
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	if cfg.RecaptchaSecret != "" {
		recaptcha.Init(cfg.RecaptchaSecret)
	}

	eventsDir := filepath.Join(cfg.CacheDir, "events")
	cache.CleanUp(eventsDir, wcl.QueryFS)

	client := wcl.NewClient(cfg.ClientID, cfg.ClientSecret, cfg.APIConcurrency)
	svcProvider = wcl.NewProvider(client, cache.NewStorage(eventsDir, 0))
	csResults = cache.NewStorage(filepath.Join(cfg.CacheDir, "results"), cfg.ResultCacheTTL)

	go queueWorker()

	g := gin.New()
	g.Use(gin.Recovery())

	route(g)

	g.Run(cfg.BindAddr)
}
