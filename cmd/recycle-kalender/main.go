package main

import (
	"embed"
	"flag"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/klabast/wb-services/recycle-kalender/internal/app"
	"github.com/klabast/wb-services/recycle-kalender/internal/audit"
	"github.com/klabast/wb-services/recycle-kalender/internal/commands"
	"github.com/klabast/wb-services/recycle-kalender/internal/geo"
	"github.com/klabast/wb-services/recycle-kalender/internal/recycleapp"
	"github.com/klabast/wb-services/recycle-kalender/internal/upstream"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	// Check for subcommands
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		commands.HashPassword(os.Args[2:])
		return
	}

	port := flag.Uint("port", 0, "Port to listen on (overrides SERVER_PORT)")
	envFile := flag.String("env", app.DefaultEnvFile, "Path to the .env file")
	flag.Parse()

	cfg, err := app.LoadConfig(*envFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	store, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN, cfg.Audit.Database)
	if err != nil {
		log.WithError(err).Fatal("Failed to configure audit sink")
	}

	authPath, err := app.AuthFilePath(cfg.AuthFile)
	if err != nil {
		log.WithError(err).Fatal("Failed to locate auth file")
	}
	auth, err := app.LoadAuthenticator(authPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load auth credentials")
	}

	client := upstream.NewClient(upstream.WithTimeout(cfg.Server.UpstreamTimeout))

	var extractorOpts []recycleapp.ExtractorOption
	if cfg.RecycleApp.ScriptPattern != "" {
		extractorOpts = append(extractorOpts, recycleapp.WithScriptPattern(regexp.MustCompile(cfg.RecycleApp.ScriptPattern)))
	}
	if cfg.RecycleApp.SecretPattern != "" {
		extractorOpts = append(extractorOpts, recycleapp.WithSecretPattern(regexp.MustCompile(cfg.RecycleApp.SecretPattern)))
	}

	loc := cfg.Location()
	pipeline := app.NewPipeline(
		geo.NewResolver(client, cfg.Vlaanderen.ApiURL, cfg.Vlaanderen.ApiToken, cfg.PostalRoutes, store),
		recycleapp.NewScriptSecretExtractor(client, cfg.RecycleApp.SiteURL, extractorOpts...),
		recycleapp.NewTokenClient(client, cfg.RecycleApp.TokenURL, cfg.RecycleApp.Consumer),
		recycleapp.NewCollectionClient(client, cfg.RecycleApp.BaseURL, cfg.RecycleApp.Consumer, cfg.RecycleApp.PageSize),
		app.WithLanguage(cfg.Calendar.Language),
		app.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	tmpl := template.Must(template.ParseFS(staticFiles, "static/*.html"))
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.WithError(err).Fatal("Failed to load static files")
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := app.NewRouter(app.NewServer(cfg, pipeline, store, auth), tmpl, assets)

	log.WithFields(log.Fields{
		"routes": cfg.PostalRoutes.String(),
		"audit":  cfg.Audit.Driver,
	}).Infof("Starting Recycle Kalender on http://localhost:%d", cfg.Server.Port)
	log.Panic(router.Run(fmt.Sprintf(":%d", cfg.Server.Port)))
}
