package main

import (
	"go.uber.org/zap"

	"github.com/ArtJustine/scheduler-sub001/config"
	"github.com/ArtJustine/scheduler-sub001/media"
	"github.com/ArtJustine/scheduler-sub001/models"
	"github.com/ArtJustine/scheduler-sub001/oauthflow"
	"github.com/ArtJustine/scheduler-sub001/platforms"
	"github.com/ArtJustine/scheduler-sub001/routes"
	"github.com/ArtJustine/scheduler-sub001/scheduler"
	"github.com/ArtJustine/scheduler-sub001/store"
	"github.com/ArtJustine/scheduler-sub001/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	db, err := config.OpenDatabase(cfg, models.All()...)
	if err != nil {
		utils.Logger.Fatal("database", zap.Error(err))
	}

	rc := utils.InitRedis(cfg)
	if rc == nil {
		utils.Logger.Warn("redis unavailable, oauth state and token revocation are kept in memory")
	}

	registry := platforms.FromConfig(cfg, nil)
	posts := store.NewPostStore(db)
	creds := store.NewCredentialStore(db)
	sweeper := scheduler.New(posts, creds, registry, scheduler.OptionsFromConfig(cfg))

	svc := routes.Services{
		DB:         db,
		Posts:      posts,
		Creds:      creds,
		Workspaces: store.NewWorkspaceStore(db),
		Blacklist:  utils.NewTokenBlacklist(rc),
		Registry:   registry,
		Flow:       oauthflow.New(registry, creds, utils.NewTTLStore(rc, "oauth:state:"), cfg.OAuthRedirectBase),
		Sweeper:    sweeper,
	}
	if cfg.StorageConfigured() {
		svc.Media = media.NewSupabaseStore(cfg.StorageURL, cfg.StorageKey, cfg.StorageBucket)
	}

	var runner *scheduler.Runner
	if cfg.SchedulerSpec != "" {
		if runner, err = scheduler.NewRunner(cfg.SchedulerSpec, sweeper); err != nil {
			utils.Logger.Fatal("invalid SCHEDULER_SPEC", zap.String("spec", cfg.SchedulerSpec), zap.Error(err))
		}
		runner.Start()
		utils.Logger.Info("in-process scheduler started", zap.String("spec", cfg.SchedulerSpec))
	}

	r := routes.SetupRouter(cfg, svc)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err = utils.GraceServer(":"+cfg.AppPort, r)
	if runner != nil {
		runner.Stop()
	}
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
