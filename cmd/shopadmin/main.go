package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talkincode/shopadmin/config"
	"github.com/talkincode/shopadmin/internal/adminapi"
	"github.com/talkincode/shopadmin/internal/app"
	"github.com/talkincode/shopadmin/internal/webserver"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to the YAML config file",
	Value:   "/etc/shopadmin.yml",
	EnvVars: []string{"SHOPADMIN_CONFIG"},
}

func main() {
	cliApp := &cli.App{
		Name:  "shopadmin",
		Usage: "digital product catalog admin server",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the admin HTTP server and background jobs",
				Action: serve,
			},
			{
				Name:  "initdb",
				Usage: "create the database schema",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "drop", Usage: "drop all tables first"},
				},
				Action: initDB,
			},
			{
				Name:   "reconcile",
				Usage:  "retry queued asset removals and sweep unreferenced files once",
				Action: reconcile,
			},
		},
		DefaultCommand: "serve",
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(c *cli.Context) (*app.Application, error) {
	cfg, err := config.LoadConfig(c.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		return nil, err
	}
	return application, nil
}

func serve(c *cli.Context) error {
	application, err := setup(c)
	if err != nil {
		return err
	}
	defer application.Release()

	if err := application.CheckStorage(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := application.ReportOrphans(ctx); err != nil {
		zap.L().Warn("orphan ledger unavailable", zap.Error(err))
	}
	if err := application.StartBackgroundJobs(ctx); err != nil {
		return err
	}

	webserver.Init(application)
	adminapi.Init()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(webserver.Listen)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func initDB(c *cli.Context) error {
	application, err := setup(c)
	if err != nil {
		return err
	}
	defer application.Release()

	if c.Bool("drop") {
		application.InitDb()
	}
	if err := application.MigrateDB(true); err != nil {
		return err
	}
	zap.L().Info("database schema ready")
	return nil
}

func reconcile(c *cli.Context) error {
	application, err := setup(c)
	if err != nil {
		return err
	}
	defer application.Release()

	retry, sweep, err := application.RunReconcile(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("orphan retry: checked=%d removed=%d failed=%d\n", retry.Checked, retry.Removed, retry.Failed)
	fmt.Printf("sweep: checked=%d removed=%d skipped=%d failed=%d\n", sweep.Checked, sweep.Removed, sweep.Skipped, sweep.Failed)
	return nil
}
