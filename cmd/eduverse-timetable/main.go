package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	httpadapter "github.com/eduverse/timetable/internal/adapter/http"
	"github.com/eduverse/timetable/internal/adapter/jsonfile"
	"github.com/eduverse/timetable/internal/adapter/postgres"
	"github.com/eduverse/timetable/internal/config"
	"github.com/eduverse/timetable/internal/port"
	"github.com/eduverse/timetable/internal/usecase/timetable"
)

const serviceName = "EduverseTimetable"

type program struct {
	cfg     *config.Config
	log     *zap.Logger
	loader  *timetable.Loader
	server  *echo.Echo
	closers []func() error
}

func main() {
	installCmd := flag.NewFlagSet("install", flag.ExitOnError)
	installConfig := installCmd.String("config", config.DefaultPath(), "Config file to write")
	installListen := installCmd.String("listen", ":8080", "Listen address")
	installSource := installCmd.String("source", config.SourceREST, "Timetable source: rest or postgres")
	installAPI := installCmd.String("api-url", "", "eduVerse API base URL (source=rest)")
	installToken := installCmd.String("api-token", "", "Bearer token for the API")
	installDB := installCmd.String("database-url", "", "PostgreSQL URL (source=postgres)")
	installData := installCmd.String("data-file", "timetables.json", "Snapshot file, relative to the config dir")

	uninstallCmd := flag.NewFlagSet("uninstall", flag.ExitOnError)
	uninstallConfig := uninstallCmd.String("config", config.DefaultPath(), "Config file of the installed service")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runConfig := runCmd.String("config", config.DefaultPath(), "Config file")
	runEnv := runCmd.String("env-file", ".env", "Optional .env file")

	args := os.Args[1:]
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "install":
		installCmd.Parse(args)
		cfg := &config.Config{
			ListenAddr:      *installListen,
			Source:          *installSource,
			APIURL:          *installAPI,
			APIToken:        *installToken,
			DatabaseURL:     *installDB,
			DataFile:        *installData,
			LongPollTimeout: 55 * time.Second,
			RequestTimeout:  30 * time.Second,
		}
		if err := install(*installConfig, cfg); err != nil {
			log.Fatalf("install: %v", err)
		}
	case "uninstall":
		uninstallCmd.Parse(args)
		if err := uninstall(*uninstallConfig); err != nil {
			log.Fatalf("uninstall: %v", err)
		}
	case "run":
		runCmd.Parse(args)
		if err := run(*runConfig, *runEnv); err != nil {
			log.Fatalf("run: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "usage: %s [install|uninstall|run] [flags]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
}

func serviceConfig(cfgPath string) *service.Config {
	abs, err := filepath.Abs(cfgPath)
	if err != nil {
		abs = cfgPath
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: "eduVerse Timetable",
		Description: "Serves normalized eduVerse timetable grids",
		Arguments:   []string{"run", "-config", abs},
	}
}

func install(cfgPath string, cfg *config.Config) error {
	if err := config.Write(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Printf("Config written: %s\n", cfgPath)

	svc, err := service.New(&program{}, serviceConfig(cfgPath))
	if err != nil {
		return errors.Wrap(err, "create service")
	}
	if err := svc.Install(); err != nil {
		return errors.Wrap(err, "install service")
	}
	if err := svc.Start(); err != nil {
		return errors.Wrap(err, "start service")
	}
	fmt.Printf("Service %s installed and started, listening on %s\n", serviceName, cfg.ListenAddr)
	return nil
}

func uninstall(cfgPath string) error {
	svc, err := service.New(&program{}, serviceConfig(cfgPath))
	if err != nil {
		return errors.Wrap(err, "create service")
	}
	if err := svc.Stop(); err != nil {
		log.Printf("stop service: %v", err)
	}
	if err := svc.Uninstall(); err != nil {
		return errors.Wrap(err, "uninstall service")
	}
	fmt.Println("Uninstalled.")
	return nil
}

func run(cfgPath, envFile string) error {
	cfg, err := config.Load(cfgPath, envFile)
	if err != nil {
		return err
	}
	if !filepath.IsAbs(cfg.DataFile) {
		cfg.DataFile = filepath.Join(filepath.Dir(cfgPath), cfg.DataFile)
	}
	p, err := newProgram(cfg)
	if err != nil {
		return err
	}
	svc, err := service.New(p, serviceConfig(cfgPath))
	if err != nil {
		return errors.Wrap(err, "create service")
	}
	return svc.Run()
}

func newProgram(cfg *config.Config) (*program, error) {
	logger, err := config.NewLogger(cfg.Debug, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	p := &program{cfg: cfg, log: logger}

	var source port.TimetableSource
	switch cfg.Source {
	case config.SourcePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		pg, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		cancel()
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pg.Close)
		source = pg
	default:
		source = httpadapter.NewRESTSource(cfg.APIURL, cfg.APIToken, cfg.RequestTimeout, logger)
	}

	repo, err := jsonfile.New(cfg.DataFile)
	if err != nil {
		return nil, err
	}
	p.loader = timetable.NewLoader(source, repo, logger)
	p.server = httpadapter.NewServer(httpadapter.NewHandler(p.loader, logger, cfg.LongPollTimeout), cfg.Debug)
	return p, nil
}

func (p *program) Start(s service.Service) error {
	p.log.Info("eduverse timetable starting",
		zap.String("listen", p.cfg.ListenAddr),
		zap.String("source", p.cfg.Source),
		zap.String("data_file", p.cfg.DataFile),
		zap.Bool("interactive", service.Interactive()),
	)
	go p.refreshAll()
	go func() {
		if err := p.server.Start(p.cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// refreshAll reloads every persisted view once on startup.
func (p *program) refreshAll() {
	ctx := context.Background()
	snaps, err := p.loader.List(ctx)
	if err != nil {
		p.log.Warn("list snapshots", zap.Error(err))
		return
	}
	for _, s := range snaps {
		rctx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		if _, err := p.loader.Reload(rctx, s.Query); err != nil {
			p.log.Warn("refresh failed, serving last snapshot", zap.String("key", s.Query.Key()), zap.Error(err))
		}
		cancel()
	}
}

func (p *program) Stop(s service.Service) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.server.Shutdown(ctx); err != nil {
		p.log.Warn("http shutdown", zap.Error(err))
	}
	for _, c := range p.closers {
		if err := c(); err != nil {
			p.log.Warn("close", zap.Error(err))
		}
	}
	p.log.Info("eduverse timetable stopped")
	_ = p.log.Sync()
	return nil
}
