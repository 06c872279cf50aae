package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/daniil11ru/volovo/cli/tracker/api"
	"github.com/daniil11ru/volovo/cli/tracker/archive"
	"github.com/daniil11ru/volovo/cli/tracker/config"
	"github.com/daniil11ru/volovo/cli/tracker/domain"
	"github.com/daniil11ru/volovo/cli/tracker/fetch"
	"github.com/daniil11ru/volovo/cli/tracker/repository"
	"github.com/daniil11ru/volovo/cli/tracker/session"
	"github.com/daniil11ru/volovo/cli/tracker/source/postgres"
	"github.com/daniil11ru/volovo/cli/tracker/track"
	"github.com/daniil11ru/volovo/cli/tracker/util"
	"github.com/robfig/cron/v3"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	configFilePath := ""
	syncOnce := false
	oidsFlag := ""
	fromFlag := ""
	toFlag := ""
	chunkHoursFlag := 0
	resetState := false

	flag.StringVar(&configFilePath, "c", "", "")
	flag.BoolVar(&syncOnce, "sync-once", false, "выполнить одну синхронизацию и выйти")
	flag.StringVar(&oidsFlag, "oids", "", "список OID через запятую (перекрывает конфиг)")
	flag.StringVar(&fromFlag, "from", "", "напр.: \"2026-02-01 00:00:00\"")
	flag.StringVar(&toFlag, "to", "", "напр.: \"2026-02-08 23:59:59\"")
	flag.IntVar(&chunkHoursFlag, "chunk-hours", 0, "размер чанка в часах")
	flag.BoolVar(&resetState, "reset-state", false, "сбросить курсор синхронизации и загрузить заново")
	flag.Parse()

	config, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Не удалось получить конфиг: %v", err)
		return
	}

	configureLogging(config)

	if err := applyMigrations(config); err != nil {
		log.Fatalf("Не удалось применить миграции: %v", err)
		return
	}

	primarySource, err := postgres.NewSource(config.Store)
	if err != nil {
		log.Fatalf("Не удалось инициализировать источник данных: %v", err)
		return
	}
	defer primarySource.Close()

	primaryRepository := &repository.Primary{Source: primarySource}

	credentialStore, err := newCredentialStore(config)
	if err != nil {
		log.Fatalf("Не удалось инициализировать хранилище cookie: %v", err)
		return
	}

	sessionManager := session.NewManager(config.BaseURL, config.Login, config.Password, credentialStore, config.GetHTTPTimeout())
	fetcher := fetch.NewFetcher(config.BaseURL, sessionManager, config.GetHTTPTimeout(), config.HTTPRetries, config.GetHTTPRetrySleep())

	syncTracks := domain.SyncTracks{
		Repository:   primaryRepository,
		Fetcher:      fetcher,
		BufferLimit:  config.BufferLimit,
		RequestSleep: config.GetRequestSleep(),
	}

	archiveRepository := archive.NewRepository()
	if len(config.Archive) > 0 {
		if err := archiveRepository.LoadStorages(config.Archive); err != nil {
			log.Fatalf("Не удалось инициализировать архив сырых ответов: %v", err)
			return
		}
	}
	if !archiveRepository.Empty() {
		defer archiveRepository.Close()
		syncTracks.Archive = archiveRepository
		log.Info("Архив сырых ответов источника включён")
	}

	opts, err := buildSyncOptions(config, oidsFlag, fromFlag, toFlag, chunkHoursFlag, resetState)
	if err != nil {
		log.Fatalf("Некорректные параметры синхронизации: %v", err)
		return
	}

	if syncOnce {
		report, err := syncTracks.Run(context.Background(), opts)
		printReport(report)
		if err != nil {
			log.Errorf("Синхронизация завершилась с ошибкой: %v", err)
			os.Exit(1)
		}
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(config.SyncCronExpression, func() {
		report, err := syncTracks.Run(context.Background(), opts)
		printReport(report)
		if err != nil {
			log.Errorf("Синхронизация завершилась с ошибкой: %v", err)
		}
	}); err != nil {
		log.Fatalf("Ошибка при настройке cron-задачи: %v", err)
		return
	}
	c.Start()
	log.Infof("Запланирована периодическая синхронизация треков: %s", config.SyncCronExpression)

	go runApi(primaryRepository, config)

	select {}
}

func getConfig(configFilePath string) (config.Settings, error) {
	var c config.Settings
	var err error

	if configFilePath == "" {
		return c, &util.ErrorString{S: "не задан путь до конфига"}
	}

	c, err = config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("ошибка парсинга конфига: %v", err)
	}

	return c, nil
}

func configureLogging(config config.Settings) {
	log.SetLevel(config.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if config.LogFilePath != "" {
		logDir := filepath.Dir(config.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Не получилось создать директорию для логов: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   config.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     config.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}

func newCredentialStore(config config.Settings) (session.CredentialStore, error) {
	if config.CookieStore["type"] == "redis" {
		return session.NewRedisStore(config.CookieStore)
	}
	return &session.FileStore{Path: config.CookiePath}, nil
}

func buildSyncOptions(config config.Settings, oidsFlag, fromFlag, toFlag string, chunkHours int, resetState bool) (domain.SyncOptions, error) {
	opts := domain.SyncOptions{
		OIDs:       config.OIDs,
		ChunkHours: config.ChunkHours,
		ResetState: resetState,
	}

	if oidsFlag != "" {
		opts.OIDs = nil
		for _, part := range strings.Split(oidsFlag, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			oid, err := strconv.Atoi(part)
			if err != nil {
				return opts, fmt.Errorf("OID не число: %s", part)
			}
			opts.OIDs = append(opts.OIDs, int32(oid))
		}
	}

	if chunkHours > 0 {
		opts.ChunkHours = chunkHours
	}

	if fromFlag != "" {
		t, err := track.ParseTime(fromFlag)
		if err != nil {
			return opts, fmt.Errorf("некорректное значение from: %v", err)
		}
		opts.From = &t
	}
	if toFlag != "" {
		t, err := track.ParseTime(toFlag)
		if err != nil {
			return opts, fmt.Errorf("некорректное значение to: %v", err)
		}
		opts.To = &t
	}

	if opts.From != nil && opts.To != nil && !opts.To.After(*opts.From) {
		return opts, &util.ErrorString{S: "некорректный период: to <= from"}
	}

	return opts, nil
}

func printReport(report domain.SyncReport) {
	for oid, r := range report.PerOID {
		if r.Err != nil {
			log.Errorf("OID %d: ошибка: %v", oid, r.Err)
			continue
		}
		log.Infof("OID %d: точек %d", oid, r.Points)
	}
	log.Infof("Итого: точек %d, совпало %d, вставлено %d, пропущено строк %d",
		report.TotalPoints, report.TotalMatched, report.TotalInserted, report.SkippedRows)
}

func runApi(primaryRepository *repository.Primary, config config.Settings) {
	report := &domain.Report{
		Repository: primaryRepository,
		Fence:      config.GetGeofence(),
		Filter: domain.FilterConfig{
			MaxJumpKm:   config.MaxJumpKm,
			MaxSpeedKmh: config.MaxSpeedKmh,
		},
	}
	handler := api.NewHandler(primaryRepository, report, config.TemplatePath)
	controller := api.NewController(handler)
	log.Infof("Запуск API на порту %d", config.ApiPort)
	if err := controller.Run(config.ApiPort); err != nil {
		log.Fatal(err)
	}
}

func applyMigrations(config config.Settings) error {
	if config.MigrationsPath == "" {
		log.Info("Путь до миграций не задан, применение пропущено")
		return nil
	}

	databaseUrl := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		config.Store["user"], config.Store["password"], config.Store["host"], config.Store["port"], config.Store["database"], config.Store["sslmode"])

	m, err := migrate.New(
		config.MigrationsPath,
		databaseUrl,
	)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %v", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			log.Info("Нет новых миграций для применения")
			return nil
		}
		return fmt.Errorf("ошибка применения миграций: %v", err)
	}

	log.Info("Миграции успешно применены")
	return nil
}
