package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"Courier/internal/api"
	"Courier/internal/auth"
	"Courier/internal/breaker"
	"Courier/internal/changefeed"
	"Courier/internal/config"
	"Courier/internal/constants"
	"Courier/internal/db"
	"Courier/internal/lifecycle"
	"Courier/internal/loyalty"
	"Courier/internal/rabbitmq"
	"Courier/internal/registry"
	"Courier/internal/telegram_api"
	"Courier/internal/tenant"
)

func main() {
	// --- Блок инициализации ---
	err := godotenv.Load()
	if err != nil {
		log.Println("Предупреждение: не удалось загрузить файл .env. Переменные окружения должны быть установлены иным способом.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось загрузить конфигурацию: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("Подключение к базе данных %s:%s/%s (драйвер %s)...", cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBDriver)
	store, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось подключиться к базе данных: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("Критическая ошибка: не удалось применить миграции: %v", err)
	}

	directory, err := tenant.LoadDirectory(cfg.TenantsFile)
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось загрузить настройки арендаторов: %v", err)
	}

	// --- Ядро ---
	ledger := loyalty.NewLedger(store, directory, cfg.LoyaltyThreshold)
	engine := lifecycle.NewEngine(store, store, ledger)
	staffRegistry := registry.New(store, engine)
	storeBreaker := breaker.New(store.Ping, cfg.StoreHealthTTL, nil)

	// --- Лента изменений: RabbitMQ и уведомления водителям ---
	var sinks []changefeed.Sink
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.Dial(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("Предупреждение: RabbitMQ недоступен, публикация изменений отключена: %v", err)
		} else if err := mq.DeclareFanout(constants.CHANGEFEED_EXCHANGE); err != nil {
			log.Printf("Предупреждение: не удалось объявить exchange %s, публикация изменений отключена: %v", constants.CHANGEFEED_EXCHANGE, err)
			mq.Close()
		} else {
			defer mq.Close()
			sinks = append(sinks, changefeed.NewAMQPSink(mq))
		}
	}
	if cfg.TelegramToken != "" {
		bot, err := telegram_api.NewBotClient(cfg.TelegramToken, cfg.IsDev())
		if err != nil {
			log.Printf("Предупреждение: Telegram бот не инициализирован, уведомления водителям отключены: %v", err)
		} else {
			sinks = append(sinks, changefeed.NewDriverNotifier(bot, directory, engine, cfg.PublicBaseURL))
		}
	}
	if len(sinks) > 0 {
		relay := changefeed.NewRelay(sinks...)
		go func() {
			if err := relay.Listen(ctx, cfg.DatabaseURL); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Лента изменений остановлена с ошибкой: %v", err)
			}
		}()
	}

	// --- Настройка роутера и Middleware ---
	apiRouter := chi.NewRouter()

	// Глобальные middlewares должны идти перед api.SetupRoutes
	apiRouter.Use(middleware.RequestID)
	apiRouter.Use(middleware.Logger)
	apiRouter.Use(middleware.Recoverer)
	apiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.SetupRoutes(apiRouter, api.ApiDependencies{
		Config:   cfg,
		Engine:   engine,
		Registry: staffRegistry,
		Ledger:   ledger,
		Resolver: tenant.NewResolver(directory, cfg.BaseDomain, cfg.DefaultTenant),
		Verifier: auth.NewVerifier(cfg.JWTSecret),
		Breaker:  storeBreaker,
	})

	// Обработка запроса иконки, чтобы избежать ошибки 404 в логах
	apiRouter.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Запуск HTTP-сервера API на порту %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: не удалось запустить HTTP-сервер: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ошибка при остановке HTTP-сервера: %v", err)
	}
}
