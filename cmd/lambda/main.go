package main

import (
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/etimbre/mobilemoney"
	"github.com/etimbre/mobilemoney/internal/handler"
	"github.com/etimbre/mobilemoney/ligdicash"
	"github.com/etimbre/mobilemoney/pay"
)

type config struct {
	Environment string `env:"MOBILEMONEY_ENV" envDefault:"prod"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	LigdicashAPIKey   string `env:"LIGDICASH_API_KEY,required"`
	LigdicashAPIToken string `env:"LIGDICASH_API_TOKEN,required"`

	StoreName       string `env:"STORE_NAME,required"`
	StoreWebsiteURL string `env:"STORE_WEBSITE_URL,required"`

	ReturnURL         string `env:"CHECKOUT_RETURN_URL,required"`
	CancelURL         string `env:"CHECKOUT_CANCEL_URL,required"`
	ProviderNotifyURL string `env:"CHECKOUT_NOTIFY_URL,required"`

	CallbackURL    string `env:"CHECKOUT_CALLBACK_URL"`
	CallbackSecret string `env:"CHECKOUT_CALLBACK_SECRET"`

	PollInterval time.Duration `env:"CHECKOUT_POLL_INTERVAL" envDefault:"5s"`
	PollTimeout  time.Duration `env:"CHECKOUT_POLL_TIMEOUT" envDefault:"5m"`
}

func main() {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	cred, err := pay.NewCredential(cfg.LigdicashAPIKey, cfg.LigdicashAPIToken)
	if err != nil {
		log.Fatalf("invalid ligdicash credential: %v", err)
	}

	facade, err := mobilemoney.New(mobilemoney.Config{
		Environment:         pay.Environment(cfg.Environment),
		LigdicashCredential: cred,
		Logger:              logger,
	})
	if err != nil {
		log.Fatalf("failed to build payment facade: %v", err)
	}

	opts := []handler.Option{
		handler.WithLogger(logger),
		handler.WithPollInterval(cfg.PollInterval),
		handler.WithTimeout(cfg.PollTimeout),
	}
	if cfg.CallbackURL != "" {
		sender, err := handler.NewHTTPSCallbackSender(cfg.CallbackURL, cfg.CallbackSecret, nil)
		if err != nil {
			log.Fatalf("failed to configure callback sender: %v", err)
		}
		opts = append(opts, handler.WithCallbackSender(sender))
	}

	processor := handler.NewProcessor(
		facade,
		ligdicash.Store{Name: cfg.StoreName, WebsiteURL: cfg.StoreWebsiteURL},
		ligdicash.Actions{
			CancelURL:   cfg.CancelURL,
			ReturnURL:   cfg.ReturnURL,
			CallbackURL: cfg.ProviderNotifyURL,
		},
		opts...,
	)

	lambda.Start(processor.Handle)
}
