package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/MarcGrol/shopsaga/lib/mybus"
	"github.com/MarcGrol/shopsaga/lib/myevents"
	"github.com/MarcGrol/shopsaga/services/cart/cartevents"
	"github.com/MarcGrol/shopsaga/services/order/orderevents"
	"github.com/MarcGrol/shopsaga/services/payment/paymentevents"
)

const configFilename = "config.yaml"

type Config struct {
	// Services lists the services this process hosts
	Services       string      `yaml:"services" env:"SERVICES" env-default:"cart,order,payment"`
	HTTP           HTTP        `yaml:"http"`
	Checkout       Destination `yaml:"checkout" env-prefix:"CHECKOUT_"`
	PaymentRequest Destination `yaml:"paymentRequest" env-prefix:"PAYMENT_REQUEST_"`
	PaymentResult  Destination `yaml:"paymentResult" env-prefix:"PAYMENT_RESULT_"`
	DeadLetter     Destination `yaml:"deadLetter" env-prefix:"DEAD_LETTER_"`
	Subscriber     Subscriber  `yaml:"subscriber"`
	CouponAPI      CouponAPI   `yaml:"couponApi"`
	Payment        Payment     `yaml:"payment"`
	Watchdog       Watchdog    `yaml:"watchdog"`
}

type HTTP struct {
	Port string `yaml:"port" env:"PORT" env-default:"8080"`
}

// Destination is a topic plus the subscription this process consumes it through.
// Every destination can live in its own project with its own credentials.
type Destination struct {
	Topic           string `yaml:"topic" env:"TOPIC"`
	Subscription    string `yaml:"subscription" env:"SUBSCRIPTION"`
	ProjectID       string `yaml:"projectId" env:"PROJECT_ID"`
	CredentialsFile string `yaml:"credentialsFile" env:"CREDENTIALS_FILE"`
}

type Subscriber struct {
	LockWindow              time.Duration `yaml:"lockWindow" env:"SUBSCRIBER_LOCK_WINDOW" env-default:"30s"`
	MaxDeliveryAttempts     int           `yaml:"maxDeliveryAttempts" env:"SUBSCRIBER_MAX_DELIVERY_ATTEMPTS" env-default:"10"`
	MaxConcurrentDeliveries int           `yaml:"maxConcurrentDeliveries" env:"SUBSCRIBER_MAX_CONCURRENT_DELIVERIES" env-default:"10"`
	ErrorBackoff            time.Duration `yaml:"errorBackoff" env:"SUBSCRIBER_ERROR_BACKOFF" env-default:"5s"`
	StopTimeout             time.Duration `yaml:"stopTimeout" env:"SUBSCRIBER_STOP_TIMEOUT" env-default:"20s"`
}

type CouponAPI struct {
	BaseURL string        `yaml:"baseUrl" env:"COUPON_API_BASE_URL" env-default:"http://localhost:8081"`
	Timeout time.Duration `yaml:"timeout" env:"COUPON_API_TIMEOUT" env-default:"5s"`
}

type Payment struct {
	// Provider is simulated or stripe
	Provider            string `yaml:"provider" env:"PAYMENT_PROVIDER" env-default:"simulated"`
	StripeAPIKey        string `yaml:"stripeApiKey" env:"STRIPE_API_KEY"`
	StripePaymentMethod string `yaml:"stripePaymentMethod" env:"STRIPE_PAYMENT_METHOD" env-default:"pm_card_visa"`
	Currency            string `yaml:"currency" env:"PAYMENT_CURRENCY" env-default:"eur"`
}

type Watchdog struct {
	Delay      time.Duration `yaml:"delay" env:"WATCHDOG_DELAY" env-default:"15m"`
	LocationID string        `yaml:"locationId" env:"WATCHDOG_LOCATION_ID" env-default:"europe-west1"`
	Queue      string        `yaml:"queue" env:"WATCHDOG_QUEUE" env-default:"payment-watchdog"`
}

// loadConfig reads the yaml file when present. Environment variables always win.
func loadConfig(filename string) (Config, error) {
	cfg := Config{}

	_, err := os.Stat(filename)
	if err == nil {
		err = cleanenv.ReadConfig(filename, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config %s: %w", filename, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		err = cleanenv.ReadEnv(&cfg)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config from environment: %w", err)
		}
	} else {
		return Config{}, fmt.Errorf("error accessing config %s: %w", filename, err)
	}

	cfg.applyDefaults(os.Getenv("GOOGLE_CLOUD_PROJECT"))

	return cfg, cfg.validate()
}

func (cfg *Config) applyDefaults(projectID string) {
	cfg.Checkout.applyDefaults(cartevents.TopicName, "order", projectID)
	cfg.PaymentRequest.applyDefaults(orderevents.TopicName, "payment", projectID)
	cfg.PaymentResult.applyDefaults(paymentevents.TopicName, "order", projectID)
	cfg.DeadLetter.applyDefaults(myevents.DeadLetterTopicName, "operator", projectID)
}

func (d *Destination) applyDefaults(topic string, consumer string, projectID string) {
	if d.Topic == "" {
		d.Topic = topic
	}
	if d.Subscription == "" {
		d.Subscription = d.Topic + "-" + consumer
	}
	if d.ProjectID == "" {
		d.ProjectID = projectID
	}
}

func (d Destination) connection() mybus.Connection {
	return mybus.Connection{
		ProjectID:       d.ProjectID,
		CredentialsFile: d.CredentialsFile,
	}
}

func (cfg Config) validate() error {
	for _, name := range cfg.services() {
		switch name {
		case serviceCart, serviceOrder, servicePayment:
		default:
			return fmt.Errorf("unknown service %q", name)
		}
	}

	switch cfg.Payment.Provider {
	case providerSimulated:
	case providerStripe:
		if cfg.Payment.StripeAPIKey == "" {
			return fmt.Errorf("payment provider %s requires STRIPE_API_KEY", providerStripe)
		}
	default:
		return fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
	}

	return nil
}

func (cfg Config) services() []string {
	names := []string{}
	for _, name := range strings.Split(cfg.Services, ",") {
		name = strings.TrimSpace(name)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (cfg Config) hosts(service string) bool {
	return slices.Contains(cfg.services(), service)
}
