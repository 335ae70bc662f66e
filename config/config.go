package config

import (
	"time"

	"github.com/elearnhub/elearn-api/database"
)

type Config struct {
	Web   Web
	Cors  Cors
	DB    database.Config
	PayOS PayOS
	Rate  Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

// PayOS configures the payment provider collaborator. The checksum key
// signs outbound checkout requests and verifies inbound webhooks.
type PayOS struct {
	ClientID    string
	APIKey      string        `conf:"mask"`
	ChecksumKey string        `conf:"mask"`
	URL         string        `conf:"default:https://api-merchant.payos.vn"`
	ReturnURL   string        `conf:"default:http://localhost:5173/payment/success"`
	CancelURL   string        `conf:"default:http://localhost:5173/payment/cancel"`
	Timeout     time.Duration `conf:"default:10s"`
}

type Rate struct {
	LoginBurst  int     `conf:"default:10"`
	LoginRPS    float64 `conf:"default:2"`
	LoginExpiry int     `conf:"default:10"`
}
