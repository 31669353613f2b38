package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

type DB struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
	Name string `yaml:"database"`
}

type MQ struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"password"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

type Payment struct {
	WebhookSecret      string `yaml:"webhook_secret"`
	AuthWindowSeconds  int    `yaml:"auth_window_seconds"`
	CaptureSweepSecond int    `yaml:"capture_sweep_seconds"`
	Currency           string `yaml:"currency"`
}

type App struct {
	Database DB      `yaml:"database"`
	Rabbit   MQ      `yaml:"rabbitmq"`
	HTTP     HTTP    `yaml:"http"`
	Payment  Payment `yaml:"payment"`
}

// Load reads a two-level YAML file without external packages.
func Load(path string) (App, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	a := defaults()
	var cur string
	for _, ln := range strings.Split(string(b), "\n") {
		line := strings.TrimSpace(ln)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasSuffix(line, ":") {
			cur = strings.TrimSuffix(line, ":")
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		k := strings.TrimSpace(parts[0])
		v := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		switch cur {
		case "database":
			assignDB(&a.Database, k, v)
		case "rabbitmq":
			assignMQ(&a.Rabbit, k, v)
		case "http":
			if k == "port" {
				a.HTTP.Port = atoiSafe(v)
			}
		case "payment":
			assignPayment(&a.Payment, k, v)
		}
	}
	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, errors.New("invalid config: missing database/rabbitmq host")
	}
	if a.Payment.WebhookSecret == "" {
		return App{}, errors.New("invalid config: payment.webhook_secret is required")
	}
	return a, nil
}

func defaults() App {
	return App{
		HTTP: HTTP{Port: 3000},
		Payment: Payment{
			AuthWindowSeconds:  60,
			CaptureSweepSecond: 15,
			Currency:           "VND",
		},
	}
}

func assignDB(d *DB, k, v string) {
	switch k {
	case "host":
		d.Host = v
	case "port":
		d.Port = atoiSafe(v)
	case "user":
		d.User = v
	case "password":
		d.Pass = v
	case "database":
		d.Name = v
	}
}

func assignMQ(m *MQ, k, v string) {
	switch k {
	case "host":
		m.Host = v
	case "port":
		m.Port = atoiSafe(v)
	case "user":
		m.User = v
	case "password":
		m.Pass = v
	}
}

func assignPayment(p *Payment, k, v string) {
	switch k {
	case "webhook_secret":
		p.WebhookSecret = v
	case "auth_window_seconds":
		p.AuthWindowSeconds = atoiSafe(v)
	case "capture_sweep_seconds":
		p.CaptureSweepSecond = atoiSafe(v)
	case "currency":
		p.Currency = v
	}
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}
