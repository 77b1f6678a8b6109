package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL,required"`

	JWTSecret     string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"authgate"`
	JWTTTLMinutes int    `env:"JWT_TTL_MINUTES" envDefault:"0"`
	BcryptCost    int    `env:"BCRYPT_COST" envDefault:"6"`

	SendGridAPIKey  string `env:"SENDGRID_API_KEY"`
	SendGridBaseURL string `env:"SENDGRID_BASE_URL" envDefault:"https://api.sendgrid.com"`
	EmailFrom       string `env:"EMAIL_FROM"`
	EmailFromName   string `env:"EMAIL_FROM_NAME"`
	SMTPHost        string `env:"SMTP_HOST"`
	SMTPPort        int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser        string `env:"SMTP_USER"`
	SMTPPass        string `env:"SMTP_PASS"`
	SMTPUseTLS      bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	AvatarBaseURL string `env:"AVATAR_BASE_URL" envDefault:"https://www.gravatar.com/avatar"`

	RedisAddr              string `env:"REDIS_ADDR"`
	RedisPassword          string `env:"REDIS_PASSWORD"`
	RedisDB                int    `env:"REDIS_DB" envDefault:"0"`
	LoginRateWindowMinutes int    `env:"LOGIN_RATE_WINDOW_MINUTES" envDefault:"15"`
	LoginRateMax           int    `env:"LOGIN_RATE_MAX" envDefault:"10"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// JWTTTL devuelve cero cuando los tokens no expiran.
func (c *Config) JWTTTL() time.Duration {
	if c.JWTTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.JWTTTLMinutes) * time.Minute
}

func (c *Config) LoginRateWindow() time.Duration {
	return time.Duration(c.LoginRateWindowMinutes) * time.Minute
}
