package avatar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

// Generator produce la URL del avatar inicial de un usuario.
type Generator interface {
	Generate(ctx context.Context, email string) (string, error)
}

// Gravatar arma URLs de Gravatar con identicon como imagen por defecto.
type Gravatar struct {
	baseURL string
	size    string
}

func NewGravatar(baseURL string) *Gravatar {
	if baseURL == "" {
		baseURL = "https://www.gravatar.com/avatar"
	}
	return &Gravatar{
		baseURL: strings.TrimRight(baseURL, "/"),
		size:    "250",
	}
}

func (g *Gravatar) Generate(_ context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	sum := md5.Sum([]byte(email))
	q := url.Values{}
	q.Set("d", "identicon")
	q.Set("s", g.size)
	return g.baseURL + "/" + hex.EncodeToString(sum[:]) + "?" + q.Encode(), nil
}
