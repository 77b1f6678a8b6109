package domain

import "time"

// SubscriptionFree es la suscripcion asignada al registrarse.
const SubscriptionFree = "free"

type User struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Gender            string    `json:"gender,omitempty"`
	AvatarURL         string    `json:"avatar_url,omitempty"`
	Subscription      string    `json:"subscription"`
	VerificationToken *string   `json:"-"`
	SessionToken      *string   `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}

// Verified indica si el usuario ya consumio su token de verificacion.
func (u User) Verified() bool {
	return u.VerificationToken == nil
}

// HasSession compara el token presentado con el token de sesion vigente.
func (u User) HasSession(token string) bool {
	return u.SessionToken != nil && token != "" && *u.SessionToken == token
}

// PublicProfile es la vista del usuario que se expone en respuestas HTTP.
type PublicProfile struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
	Gender       string `json:"gender,omitempty"`
	AvatarURL    string `json:"avatarURL,omitempty"`
}

func (u User) Profile() PublicProfile {
	return PublicProfile{
		Email:        u.Email,
		Subscription: u.Subscription,
		Gender:       u.Gender,
		AvatarURL:    u.AvatarURL,
	}
}
