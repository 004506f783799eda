package domain

import (
	"errors"
	"time"
)

// ErrSessionNotFound indica que la sesion solicitada no existe.
var ErrSessionNotFound = errors.New("session not found")

// Session representa una conversacion con el asistente.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionPatch lista los unicos campos mutables de una sesion.
// Un puntero nil significa "sin cambio"; UpdatedAt nil se resuelve a now.
type SessionPatch struct {
	Title     *string
	UpdatedAt *time.Time
}
