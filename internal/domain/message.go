package domain

import "time"

// Roles validos para un mensaje.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message es un turno dentro de una sesion. SessionID no esta respaldado
// por una constraint: los repositorios no asumen integridad referencial.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
