package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"chat-sessions/internal/domain"
	"chat-sessions/internal/llm"
	"chat-sessions/internal/report"
	"chat-sessions/internal/repository"
)

// ChatService orquesta operaciones entre repositorios; no guarda estado.
type ChatService struct {
	logger   *zap.Logger
	sessions repository.SessionRepository
	messages repository.MessageRepository
	replier  llm.Client
	reporter report.Reporter
}

func NewChatService(
	logger *zap.Logger,
	sessions repository.SessionRepository,
	messages repository.MessageRepository,
	replier llm.Client,
	reporter report.Reporter,
) *ChatService {
	return &ChatService{
		logger:   logger,
		sessions: sessions,
		messages: messages,
		replier:  replier,
		reporter: reporter,
	}
}

func (s *ChatService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.List(ctx)
}

func (s *ChatService) GetSession(ctx context.Context, id string) (domain.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *ChatService) CreateSession(ctx context.Context, title string) (domain.Session, error) {
	return s.sessions.Create(ctx, strings.TrimSpace(title))
}

// RenameSession cambia el titulo; el repositorio resuelve updatedAt a now
// y reposiciona la sesion en el indice en el mismo paso.
func (s *ChatService) RenameSession(ctx context.Context, id, title string) (domain.Session, error) {
	title = strings.TrimSpace(title)
	return s.sessions.Update(ctx, id, domain.SessionPatch{Title: &title})
}

func (s *ChatService) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	return s.messages.ListBySessionID(ctx, sessionID)
}

// SendUserMessage persiste el mensaje del usuario, pide la respuesta al
// asistente y persiste el turno del asistente. Una falla del asistente se
// absorbe: se reporta y la conversacion igual recibe sus dos mensajes.
func (s *ChatService) SendUserMessage(ctx context.Context, sessionID, content string) (domain.Message, domain.Message, error) {
	userMsg, err := s.messages.Create(ctx, sessionID, domain.RoleUser, content)
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("persist user message: %w", err)
	}

	replyContent, err := s.replier.Reply(ctx, content)
	if err != nil {
		s.reporter.Capture(err, map[string]interface{}{"sessionId": sessionID})
		replyContent = fmt.Sprintf("Sorry, something went wrong: %s.", err.Error())
	}

	assistantMsg, err := s.messages.Create(ctx, sessionID, domain.RoleAssistant, replyContent)
	if err != nil {
		return domain.Message{}, domain.Message{}, fmt.Errorf("persist assistant message: %w", err)
	}

	return userMsg, assistantMsg, nil
}

// DeleteSession borra primero los mensajes y despues la sesion: un corte
// entre ambos pasos deja mensajes huerfanos, nunca una sesion fantasma.
func (s *ChatService) DeleteSession(ctx context.Context, id string) error {
	if err := s.messages.DeleteBySessionID(ctx, id); err != nil {
		return fmt.Errorf("delete session messages: %w", err)
	}
	if err := s.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}
