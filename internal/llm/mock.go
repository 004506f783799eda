package llm

import "context"

// MockClient permite correr sin un LLM real; tambien se usa en tests.
type MockClient struct {
	Response string
	Err      error
}

func (m *MockClient) Reply(_ context.Context, _ string) (string, error) {
	return m.Response, m.Err
}

// MockReply es la respuesta fija cuando no hay API key configurada.
const MockReply = "[Mock] No LLM_API_KEY set. Add it in .env to get real replies."
