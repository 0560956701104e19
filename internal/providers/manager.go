package providers

import (
	"fmt"
	"strings"
)

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the configured embedding providers in list order.
type Manager struct {
	embedProviders []NamedEmbedProvider
	dim            int
}

// NewManager builds providers from a "name[:alias]|..." list (commas work too). An empty list yields the mock provider.
func NewManager(providerList string, dim int) (*Manager, error) {
	m := &Manager{dim: dim}
	for _, ref := range ParseProviderList(providerList) {
		p, err := buildProvider(ref, dim)
		if err != nil {
			return nil, err
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: p})
	}
	if len(m.embedProviders) == 0 {
		m.embedProviders = []NamedEmbedProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(dim)}}
	}
	return m, nil
}

func (m *Manager) Dimension() int {
	return m.dim
}

func (m *Manager) EmbedProviderByIndex(i int) (EmbeddingProvider, ProviderRef) {
	if len(m.embedProviders) == 0 {
		return NewMockProvider(m.dim), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.embedProviders) {
		i = 0
	}
	return m.embedProviders[i].Provider, m.embedProviders[i].Ref
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

// PreferredEmbedOrder lists real providers first and the mock last.
func (m *Manager) PreferredEmbedOrder() []int {
	n := len(m.embedProviders)
	if n == 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !m.isMock(i) {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if m.isMock(i) {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) isMock(i int) bool {
	return strings.EqualFold(m.embedProviders[i].Ref.Name, "mock")
}

// FindEmbedProviderIndex matches raw against each provider's raw ref, name or name:alias.
func (m *Manager) FindEmbedProviderIndex(raw string) int {
	target := strings.ToLower(strings.TrimSpace(raw))
	if target == "" {
		return -1
	}
	for i := range m.embedProviders {
		ref := m.embedProviders[i].Ref
		if strings.EqualFold(strings.TrimSpace(ref.Raw), target) || ref.Name == target || strings.EqualFold(ref.key(), target) {
			return i
		}
	}
	return -1
}

func buildProvider(ref ProviderRef, dim int) (EmbeddingProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", ref.Name)
	}
}
