package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	Bookmarks       int    `json:"bookmarks"`
	Subscribers     int    `json:"subscribers"`
	EventBufferSize int    `json:"event_buffer_size"`
	ProviderType    string `json:"provider_type"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	providerType := "unknown"
	if s.provider != nil {
		providerType = "provider"
		if comp, ok := s.provider.(introspection.Component); ok {
			providerType = comp.ComponentType()
		}
	}

	return ServiceState{
		Bookmarks:       s.store.Len(),
		Subscribers:     len(s.subscribers),
		EventBufferSize: s.eventBufferSize,
		ProviderType:    providerType,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "service"
}

// StoreState exposes index shape for observability.
type StoreState struct {
	Bookmarks       int `json:"bookmarks"`
	SourceDocuments int `json:"source_documents"`
	MirrorDocuments int `json:"mirror_documents"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return StoreState{
		Bookmarks:       len(s.bookmarks),
		SourceDocuments: len(s.sourceIndex),
		MirrorDocuments: len(s.mirrorIndex),
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "bookmark-store"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
