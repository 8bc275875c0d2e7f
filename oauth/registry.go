package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry is the in-memory dynamic client store. Records are immutable
// after insert and live for the process lifetime.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*RegisteredClient
	logger  *zap.Logger

	now func() time.Time
}

// NewRegistry creates an empty client registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		clients: make(map[string]*RegisteredClient),
		logger:  logger,
		now:     time.Now,
	}
}

// Register mints a fresh client_id/client_secret pair for the given
// metadata and stores the record. IDs come from a cryptographically random
// source, so collisions are not a practical concern.
func (r *Registry) Register(req *ClientRegistrationRequest) (*RegisteredClient, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate client secret: %w", err)
	}

	redirectURIs := req.RedirectURIs
	if redirectURIs == nil {
		redirectURIs = []string{}
	}

	client := &RegisteredClient{
		ClientID:                uuid.NewString(),
		ClientSecret:            secret,
		ClientName:              req.ClientName,
		RedirectURIs:            redirectURIs,
		GrantTypes:              req.GrantTypes,
		ResponseTypes:           req.ResponseTypes,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		IssuedAt:                r.now(),
	}

	r.mu.Lock()
	r.clients[client.ClientID] = client
	r.mu.Unlock()

	r.logger.Info("client registered",
		zap.String("client_id", client.ClientID),
		zap.String("client_name", client.ClientName),
		zap.Int("redirect_uris", len(client.RedirectURIs)))

	return client, nil
}

// Get looks up a registered client by id.
func (r *Registry) Get(clientID string) (*RegisteredClient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[clientID]
	return client, ok
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
