package auth

import (
	"context"
	stderrors "errors"
	"time"

	"api-gateway/internal/common/errors"
	"api-gateway/internal/common/logging"
	"api-gateway/internal/common/utils"
	"api-gateway/internal/crypto"
	"api-gateway/internal/models"
	"api-gateway/internal/storage"
)

// ClientSpec describes a client to register.
type ClientSpec struct {
	ID               string
	Name             string
	Scopes           []string
	Tier             string
	MaxTokenLifetime time.Duration
	// Secret is generated when empty.
	Secret string
}

// CreateClient registers a client and returns it with its plaintext secret.
// The secret is not retrievable afterwards.
func (m *Manager) CreateClient(ctx context.Context, spec ClientSpec) (*models.ApiClient, string, error) {
	if spec.Name == "" {
		return nil, "", errors.ValidationError("client name is required")
	}
	if len(spec.Scopes) == 0 {
		return nil, "", errors.ValidationError("at least one scope is required")
	}

	secret := spec.Secret
	if secret == "" {
		generated, err := utils.GenerateSecret("cs_")
		if err != nil {
			return nil, "", errors.InternalError("failed to generate client secret", err)
		}
		secret = generated
	}
	hash, err := crypto.HashSecret(secret)
	if err != nil {
		return nil, "", err
	}

	id := spec.ID
	if id == "" {
		id = utils.NewID()
	}

	now := m.now()
	client := &models.ApiClient{
		ID:               id,
		Name:             spec.Name,
		SecretHash:       hash,
		Scopes:           spec.Scopes,
		Tier:             spec.Tier,
		Status:           models.ClientActive,
		MaxTokenLifetime: spec.MaxTokenLifetime,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.CreateClient(ctx, client); err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return nil, "", errors.ConflictError("client " + id + " already exists")
		}
		return nil, "", errors.InternalError("failed to create client", err)
	}

	m.audit(ctx, models.AuditClientCreated, client.ID, "", client.Name)
	m.logger.WithContext(ctx).Info("API client created",
		logging.Field{Key: "client_id", Value: client.ID},
		logging.Strings("scopes", client.Scopes),
	)
	return client, secret, nil
}

// EnsureClient creates the client described by spec unless one with the
// same ID exists. It reports whether a client was created.
func (m *Manager) EnsureClient(ctx context.Context, spec ClientSpec) (bool, error) {
	if spec.ID == "" || spec.Secret == "" {
		return false, errors.ConfigurationError("bootstrap client needs an id and a secret")
	}
	if _, err := m.store.GetClient(ctx, spec.ID); err == nil {
		return false, nil
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return false, errors.InternalError("failed to load client", err)
	}

	if _, _, err := m.CreateClient(ctx, spec); err != nil {
		if errors.IsType(err, errors.ErrTypeConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) GetClient(ctx context.Context, id string) (*models.ApiClient, error) {
	client, err := m.store.GetClient(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NotFoundError("client")
		}
		return nil, errors.InternalError("failed to load client", err)
	}
	return client, nil
}

func (m *Manager) ListClients(ctx context.Context, limit, offset int) ([]*models.ApiClient, int, error) {
	clients, total, err := m.store.ListClients(ctx, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list clients", err)
	}
	return clients, total, nil
}

// RevokeClient permanently revokes a client and every token it holds.
// Revoking an already revoked client is a no-op.
func (m *Manager) RevokeClient(ctx context.Context, clientID string) error {
	client, err := m.GetClient(ctx, clientID)
	if err != nil {
		return err
	}

	if client.Status != models.ClientRevoked {
		if err := m.store.UpdateClientStatus(ctx, clientID, models.ClientRevoked, m.now()); err != nil {
			return errors.InternalError("failed to revoke client", err)
		}
	}
	n, err := m.store.RevokeClientTokens(ctx, clientID)
	if err != nil {
		return errors.InternalError("failed to revoke client tokens", err)
	}

	m.audit(ctx, models.AuditClientRevoked, clientID, "", "")
	m.logger.WithContext(ctx).Warn("API client revoked",
		logging.Field{Key: "client_id", Value: clientID},
		logging.Field{Key: "tokens_revoked", Value: n},
	)
	return nil
}

// SuspendClient blocks a client's tokens until ActivateClient is called.
func (m *Manager) SuspendClient(ctx context.Context, clientID string) error {
	return m.setStatus(ctx, clientID, models.ClientSuspended, models.AuditClientSuspended)
}

// ActivateClient lifts a suspension. Revoked clients cannot be reactivated.
func (m *Manager) ActivateClient(ctx context.Context, clientID string) error {
	return m.setStatus(ctx, clientID, models.ClientActive, models.AuditClientActivated)
}

func (m *Manager) setStatus(ctx context.Context, clientID string, status models.ClientStatus, action string) error {
	client, err := m.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if client.Status == models.ClientRevoked {
		return errors.ConflictError("client has been revoked")
	}
	if client.Status == status {
		return nil
	}

	if err := m.store.UpdateClientStatus(ctx, clientID, status, m.now()); err != nil {
		return errors.InternalError("failed to update client status", err)
	}
	m.audit(ctx, action, clientID, "", "")
	return nil
}

// ListAudit returns audit entries, newest first.
func (m *Manager) ListAudit(ctx context.Context, clientID string, limit, offset int) ([]*models.AuditEntry, int, error) {
	entries, total, err := m.store.ListAudit(ctx, clientID, limit, offset)
	if err != nil {
		return nil, 0, errors.InternalError("failed to list audit entries", err)
	}
	return entries, total, nil
}
