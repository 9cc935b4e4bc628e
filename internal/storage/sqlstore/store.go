// Package sqlstore implements storage.Storage on database/sql. The sqlite and
// postgres packages open the connection and pick the Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"api-gateway/internal/models"
	"api-gateway/internal/storage"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Name string
	// Numbered switches ? placeholders to $1, $2, ...
	Numbered bool
	// ForUpdate is appended to row reads inside transactions.
	ForUpdate string
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{Name: "postgres", Numbered: true, ForUpdate: " FOR UPDATE"}
)

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Pool bounds the connection pool. Zero values keep the database/sql
// defaults.
type Pool struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Open connects with driver, pings within timeout and applies the schema.
func Open(driver, dsn string, dialect Dialect, pool Pool, timeout time.Duration) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MaxIdle > 0 {
		db.SetMaxIdleConns(pool.MaxIdle)
	}
	if pool.MaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.MaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s database: %w", dialect.Name, err)
	}

	store, err := New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database and applies the schema.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying pool for callers that need raw access.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q execer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q execer, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.queryRow(ctx, s.db, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Clients

const clientColumns = `id, name, secret_hash, scopes, tier, status, max_token_lifetime, created_at, updated_at`

func (s *Store) CreateClient(ctx context.Context, client *models.ApiClient) error {
	_, err := s.exec(ctx, s.db, `INSERT INTO api_clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID, client.Name, client.SecretHash, encodeList(client.Scopes), client.Tier, string(client.Status),
		int64(client.MaxTokenLifetime), millis(client.CreatedAt), millis(client.UpdatedAt))
	return s.insertErr(ctx, err, "SELECT COUNT(*) FROM api_clients WHERE id = ?", client.ID)
}

func (s *Store) GetClient(ctx context.Context, id string) (*models.ApiClient, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+clientColumns+` FROM api_clients WHERE id = ?`, id)
	client, err := scanClient(row)
	if err != nil {
		return nil, notFound(err, "client")
	}
	return client, nil
}

func (s *Store) ListClients(ctx context.Context, limit, offset int) ([]*models.ApiClient, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM api_clients`)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	rows, err := s.query(ctx, s.db, `SELECT `+clientColumns+` FROM api_clients ORDER BY created_at, id`+s.limitClause(limit, offset))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.ApiClient
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	return clients, total, rows.Err()
}

func (s *Store) UpdateClientStatus(ctx context.Context, id string, status models.ClientStatus, at time.Time) error {
	res, err := s.exec(ctx, s.db, `UPDATE api_clients SET status = ?, updated_at = ? WHERE id = ?`, string(status), millis(at), id)
	return affected(res, err, "client")
}

func scanClient(row scanner) (*models.ApiClient, error) {
	var (
		c                    models.ApiClient
		scopes, status       string
		lifetime             int64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.Name, &c.SecretHash, &scopes, &c.Tier, &status, &lifetime, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.Scopes = decodeList(scopes)
	c.Status = models.ClientStatus(status)
	c.MaxTokenLifetime = time.Duration(lifetime)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// Tokens

func (s *Store) SaveToken(ctx context.Context, token *models.AccessToken) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO access_tokens (id, client_id, kind, scopes, issued_at, expires_at, revoked) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.ClientID, string(token.Kind), encodeList(token.Scopes),
		millis(token.IssuedAt), millis(token.ExpiresAt), token.Revoked)
	return s.insertErr(ctx, err, "SELECT COUNT(*) FROM access_tokens WHERE id = ?", token.ID)
}

func (s *Store) GetToken(ctx context.Context, id string) (*models.AccessToken, error) {
	var (
		t                   models.AccessToken
		kind, scopes        string
		issuedAt, expiresAt int64
	)
	err := s.queryRow(ctx, s.db,
		`SELECT id, client_id, kind, scopes, issued_at, expires_at, revoked FROM access_tokens WHERE id = ?`, id).
		Scan(&t.ID, &t.ClientID, &kind, &scopes, &issuedAt, &expiresAt, &t.Revoked)
	if err != nil {
		return nil, notFound(err, "token")
	}
	t.Kind = models.TokenKind(kind)
	t.Scopes = decodeList(scopes)
	t.IssuedAt = fromMillis(issuedAt)
	t.ExpiresAt = fromMillis(expiresAt)
	return &t, nil
}

func (s *Store) RevokeToken(ctx context.Context, id string) error {
	res, err := s.exec(ctx, s.db, `UPDATE access_tokens SET revoked = ? WHERE id = ?`, true, id)
	return affected(res, err, "token")
}

func (s *Store) RevokeClientTokens(ctx context.Context, clientID string) (int, error) {
	res, err := s.exec(ctx, s.db, `UPDATE access_tokens SET revoked = ? WHERE client_id = ? AND revoked = ?`, true, clientID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke client tokens: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) PurgeExpiredTokens(ctx context.Context, before time.Time) (int, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM access_tokens WHERE expires_at < ?`, millis(before))
	if err != nil {
		return 0, fmt.Errorf("failed to purge tokens: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Subscriptions

const subscriptionColumns = `id, client_id, target_url, event_types, secret, status, consecutive_failures, created_at, updated_at, deleted_at`

func (s *Store) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := s.exec(ctx, s.db, `INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ClientID, sub.TargetURL, encodeList(sub.EventTypes), sub.Secret, string(sub.Status),
		sub.ConsecutiveFailures, millis(sub.CreatedAt), millis(sub.UpdatedAt), nullMillis(sub.DeletedAt))
	return s.insertErr(ctx, err, "SELECT COUNT(*) FROM subscriptions WHERE id = ?", sub.ID)
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, notFound(err, "subscription")
	}
	return sub, nil
}

func (s *Store) ListSubscriptionsByClient(ctx context.Context, clientID string) ([]*models.Subscription, error) {
	return s.listSubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE client_id = ? AND deleted_at IS NULL ORDER BY created_at, id`, clientID)
}

func (s *Store) ListSubscriptionsForEvent(ctx context.Context, eventType string) ([]*models.Subscription, error) {
	subs, err := s.listSubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE deleted_at IS NULL AND status IN (?, ?) ORDER BY created_at, id`,
		string(models.SubscriptionActive), string(models.SubscriptionFailing))
	if err != nil {
		return nil, err
	}

	matched := subs[:0]
	for _, sub := range subs {
		if sub.Matches(eventType) {
			matched = append(matched, sub)
		}
	}
	return matched, nil
}

func (s *Store) listSubscriptions(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus, at time.Time) error {
	query := `UPDATE subscriptions SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	if status == models.SubscriptionActive {
		query = `UPDATE subscriptions SET status = ?, updated_at = ?, consecutive_failures = 0 WHERE id = ? AND deleted_at IS NULL`
	}
	res, err := s.exec(ctx, s.db, query, string(status), millis(at), id)
	return affected(res, err, "subscription")
}

func (s *Store) UpdateSubscriptionSecret(ctx context.Context, id, secret string, at time.Time) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE subscriptions SET secret = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`, secret, millis(at), id)
	return affected(res, err, "subscription")
}

func (s *Store) DeleteSubscription(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE subscriptions SET status = ?, deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		string(models.SubscriptionPaused), millis(at), millis(at), id)
	return affected(res, err, "subscription")
}

func (s *Store) RecordDeliveryResult(ctx context.Context, id string, success bool, threshold int, at time.Time) (models.SubscriptionStatus, *models.Subscription, error) {
	var (
		previous models.SubscriptionStatus
		updated  *models.Subscription
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var (
			status   string
			failures int
		)
		err := s.queryRow(ctx, tx, `SELECT status, consecutive_failures FROM subscriptions WHERE id = ?`+s.dialect.ForUpdate, id).
			Scan(&status, &failures)
		if err != nil {
			return notFound(err, "subscription")
		}

		previous = models.SubscriptionStatus(status)
		next := previous
		if success {
			failures = 0
			if previous == models.SubscriptionFailing {
				next = models.SubscriptionActive
			}
		} else {
			failures++
			if previous == models.SubscriptionActive && failures >= threshold {
				next = models.SubscriptionFailing
			}
		}

		if _, err := s.exec(ctx, tx, `UPDATE subscriptions SET status = ?, consecutive_failures = ?, updated_at = ? WHERE id = ?`,
			string(next), failures, millis(at), id); err != nil {
			return fmt.Errorf("failed to update subscription: %w", err)
		}

		updated, err = scanSubscription(s.queryRow(ctx, tx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id))
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return previous, updated, nil
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	var (
		sub                  models.Subscription
		eventTypes, status   string
		createdAt, updatedAt int64
		deletedAt            sql.NullInt64
	)
	if err := row.Scan(&sub.ID, &sub.ClientID, &sub.TargetURL, &eventTypes, &sub.Secret, &status,
		&sub.ConsecutiveFailures, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	sub.EventTypes = decodeList(eventTypes)
	sub.Status = models.SubscriptionStatus(status)
	sub.CreatedAt = fromMillis(createdAt)
	sub.UpdatedAt = fromMillis(updatedAt)
	sub.DeletedAt = fromNullMillis(deletedAt)
	return &sub, nil
}

// Deliveries

func (s *Store) SaveEvent(ctx context.Context, event *models.Event) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO events (id, type, occurred_at, critical, data, body, created_at) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Type, millis(event.OccurredAt), event.Critical, string(event.Data), string(event.Body), millis(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var (
		e                     models.Event
		data, body            string
		occurredAt, createdAt int64
	)
	err := s.queryRow(ctx, s.db,
		`SELECT id, type, occurred_at, critical, data, body, created_at FROM events WHERE id = ?`, id).
		Scan(&e.ID, &e.Type, &occurredAt, &e.Critical, &data, &body, &createdAt)
	if err != nil {
		return nil, notFound(err, "event")
	}
	e.OccurredAt = fromMillis(occurredAt)
	e.CreatedAt = fromMillis(createdAt)
	e.Data = json.RawMessage(data)
	e.Body = []byte(body)
	return &e, nil
}

const attemptColumns = `id, subscription_id, event_id, event_type, occurred_at, attempt_number, scheduled_at, attempted_at, outcome, http_status, error, claimed_until, created_at`

func (s *Store) EnqueueAttempt(ctx context.Context, attempt *models.DeliveryAttempt) (bool, error) {
	return s.insertAttempt(ctx, s.db, attempt)
}

func (s *Store) insertAttempt(ctx context.Context, q execer, a *models.DeliveryAttempt) (bool, error) {
	res, err := s.exec(ctx, q, `INSERT INTO delivery_attempts (`+attemptColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription_id, event_id, attempt_number) DO NOTHING`,
		a.ID, a.SubscriptionID, a.EventID, a.EventType, millis(a.OccurredAt), a.AttemptNumber, millis(a.ScheduledAt),
		nullMillis(a.AttemptedAt), string(a.Outcome), a.HTTPStatus, a.Error, nullMillis(a.ClaimedUntil), millis(a.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to enqueue attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ClaimAttempt(ctx context.Context, id string, now, until time.Time) (bool, error) {
	res, err := s.exec(ctx, s.db, `UPDATE delivery_attempts SET claimed_until = ?
		WHERE id = ? AND outcome = ? AND (claimed_until IS NULL OR claimed_until <= ?)`,
		millis(until), id, string(models.OutcomePending), millis(now))
	if err != nil {
		return false, fmt.Errorf("failed to claim attempt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	exists, err := s.count(ctx, `SELECT COUNT(*) FROM delivery_attempts WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, storage.ErrNotFound
	}
	return false, nil
}

func (s *Store) CompleteAttempt(ctx context.Context, done *models.DeliveryAttempt, next *models.DeliveryAttempt) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `UPDATE delivery_attempts
			SET outcome = ?, http_status = ?, error = ?, attempted_at = ?, claimed_until = NULL WHERE id = ?`,
			string(done.Outcome), done.HTTPStatus, done.Error, nullMillis(done.AttemptedAt), done.ID)
		if err := affected(res, err, "attempt"); err != nil {
			return err
		}
		if next != nil {
			if _, err := s.insertAttempt(ctx, tx, next); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) RescheduleAttempt(ctx context.Context, id string, at time.Time) error {
	res, err := s.exec(ctx, s.db,
		`UPDATE delivery_attempts SET scheduled_at = ?, claimed_until = NULL WHERE id = ?`, millis(at), id)
	return affected(res, err, "attempt")
}

func (s *Store) ListDueAttempts(ctx context.Context, now time.Time, limit int) ([]*models.DeliveryAttempt, error) {
	attempts, err := s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE outcome = ? AND scheduled_at <= ? AND (claimed_until IS NULL OR claimed_until <= ?)
		ORDER BY occurred_at, attempt_number`+s.limitClause(limit, 0),
		string(models.OutcomePending), millis(now), millis(now))
	return attempts, err
}

func (s *Store) ListAttempts(ctx context.Context, subscriptionID string, limit, offset int) ([]*models.DeliveryAttempt, int, error) {
	total, err := s.count(ctx, `SELECT COUNT(*) FROM delivery_attempts WHERE subscription_id = ?`, subscriptionID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	attempts, err := s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE subscription_id = ? ORDER BY created_at DESC, attempt_number DESC`+s.limitClause(limit, offset), subscriptionID)
	return attempts, total, err
}

func (s *Store) ListAttemptsForEvent(ctx context.Context, subscriptionID, eventID string) ([]*models.DeliveryAttempt, error) {
	return s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE subscription_id = ? AND event_id = ? ORDER BY attempt_number`, subscriptionID, eventID)
}

func (s *Store) ListDeadLetters(ctx context.Context, subscriptionID string, limit, offset int) ([]*models.DeliveryAttempt, int, error) {
	dead := string(models.OutcomeDeadLettered)
	total, err := s.count(ctx, `SELECT COUNT(*) FROM delivery_attempts WHERE subscription_id = ? AND outcome = ?`, subscriptionID, dead)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	attempts, err := s.listAttempts(ctx, `SELECT `+attemptColumns+` FROM delivery_attempts
		WHERE subscription_id = ? AND outcome = ? ORDER BY created_at DESC`+s.limitClause(limit, offset), subscriptionID, dead)
	return attempts, total, err
}

func (s *Store) CountPendingAttempts(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM delivery_attempts WHERE outcome = ?`, string(models.OutcomePending))
}

func (s *Store) listAttempts(ctx context.Context, query string, args ...any) ([]*models.DeliveryAttempt, error) {
	rows, err := s.query(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.DeliveryAttempt
	for rows.Next() {
		var (
			a                                  models.DeliveryAttempt
			outcome                            string
			occurredAt, scheduledAt, createdAt int64
			attemptedAt, claimedUntil          sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.SubscriptionID, &a.EventID, &a.EventType, &occurredAt, &a.AttemptNumber,
			&scheduledAt, &attemptedAt, &outcome, &a.HTTPStatus, &a.Error, &claimedUntil, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Outcome = models.DeliveryOutcome(outcome)
		a.OccurredAt = fromMillis(occurredAt)
		a.ScheduledAt = fromMillis(scheduledAt)
		a.CreatedAt = fromMillis(createdAt)
		a.AttemptedAt = fromNullMillis(attemptedAt)
		a.ClaimedUntil = fromNullMillis(claimedUntil)
		attempts = append(attempts, &a)
	}
	return attempts, rows.Err()
}

// Metrics

func (s *Store) AppendSamples(ctx context.Context, samples []models.MetricSample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, sample := range samples {
			if _, err := s.exec(ctx, tx, `INSERT INTO metric_samples (component, metric, value, recorded_at) VALUES (?, ?, ?, ?)`,
				sample.Component, sample.Metric, sample.Value, millis(sample.Timestamp)); err != nil {
				return fmt.Errorf("failed to append sample: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ListSamples(ctx context.Context, component string, since, until time.Time) ([]models.MetricSample, error) {
	query := `SELECT component, metric, value, recorded_at FROM metric_samples WHERE recorded_at >= ? AND recorded_at < ?`
	args := []any{millis(since), millis(until)}
	if component != "" {
		query += ` AND component = ?`
		args = append(args, component)
	}
	rows, err := s.query(ctx, s.db, query+` ORDER BY recorded_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var samples []models.MetricSample
	for rows.Next() {
		var (
			sample models.MetricSample
			at     int64
		)
		if err := rows.Scan(&sample.Component, &sample.Metric, &sample.Value, &at); err != nil {
			return nil, err
		}
		sample.Timestamp = fromMillis(at)
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func (s *Store) SaveRollups(ctx context.Context, rollups []models.Rollup) error {
	if len(rollups) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rollups {
			_, err := s.exec(ctx, tx, `INSERT INTO metric_rollups
				(component, metric, window_start, window_ms, sample_count, sum_value, min_value, max_value, p50, p95)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (component, metric, window_start, window_ms) DO NOTHING`,
				r.Component, r.Metric, millis(r.WindowStart), r.Window.Milliseconds(), r.Count, r.Sum, r.Min, r.Max, r.P50, r.P95)
			if err != nil {
				return fmt.Errorf("failed to save rollup: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ListRollups(ctx context.Context, component string, since time.Time) ([]models.Rollup, error) {
	query := `SELECT component, metric, window_start, window_ms, sample_count, sum_value, min_value, max_value, p50, p95
		FROM metric_rollups WHERE window_start >= ?`
	args := []any{millis(since)}
	if component != "" {
		query += ` AND component = ?`
		args = append(args, component)
	}
	rows, err := s.query(ctx, s.db, query+` ORDER BY window_start, component, metric`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rollups: %w", err)
	}
	defer rows.Close()

	var rollups []models.Rollup
	for rows.Next() {
		var (
			r             models.Rollup
			start, window int64
		)
		if err := rows.Scan(&r.Component, &r.Metric, &start, &window, &r.Count, &r.Sum, &r.Min, &r.Max, &r.P50, &r.P95); err != nil {
			return nil, err
		}
		r.WindowStart = fromMillis(start)
		r.Window = time.Duration(window) * time.Millisecond
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}

// Audit

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO audit_log (id, action, client_id, token_id, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.ClientID, entry.TokenID, entry.Detail, millis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, clientID string, limit, offset int) ([]*models.AuditEntry, int, error) {
	where := ""
	var args []any
	if clientID != "" {
		where = ` WHERE client_id = ?`
		args = append(args, clientID)
	}

	total, err := s.count(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}

	rows, err := s.query(ctx, s.db, `SELECT id, action, client_id, token_id, detail, created_at FROM audit_log`+where+
		` ORDER BY created_at DESC, id DESC`+s.limitClause(limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e  models.AuditEntry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.ClientID, &e.TokenID, &e.Detail, &at); err != nil {
			return nil, 0, err
		}
		e.CreatedAt = fromMillis(at)
		entries = append(entries, &e)
	}
	return entries, total, rows.Err()
}

// helpers

type scanner interface {
	Scan(dest ...any) error
}

// insertErr maps a failed insert of an existing key to storage.ErrDuplicate.
func (s *Store) insertErr(ctx context.Context, err error, existsQuery string, id string) error {
	if err == nil {
		return nil
	}
	if n, countErr := s.count(ctx, existsQuery, id); countErr == nil && n > 0 {
		return storage.ErrDuplicate
	}
	return fmt.Errorf("failed to insert: %w", err)
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func affected(res sql.Result, err error, what string) error {
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) limitClause(limit, offset int) string {
	switch {
	case limit > 0:
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case offset <= 0:
		return ""
	case s.dialect.Numbered:
		return fmt.Sprintf(" OFFSET %d", offset)
	default:
		return fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, _ := json.Marshal(values)
	return string(b)
}

func decodeList(raw string) []string {
	var values []string
	_ = json.Unmarshal([]byte(raw), &values)
	return values
}
