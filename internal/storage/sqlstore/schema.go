package sqlstore

// Timestamps are unix milliseconds and string slices are JSON arrays so the
// same statements run on SQLite and PostgreSQL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS api_clients (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		secret_hash TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '[]',
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		max_token_lifetime BIGINT NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS access_tokens (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '[]',
		issued_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		revoked BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_access_tokens_client ON access_tokens (client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_access_tokens_expiry ON access_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		target_url TEXT NOT NULL,
		event_types TEXT NOT NULL DEFAULT '[]',
		secret TEXT NOT NULL,
		status TEXT NOT NULL,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		deleted_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_client ON subscriptions (client_id)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		occurred_at BIGINT NOT NULL,
		critical BOOLEAN NOT NULL DEFAULT FALSE,
		data TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_attempts (
		id TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		occurred_at BIGINT NOT NULL,
		attempt_number INTEGER NOT NULL,
		scheduled_at BIGINT NOT NULL,
		attempted_at BIGINT,
		outcome TEXT NOT NULL,
		http_status INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		claimed_until BIGINT,
		created_at BIGINT NOT NULL,
		UNIQUE (subscription_id, event_id, attempt_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_due ON delivery_attempts (outcome, scheduled_at)`,
	`CREATE INDEX IF NOT EXISTS idx_delivery_attempts_subscription ON delivery_attempts (subscription_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS metric_samples (
		component TEXT NOT NULL,
		metric TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		recorded_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_metric_samples_time ON metric_samples (component, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS metric_rollups (
		component TEXT NOT NULL,
		metric TEXT NOT NULL,
		window_start BIGINT NOT NULL,
		window_ms BIGINT NOT NULL,
		sample_count INTEGER NOT NULL,
		sum_value DOUBLE PRECISION NOT NULL,
		min_value DOUBLE PRECISION NOT NULL,
		max_value DOUBLE PRECISION NOT NULL,
		p50 DOUBLE PRECISION NOT NULL,
		p95 DOUBLE PRECISION NOT NULL,
		UNIQUE (component, metric, window_start, window_ms)
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		token_id TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_client ON audit_log (client_id, created_at)`,
}
