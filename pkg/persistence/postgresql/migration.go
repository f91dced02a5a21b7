package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create models table
			CREATE TABLE models (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL CHECK (status IN ('draft', 'published', 'archived')),
				version VARCHAR(50) NOT NULL DEFAULT '',
				nodes JSONB DEFAULT '{}',
				action_nodes JSONB DEFAULT '{}',
				metadata JSONB DEFAULT '{}',
				permissions JSONB DEFAULT '{}',
				owner VARCHAR(255),
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_models_status ON models(status);
			CREATE INDEX idx_models_owner ON models(owner);
			CREATE INDEX idx_models_created_at ON models(created_at);
			CREATE INDEX idx_models_deleted_at ON models(deleted_at);
		`,
		2: `
			-- Migration 2: agent registry and link graph

			CREATE TABLE agents (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				kind VARCHAR(100) NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				can_read BOOLEAN NOT NULL DEFAULT FALSE,
				can_write BOOLEAN NOT NULL DEFAULT FALSE,
				can_execute BOOLEAN NOT NULL DEFAULT FALSE,
				can_analyze BOOLEAN NOT NULL DEFAULT FALSE,
				can_orchestrate BOOLEAN NOT NULL DEFAULT FALSE,
				max_concurrent_tasks INT NOT NULL DEFAULT 0,
				supported_data_types JSONB DEFAULT '[]',
				total_executions BIGINT NOT NULL DEFAULT 0,
				successes BIGINT NOT NULL DEFAULT 0,
				failures BIGINT NOT NULL DEFAULT 0,
				total_duration_ms BIGINT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_agents_enabled ON agents(enabled);
			CREATE INDEX idx_agents_kind ON agents(kind);

			CREATE TABLE node_links (
				id VARCHAR(255) PRIMARY KEY,
				source_feature VARCHAR(255) NOT NULL,
				target_feature VARCHAR(255) NOT NULL,
				source_entity_id VARCHAR(255) NOT NULL,
				target_entity_id VARCHAR(255) NOT NULL,
				source_node_id VARCHAR(255) NOT NULL DEFAULT '',
				target_node_id VARCHAR(255) NOT NULL DEFAULT '',
				link_type VARCHAR(50) NOT NULL,
				strength DOUBLE PRECISION NOT NULL CHECK (strength >= 0 AND strength <= 1),
				context JSONB DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_node_links_source_entity ON node_links(source_entity_id);
			CREATE INDEX idx_node_links_target_entity ON node_links(target_entity_id);
			CREATE INDEX idx_node_links_type ON node_links(link_type);
			CREATE INDEX idx_node_links_strength ON node_links(strength);
		`,
		3: `
			-- Migration 3: tombstone bookkeeping and audit history

			ALTER TABLE models
				ADD COLUMN deleted BOOLEAN NOT NULL DEFAULT FALSE,
				ADD COLUMN deleted_by VARCHAR(255) NOT NULL DEFAULT '';

			CREATE INDEX idx_models_deleted ON models(deleted);

			CREATE TABLE audit_log (
				id VARCHAR(255) PRIMARY KEY,
				action VARCHAR(100) NOT NULL,
				entity_id VARCHAR(255) NOT NULL,
				actor VARCHAR(255) NOT NULL,
				occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
				details JSONB DEFAULT '{}'
			);

			CREATE INDEX idx_audit_log_entity_id ON audit_log(entity_id);
			CREATE INDEX idx_audit_log_action ON audit_log(action);
			CREATE INDEX idx_audit_log_occurred_at ON audit_log(occurred_at);
		`,
	}
}
