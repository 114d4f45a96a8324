package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
)

const ruleColumns = `
	id, user_id, name, priority, is_active, condition_logic,
	conditions, actions, transfer_account_id, created_at, updated_at, deleted_at`

// CreateRule creates a new automation rule.
func (s *queries) CreateRule(ctx context.Context, rule *model.AutomationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.ConditionLogic == "" {
		rule.ConditionLogic = model.LogicAnd
	}

	conditionsJSON, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	now := time.Now().UTC()
	result, err := s.q.ExecContext(ctx, `
		INSERT INTO automation_rules (
			user_id, name, priority, is_active, condition_logic,
			conditions, actions, transfer_account_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, rule.Name, rule.Priority, rule.IsActive, string(rule.ConditionLogic),
		string(conditionsJSON), string(actionsJSON), nullString(rule.TransferAccountID), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", classifyError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now

	return nil
}

// GetActiveRules retrieves all active, non-deleted rules ordered by priority.
func (s *queries) GetActiveRules(ctx context.Context, userID string) ([]model.AutomationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE user_id = ? AND is_active = 1 AND deleted_at IS NULL
		ORDER BY priority DESC, id ASC`,
		userID)
}

// ListRules retrieves every non-deleted rule, active or not.
func (s *queries) ListRules(ctx context.Context, userID string) ([]model.AutomationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryRules(ctx, `
		SELECT `+ruleColumns+`
		FROM automation_rules
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY priority DESC, id ASC`,
		userID)
}

// DeleteRule soft-deletes a rule so it is excluded from evaluation.
func (s *queries) DeleteRule(ctx context.Context, userID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.q.ExecContext(ctx, `
		UPDATE automation_rules SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`,
		now, now, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", classifyError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %d: %w", id, common.ErrNotFound)
	}

	return nil
}

func (s *queries) queryRules(ctx context.Context, query string, args ...any) ([]model.AutomationRule, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.AutomationRule
	for rows.Next() {
		var (
			rule                       model.AutomationRule
			logic, conditions, actions string
			transferAccount            sql.NullString
			deletedAt                  sql.NullTime
		)
		err := rows.Scan(
			&rule.ID, &rule.UserID, &rule.Name, &rule.Priority, &rule.IsActive, &logic,
			&conditions, &actions, &transferAccount, &rule.CreatedAt, &rule.UpdatedAt, &deletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rule.ConditionLogic = model.ConditionLogic(logic)
		rule.TransferAccountID = transferAccount.String
		if deletedAt.Valid {
			t := deletedAt.Time
			rule.DeletedAt = &t
		}
		if err := json.Unmarshal([]byte(conditions), &rule.Conditions); err != nil {
			return nil, fmt.Errorf("invalid conditions for rule %d: %w", rule.ID, err)
		}
		if err := json.Unmarshal([]byte(actions), &rule.Actions); err != nil {
			return nil, fmt.Errorf("invalid actions for rule %d: %w", rule.ID, err)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}
