package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/ticketflow/pkg/schema"
)

// timeLayout is fixed width so that text comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// openStatuses is the SQL predicate for tickets that still count as workload.
const openStatuses = `status NOT IN ('` + StatusResolved + `', '` + StatusClosed + `')`

var _ Store = (*LibSQLStore)(nil)

// LibSQLStore implements Store using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db    *sql.DB
	clock func() time.Time
}

// Option configures a LibSQLStore.
type Option func(*LibSQLStore)

// WithClock overrides the time source used for row timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *LibSQLStore) { s.clock = clock }
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string, opts ...Option) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	s := &LibSQLStore{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

func (s *LibSQLStore) now() time.Time { return s.clock().UTC() }

// --- Seeding ---

// CreateUser inserts a user together with its skills.
func (s *LibSQLStore) CreateUser(ctx context.Context, u *User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, active, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, nullStr(u.Email), boolInt(u.Active), formatTime(u.CreatedAt),
	); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	for _, skill := range u.Skills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_skills (user_id, skill) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			u.ID, skill,
		); err != nil {
			return fmt.Errorf("insert user skill: %w", err)
		}
	}
	return tx.Commit()
}

// CreateTicket inserts a ticket. Status and priority default to open/medium.
func (s *LibSQLStore) CreateTicket(ctx context.Context, t *Ticket) error {
	now := s.now()
	if t.Status == "" {
		t.Status = "open"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, subject, description, category, status, priority, assigned_to, group_id, escalated, reopen_count, escalation_level, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Subject, t.Description, nullStr(t.Category), t.Status, t.Priority,
		nullStr(t.AssignedTo), nullStr(t.GroupID), boolInt(t.Escalated), t.ReopenCount, t.EscalationLevel,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	return err
}

// CreateSLAPolicy inserts a policy and its rules.
func (s *LibSQLStore) CreateSLAPolicy(ctx context.Context, p *SLAPolicy) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sla_policies (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, formatTime(s.now()),
	); err != nil {
		return fmt.Errorf("insert sla policy: %w", err)
	}
	for _, r := range p.Rules {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		r.PolicyID = p.ID
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sla_rules (id, policy_id, priority, response_time_minutes, resolution_time_hours, sort_order)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.PolicyID, nullStr(r.Priority), r.ResponseTimeMinutes, r.ResolutionTimeHours, r.SortOrder,
		); err != nil {
			return fmt.Errorf("insert sla rule: %w", err)
		}
	}
	return tx.Commit()
}

// --- Tickets ---

func (s *LibSQLStore) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	t := &Ticket{}
	var (
		category, assignedTo, groupID sql.NullString
		escalated                     int64
		createdAt, updatedAt          string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, subject, description, category, status, priority, assigned_to, group_id, escalated, reopen_count, escalation_level, created_at, updated_at
		 FROM tickets WHERE id = ?`, id,
	).Scan(&t.ID, &t.Subject, &t.Description, &category, &t.Status, &t.Priority, &assignedTo, &groupID,
		&escalated, &t.ReopenCount, &t.EscalationLevel, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("ticket", id)
	}
	if err != nil {
		return nil, err
	}
	t.Category = category.String
	t.AssignedTo = assignedTo.String
	t.GroupID = groupID.String
	t.Escalated = escalated != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

func (s *LibSQLStore) GetUser(ctx context.Context, id string) (*User, error) {
	u := &User{}
	var (
		email     sql.NullString
		active    int64
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, active, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &email, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("user", id)
	}
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.Active = active != 0
	u.CreatedAt = parseTime(createdAt)

	rows, err := s.db.QueryContext(ctx, `SELECT skill FROM user_skills WHERE user_id = ? ORDER BY skill`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var skill string
		if err := rows.Scan(&skill); err != nil {
			return nil, err
		}
		u.Skills = append(u.Skills, skill)
	}
	return u, rows.Err()
}

func (s *LibSQLStore) AssignTicket(ctx context.Context, ticketID, userID string) error {
	return s.updateTicket(ctx, ticketID, "assigned_to = ?", userID)
}

func (s *LibSQLStore) SetTicketGroup(ctx context.Context, ticketID, groupID string) error {
	return s.updateTicket(ctx, ticketID, "group_id = ?", groupID)
}

func (s *LibSQLStore) UpdateTicketStatus(ctx context.Context, ticketID, status string) error {
	return s.updateTicket(ctx, ticketID, "status = ?", status)
}

func (s *LibSQLStore) UpdateTicketPriority(ctx context.Context, ticketID, priority string) error {
	return s.updateTicket(ctx, ticketID, "priority = ?", priority)
}

func (s *LibSQLStore) updateTicket(ctx context.Context, ticketID, set string, arg any) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET `+set+`, updated_at = ? WHERE id = ?`,
		arg, formatTime(s.now()), ticketID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "ticket", ticketID)
}

func (s *LibSQLStore) EscalateTicket(ctx context.Context, ticketID, toUserID, effectKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now()
	fresh, err := claimEffect(ctx, tx, "escalate", effectKey, now)
	if err != nil {
		return err
	}
	var bump int64
	if fresh {
		bump = 1
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE tickets SET assigned_to = ?, escalated = 1, escalation_level = escalation_level + ?, updated_at = ? WHERE id = ?`,
		toUserID, bump, formatTime(now), ticketID,
	)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "ticket", ticketID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Comments & tags ---

func (s *LibSQLStore) AddComment(ctx context.Context, c *Comment) (bool, error) {
	if err := s.requireTicket(ctx, c.TicketID); err != nil {
		return false, err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_comments (id, ticket_id, author, body, internal, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(idempotency_key) DO NOTHING`,
		c.ID, c.TicketID, c.Author, c.Body, boolInt(c.Internal), nullStr(c.IdempotencyKey), formatTime(c.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert comment: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *LibSQLStore) ListComments(ctx context.Context, ticketID string) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ticket_id, author, body, internal, idempotency_key, created_at
		 FROM ticket_comments WHERE ticket_id = ? ORDER BY created_at, id`, ticketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*Comment
	for rows.Next() {
		c := &Comment{}
		var (
			internal  int64
			key       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.TicketID, &c.Author, &c.Body, &internal, &key, &createdAt); err != nil {
			return nil, err
		}
		c.Internal = internal != 0
		c.IdempotencyKey = key.String
		c.CreatedAt = parseTime(createdAt)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (s *LibSQLStore) AddTag(ctx context.Context, ticketID, tag string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := requireTicketTx(ctx, tx, ticketID); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tags (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		uuid.New().String(), tag, formatTime(s.now()),
	); err != nil {
		return false, fmt.Errorf("insert tag: %w", err)
	}
	var tagID string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, tag).Scan(&tagID); err != nil {
		return false, err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_tags (ticket_id, tag_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		ticketID, tagID,
	)
	if err != nil {
		return false, fmt.Errorf("link tag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, tx.Commit()
}

func (s *LibSQLStore) RemoveTag(ctx context.Context, ticketID, tag string) (bool, error) {
	if err := s.requireTicket(ctx, ticketID); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ticket_tags WHERE ticket_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
		ticketID, tag,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *LibSQLStore) ListTags(ctx context.Context, ticketID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.name FROM tags t JOIN ticket_tags tt ON tt.tag_id = t.id WHERE tt.ticket_id = ? ORDER BY t.name`,
		ticketID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// --- Generic fields ---

func (s *LibSQLStore) ReadField(ctx context.Context, ref FieldRef, rowID string) (any, error) {
	return readField(ctx, s.db, ref, rowID)
}

func (s *LibSQLStore) WriteField(ctx context.Context, ref FieldRef, rowID string, value any) error {
	v, err := ref.coerce(value)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ?, updated_at = ? WHERE %s = ?`,
			quoteIdent(ref.Table), quoteIdent(ref.Column), quoteIdent(ref.keyColumn())),
		v, formatTime(s.now()), rowID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fieldNotFound(ref, rowID)
	}
	return nil
}

func (s *LibSQLStore) IncrementField(ctx context.Context, ref FieldRef, rowID string, amount float64, effectKey string) (*IncrementResult, error) {
	if !ref.Numeric() {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupportedField, "field %s is not numeric", ref)
	}
	if amount != math.Trunc(amount) {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "amount %v must be a whole number for field %s", amount, ref)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := s.now()
	fresh, err := claimEffect(ctx, tx, "increment", effectKey, now)
	if err != nil {
		return nil, err
	}
	if fresh {
		res, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = %s + ?, updated_at = ? WHERE %s = ?`,
				quoteIdent(ref.Table), quoteIdent(ref.Column), quoteIdent(ref.Column), quoteIdent(ref.keyColumn())),
			int64(amount), formatTime(now), rowID,
		)
		if err != nil {
			return nil, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fieldNotFound(ref, rowID)
		}
	}
	value, err := readField(ctx, tx, ref, rowID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &IncrementResult{Value: value, Applied: fresh}, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readField(ctx context.Context, q queryRower, ref FieldRef, rowID string) (any, error) {
	dest, value := ref.scanTarget()
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`,
			quoteIdent(ref.Column), quoteIdent(ref.Table), quoteIdent(ref.keyColumn())),
		rowID,
	).Scan(dest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fieldNotFound(ref, rowID)
	}
	if err != nil {
		return nil, err
	}
	return value(), nil
}

// --- Assignment queries ---

func (s *LibSQLStore) LastAssignedAmong(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT assigned_to FROM tickets
		 WHERE assigned_to IN (`+placeholders(len(candidates))+`) AND `+openStatuses+`
		 ORDER BY updated_at DESC, id DESC LIMIT 1`,
		stringArgs(candidates)...,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return userID, err
}

func (s *LibSQLStore) OpenTicketCounts(ctx context.Context, candidates []string) (map[string]int, error) {
	counts := make(map[string]int, len(candidates))
	if len(candidates) == 0 {
		return counts, nil
	}
	for _, c := range candidates {
		counts[c] = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT assigned_to, COUNT(*) FROM tickets
		 WHERE assigned_to IN (`+placeholders(len(candidates))+`) AND `+openStatuses+`
		 GROUP BY assigned_to`,
		stringArgs(candidates)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			userID string
			n      int
		)
		if err := rows.Scan(&userID, &n); err != nil {
			return nil, err
		}
		counts[userID] = n
	}
	return counts, rows.Err()
}

func (s *LibSQLStore) SkillMatches(ctx context.Context, skills []string) ([]*SkillCandidate, error) {
	wanted := normalizeSkills(skills)
	if len(wanted) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.id,
		        COUNT(DISTINCT LOWER(s.skill)) AS matches,
		        (SELECT COUNT(*) FROM tickets t WHERE t.assigned_to = u.id AND t.`+openStatuses+`) AS open_tickets
		 FROM users u JOIN user_skills s ON s.user_id = u.id
		 WHERE u.active = 1 AND LOWER(s.skill) IN (`+placeholders(len(wanted))+`)
		 GROUP BY u.id
		 ORDER BY matches DESC, open_tickets ASC, u.id ASC`,
		stringArgs(wanted)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*SkillCandidate
	for rows.Next() {
		c := &SkillCandidate{}
		if err := rows.Scan(&c.UserID, &c.Matches, &c.OpenTickets); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func normalizeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	var out []string
	for _, s := range skills {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// --- SLA ---

func (s *LibSQLStore) FirstSLARule(ctx context.Context, policyID string) (*SLARule, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sla_policies WHERE id = ?`, policyID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("sla policy", policyID)
	}
	if err != nil {
		return nil, err
	}

	r := &SLARule{}
	var priority sql.NullString
	err = s.db.QueryRowContext(ctx,
		`SELECT id, policy_id, priority, response_time_minutes, resolution_time_hours, sort_order
		 FROM sla_rules WHERE policy_id = ? ORDER BY sort_order, id LIMIT 1`, policyID,
	).Scan(&r.ID, &r.PolicyID, &priority, &r.ResponseTimeMinutes, &r.ResolutionTimeHours, &r.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "sla policy %q has no rules", policyID)
	}
	if err != nil {
		return nil, err
	}
	r.Priority = priority.String
	return r, nil
}

func (s *LibSQLStore) UpsertTicketSLA(ctx context.Context, sla *TicketSLA) error {
	if err := s.requireTicket(ctx, sla.TicketID); err != nil {
		return err
	}
	now := s.now()
	if sla.CreatedAt.IsZero() {
		sla.CreatedAt = now
	}
	sla.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ticket_sla (ticket_id, policy_id, response_due, resolution_due, total_paused_seconds, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(ticket_id) DO UPDATE SET
		   policy_id = excluded.policy_id,
		   response_due = excluded.response_due,
		   resolution_due = excluded.resolution_due,
		   updated_at = excluded.updated_at`,
		sla.TicketID, sla.PolicyID, formatTime(sla.ResponseDue), formatTime(sla.ResolutionDue),
		formatTime(sla.CreatedAt), formatTime(sla.UpdatedAt),
	)
	return err
}

func (s *LibSQLStore) GetTicketSLA(ctx context.Context, ticketID string) (*TicketSLA, error) {
	sla := &TicketSLA{}
	var (
		responseDue, resolutionDue, createdAt, updatedAt string
		pausedAt                                         sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT ticket_id, policy_id, response_due, resolution_due, paused_at, total_paused_seconds, created_at, updated_at
		 FROM ticket_sla WHERE ticket_id = ?`, ticketID,
	).Scan(&sla.TicketID, &sla.PolicyID, &responseDue, &resolutionDue, &pausedAt, &sla.TotalPausedSeconds, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("ticket sla", ticketID)
	}
	if err != nil {
		return nil, err
	}
	sla.ResponseDue = parseTime(responseDue)
	sla.ResolutionDue = parseTime(resolutionDue)
	sla.CreatedAt = parseTime(createdAt)
	sla.UpdatedAt = parseTime(updatedAt)
	if pausedAt.Valid {
		t := parseTime(pausedAt.String)
		sla.PausedAt = &t
	}
	return sla, nil
}

func (s *LibSQLStore) PauseTicketSLA(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ticket_sla SET paused_at = ?, updated_at = ? WHERE ticket_id = ? AND paused_at IS NULL`,
		formatTime(at), formatTime(s.now()), ticketID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *LibSQLStore) ResumeTicketSLA(ctx context.Context, ticketID string, at time.Time) (*ResumeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		pausedAt sql.NullString
		total    int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT paused_at, total_paused_seconds FROM ticket_sla WHERE ticket_id = ?`, ticketID,
	).Scan(&pausedAt, &total)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !pausedAt.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	paused := int64(at.Sub(parseTime(pausedAt.String)) / time.Second)
	if paused < 0 {
		paused = 0
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE ticket_sla SET paused_at = NULL, total_paused_seconds = total_paused_seconds + ?, updated_at = ?
		 WHERE ticket_id = ? AND paused_at = ?`,
		paused, formatTime(s.now()), ticketID, pausedAt.String,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ResumeResult{PausedSeconds: paused, TotalPausedSeconds: total + paused}, nil
}

// --- Notifications ---

func (s *LibSQLStore) CreateNotification(ctx context.Context, n *Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Type == "" {
		n.Type = "info"
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, ticket_id, is_read, idempotency_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT(idempotency_key) DO NOTHING`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, nullStr(n.TicketID), nullStr(n.IdempotencyKey), formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (s *LibSQLStore) ListNotifications(ctx context.Context, userID string) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, message, type, ticket_id, is_read, idempotency_key, created_at
		 FROM notifications WHERE user_id = ? ORDER BY created_at, id`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		var (
			ticketID, key sql.NullString
			isRead        int64
			createdAt     string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &ticketID, &isRead, &key, &createdAt); err != nil {
			return nil, err
		}
		n.TicketID = ticketID.String
		n.IsRead = isRead != 0
		n.IdempotencyKey = key.String
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// --- Helpers ---

func (s *LibSQLStore) requireTicket(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storeNotFound("ticket", id)
	}
	return err
}

func requireTicketTx(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM tickets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storeNotFound("ticket", id)
	}
	return err
}

// claimEffect records key in the applied_effects ledger and reports whether
// this call was the first to do so. An empty key always claims.
func claimEffect(ctx context.Context, tx *sql.Tx, scope, key string, at time.Time) (bool, error) {
	if key == "" {
		return true, nil
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO applied_effects (effect_key, applied_at) VALUES (?, ?) ON CONFLICT(effect_key) DO NOTHING`,
		scope+":"+key, formatTime(at),
	)
	if err != nil {
		return false, fmt.Errorf("claim effect: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func storeNotFound(resource, id string) *schema.TicketflowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nowUTC() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}
