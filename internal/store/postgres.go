package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Treasury, gems and influence are stored as NUMERIC for exact decimal
// precision; balance changes are applied as GREATEST(col + delta, 0).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// querier is the subset of pgx shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var actorColumns = func() string {
	cols := []string{
		"id", "name", "collective_id",
		"gold", "banked", "citizens", "loan",
		"gems::TEXT", "influence::TEXT",
		"research", "dark_matter", "crystals", "alloy",
	}
	for u := range model.NumUnits {
		cols = append(cols, unitColumn(model.Unit(u)))
	}
	cols = append(cols,
		"level", "experience", "stat_points", "stats", "attack_turns", "structures",
		"equipment", "champions", "net_worth", "created_at")
	return strings.Join(cols, ", ")
}()

const collectiveColumns = `id, name, leader_id, treasury::TEXT, net_worth, structures,
	directive, directive_until, last_compounded, created_at`

const reportColumns = `id, kind, attacker_id, defender_id, outcome, caught,
	attacker_power, defender_power, shield_absorbed,
	attacker_losses, defender_losses, worker_losses,
	plunder, tax, tribute, bounty_paid, influence::TEXT, stolen,
	attacker_xp, defender_xp, turns_spent, created_at`

func unitColumn(u model.Unit) string { return "unit_" + u.String() }

func (s *PostgresStore) CreateActor(ctx context.Context, a *model.Actor) error {
	equipment, err := json.Marshal(nonNil(a.Equipment))
	if err != nil {
		return fmt.Errorf("encode equipment: %w", err)
	}
	champions, err := json.Marshal(nonNil(a.Champions))
	if err != nil {
		return fmt.Errorf("encode champions: %w", err)
	}

	cols := []string{
		"id", "name", "collective_id", "gold", "banked", "citizens", "loan",
		"gems", "influence", "research", "dark_matter", "crystals", "alloy",
	}
	args := []any{
		a.ID, a.Name, a.CollectiveID, a.Gold, a.Banked, a.Citizens, a.Loan,
		a.Gems.String(), a.Influence.String(), a.Research, a.DarkMatter, a.Crystals, a.Alloy,
	}
	for u := range model.NumUnits {
		cols = append(cols, unitColumn(model.Unit(u)))
		args = append(args, a.Units[u])
	}
	cols = append(cols, "level", "experience", "stat_points", "stats", "attack_turns",
		"structures", "equipment", "champions", "net_worth", "created_at")
	args = append(args, a.Level, a.Experience, a.StatPoints, toInt32s(a.Stats[:]), a.AttackTurns,
		toInt32s(a.Structures[:]), string(equipment), string(champions), a.NetWorth, a.CreatedAt)

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO actors (%s) VALUES (%s)`,
			strings.Join(cols, ", "), strings.Join(placeholders, ", ")),
		args...)
	return translateErr(err, "actor "+a.ID)
}

func (s *PostgresStore) CreateCollective(ctx context.Context, c *model.Collective) error {
	return insertCollective(ctx, s.pool, c)
}

func insertCollective(ctx context.Context, q querier, c *model.Collective) error {
	_, err := q.Exec(ctx,
		`INSERT INTO collectives (id, name, leader_id, treasury, net_worth, structures,
		                          directive, directive_until, last_compounded, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Name, c.LeaderID, c.Treasury.String(), c.NetWorth, toInt32s(c.Structures[:]),
		c.Directive.String(), nullableTime(c.DirectiveUntil), nullableTime(c.LastCompounded), c.CreatedAt,
	)
	return translateErr(err, "collective "+c.ID)
}

func (s *PostgresStore) GetActor(ctx context.Context, id string) (*model.Actor, error) {
	return getActor(ctx, s.pool, id, false)
}

func (s *PostgresStore) GetActorByName(ctx context.Context, name string) (*model.Actor, error) {
	a, err := scanActor(s.pool.QueryRow(ctx,
		`SELECT `+actorColumns+` FROM actors WHERE name = $1`, name))
	if err != nil {
		return nil, translateErr(err, "actor named "+name)
	}
	return a, nil
}

func (s *PostgresStore) GetCollective(ctx context.Context, id string) (*model.Collective, error) {
	return getCollective(ctx, s.pool, id, false)
}

func (s *PostgresStore) ListActorIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, s.pool, `SELECT id FROM actors ORDER BY id`)
}

func (s *PostgresStore) ListCollectiveIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, s.pool, `SELECT id FROM collectives ORDER BY id`)
}

func (s *PostgresStore) ActiveEffects(ctx context.Context, actorID string, now time.Time) ([]model.Effect, error) {
	return activeEffects(ctx, s.pool, actorID, now)
}

func (s *PostgresStore) GetBounty(ctx context.Context, targetID string) (*model.Bounty, error) {
	var b model.Bounty
	err := s.pool.QueryRow(ctx,
		`SELECT id, target_id, placer_id, amount, created_at FROM bounties WHERE target_id = $1`, targetID).
		Scan(&b.ID, &b.TargetID, &b.PlacerID, &b.Amount, &b.CreatedAt)
	if err != nil {
		return nil, translateErr(err, "bounty on "+targetID)
	}
	return &b, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, actorID string, limit int) ([]model.Report, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+`
		 FROM reports WHERE attacker_id = $1 OR defender_id = $1
		 ORDER BY created_at DESC LIMIT $2`, actorID, lim)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []model.Report
	for rows.Next() {
		var r model.Report
		var influence string
		var stolen []byte
		if err := rows.Scan(&r.ID, &r.Kind, &r.AttackerID, &r.DefenderID, &r.Outcome, &r.Caught,
			&r.AttackerPower, &r.DefenderPower, &r.ShieldAbsorbed,
			&r.AttackerLosses, &r.DefenderLosses, &r.WorkerLosses,
			&r.Plunder, &r.Tax, &r.Tribute, &r.BountyPaid, &influence, &stolen,
			&r.AttackerXP, &r.DefenderXP, &r.TurnsSpent, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Influence, _ = decimal.NewFromString(influence)
		if err := json.Unmarshal(stolen, &r.Stolen); err != nil {
			return nil, fmt.Errorf("decode report %s: %w", r.ID, err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *PostgresStore) ListTreasuryEntries(ctx context.Context, collectiveID string) ([]model.TreasuryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, collective_id, actor_id, kind, amount::TEXT, timestamp
		 FROM treasury_entries WHERE collective_id = $1 ORDER BY timestamp`, collectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TreasuryEntry
	for rows.Next() {
		var e model.TreasuryEntry
		var amount string
		if err := rows.Scan(&e.ID, &e.CollectiveID, &e.ActorID, &e.Kind, &amount, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) ListNotifications(ctx context.Context, recipientID string) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipient_id, category, title, body, link, created_at
		 FROM notifications WHERE recipient_id = $1 ORDER BY created_at`, recipientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Category, &n.Title, &n.Body, &n.Link, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// WithTx runs fn in a READ COMMITTED transaction. Row locks taken through
// LockActor and LockCollective serialize concurrent actions on the same
// rows; pgx rolls back if fn errors or panics.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

// --- shared queries ---

func getActor(ctx context.Context, q querier, id string, lock bool) (*model.Actor, error) {
	sql := `SELECT ` + actorColumns + ` FROM actors WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	a, err := scanActor(q.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, translateErr(err, "actor "+id)
	}
	return a, nil
}

func getCollective(ctx context.Context, q querier, id string, lock bool) (*model.Collective, error) {
	sql := `SELECT ` + collectiveColumns + ` FROM collectives WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	var c model.Collective
	var treasury, directive string
	var structures []int32
	var until, compounded *time.Time
	err := q.QueryRow(ctx, sql, id).Scan(&c.ID, &c.Name, &c.LeaderID, &treasury, &c.NetWorth,
		&structures, &directive, &until, &compounded, &c.CreatedAt)
	if err != nil {
		return nil, translateErr(err, "collective "+id)
	}
	c.Treasury, _ = decimal.NewFromString(treasury)
	copyInts(c.Structures[:], structures)
	if c.Directive, err = model.ParseDirective(directive); err != nil {
		return nil, err
	}
	if until != nil {
		c.DirectiveUntil = *until
	}
	if compounded != nil {
		c.LastCompounded = *compounded
	}
	return &c, nil
}

func activeEffects(ctx context.Context, q querier, actorID string, now time.Time) ([]model.Effect, error) {
	rows, err := q.Query(ctx,
		`SELECT id, actor_id, key, expires_at, created_at
		 FROM effects WHERE actor_id = $1 AND expires_at > $2`, actorID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var effects []model.Effect
	for rows.Next() {
		var e model.Effect
		var key string
		if err := rows.Scan(&e.ID, &e.ActorID, &key, &e.ExpiresAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Key, err = model.ParseEffectKey(key); err != nil {
			return nil, err
		}
		effects = append(effects, e)
	}
	return effects, rows.Err()
}

func listIDs(ctx context.Context, q querier, sql string, args ...any) ([]string, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanActor(row pgx.Row) (*model.Actor, error) {
	var a model.Actor
	var gems, influence string
	var stats, structures []int32
	var equipment, champions []byte

	dest := []any{
		&a.ID, &a.Name, &a.CollectiveID,
		&a.Gold, &a.Banked, &a.Citizens, &a.Loan,
		&gems, &influence,
		&a.Research, &a.DarkMatter, &a.Crystals, &a.Alloy,
	}
	for i := range a.Units {
		dest = append(dest, &a.Units[i])
	}
	dest = append(dest,
		&a.Level, &a.Experience, &a.StatPoints, &stats, &a.AttackTurns, &structures,
		&equipment, &champions, &a.NetWorth, &a.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	a.Gems, _ = decimal.NewFromString(gems)
	a.Influence, _ = decimal.NewFromString(influence)
	copyInts(a.Stats[:], stats)
	copyInts(a.Structures[:], structures)
	if err := json.Unmarshal(equipment, &a.Equipment); err != nil {
		return nil, fmt.Errorf("decode equipment of %s: %w", a.ID, err)
	}
	if err := json.Unmarshal(champions, &a.Champions); err != nil {
		return nil, fmt.Errorf("decode champions of %s: %w", a.ID, err)
	}
	return &a, nil
}

// --- transaction ---

type pgTx struct {
	q querier
}

func (t *pgTx) LockActor(ctx context.Context, id string) (*model.Actor, error) {
	return getActor(ctx, t.q, id, true)
}

func (t *pgTx) LockCollective(ctx context.Context, id string) (*model.Collective, error) {
	return getCollective(ctx, t.q, id, true)
}

func (t *pgTx) ActiveEffects(ctx context.Context, actorID string, now time.Time) ([]model.Effect, error) {
	return activeEffects(ctx, t.q, actorID, now)
}

func (t *pgTx) InsertCollective(ctx context.Context, c *model.Collective) error {
	return insertCollective(ctx, t.q, c)
}

func (t *pgTx) SetMembership(ctx context.Context, actorID, collectiveID string) error {
	if collectiveID != "" {
		var exists bool
		err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM collectives WHERE id = $1)`, collectiveID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check collective: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
		}
	}
	return expectRow(t.q.Exec(ctx,
		`UPDATE actors SET collective_id = $2 WHERE id = $1`, actorID, collectiveID), "actor "+actorID)
}

func (t *pgTx) ApplyActorDelta(ctx context.Context, id string, d model.ActorDelta) error {
	if d.IsZero() {
		return nil
	}
	u := deltaUpdate{args: []any{id}}
	u.addInt("gold", d.Gold)
	u.addInt("banked", d.Banked)
	u.addInt("citizens", d.Citizens)
	u.addInt("loan", d.Loan)
	u.addInt("attack_turns", d.AttackTurns)
	u.addInt("experience", d.Experience)
	u.addInt("level", int64(d.Level))
	u.addInt("stat_points", int64(d.StatPoints))
	for unit, n := range d.Units {
		u.addInt(unitColumn(model.Unit(unit)), n)
	}
	u.addFloat("research", d.Research)
	u.addFloat("dark_matter", d.DarkMatter)
	u.addFloat("crystals", d.Crystals)
	u.addFloat("alloy", d.Alloy)
	u.addNumeric("gems", d.Gems)
	u.addNumeric("influence", d.Influence)

	tag, err := t.q.Exec(ctx,
		`UPDATE actors SET `+strings.Join(u.sets, ", ")+` WHERE id = $1`, u.args...)
	if err != nil {
		return fmt.Errorf("apply delta to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: actor %s", ErrNotFound, id)
	}
	return nil
}

func (t *pgTx) IncrementStructure(ctx context.Context, id string, st model.Structure, by int) error {
	if int(st) >= model.NumStructures {
		return fmt.Errorf("store: unknown structure %d", st)
	}
	tag, err := t.q.Exec(ctx,
		`UPDATE actors SET structures[$2] = GREATEST(structures[$2] + $3, 0) WHERE id = $1`,
		id, int(st)+1, by)
	return expectRow(tag, err, "actor "+id)
}

func (t *pgTx) SetActorNetWorth(ctx context.Context, id string, netWorth float64) error {
	tag, err := t.q.Exec(ctx, `UPDATE actors SET net_worth = $2 WHERE id = $1`, id, netWorth)
	return expectRow(tag, err, "actor "+id)
}

func (t *pgTx) AdjustTreasury(ctx context.Context, collectiveID string, delta decimal.Decimal) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE collectives SET treasury = treasury + $2::NUMERIC
		 WHERE id = $1 AND treasury + $2::NUMERIC >= 0`,
		collectiveID, delta.String())
	if err != nil {
		return fmt.Errorf("adjust treasury %s: %w", collectiveID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := t.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collectives WHERE id = $1)`, collectiveID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: collective %s", ErrNotFound, collectiveID)
	}
	return ErrInsufficientTreasury
}

func (t *pgTx) AppendTreasuryEntry(ctx context.Context, e *model.TreasuryEntry) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO treasury_entries (id, collective_id, actor_id, kind, amount, timestamp)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		e.ID, e.CollectiveID, e.ActorID, e.Kind, e.Amount.String(), e.Timestamp)
	return err
}

func (t *pgTx) SetDirective(ctx context.Context, collectiveID string, d model.Directive, until time.Time) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE collectives SET directive = $2, directive_until = $3 WHERE id = $1`,
		collectiveID, d.String(), nullableTime(until))
	return expectRow(tag, err, "collective "+collectiveID)
}

func (t *pgTx) MarkCompounded(ctx context.Context, collectiveID string, at time.Time) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE collectives SET last_compounded = $2 WHERE id = $1`, collectiveID, at)
	return expectRow(tag, err, "collective "+collectiveID)
}

func (t *pgTx) SumMemberNetWorth(ctx context.Context, collectiveID string) (float64, error) {
	var sum float64
	err := t.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(net_worth), 0) FROM actors WHERE collective_id = $1`, collectiveID).Scan(&sum)
	return sum, err
}

func (t *pgTx) SetCollectiveNetWorth(ctx context.Context, collectiveID string, netWorth float64) error {
	tag, err := t.q.Exec(ctx, `UPDATE collectives SET net_worth = $2 WHERE id = $1`, collectiveID, netWorth)
	return expectRow(tag, err, "collective "+collectiveID)
}

func (t *pgTx) PlaceBounty(ctx context.Context, b *model.Bounty) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO bounties (id, target_id, placer_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (target_id) DO UPDATE SET amount = bounties.amount + EXCLUDED.amount`,
		b.ID, b.TargetID, b.PlacerID, b.Amount, b.CreatedAt)
	return err
}

// ClaimBounty deletes the row; a concurrent claimer blocks on the row lock
// and then finds nothing to delete.
func (t *pgTx) ClaimBounty(ctx context.Context, targetID string) (*model.Bounty, error) {
	var b model.Bounty
	err := t.q.QueryRow(ctx,
		`DELETE FROM bounties WHERE target_id = $1
		 RETURNING id, target_id, placer_id, amount, created_at`, targetID).
		Scan(&b.ID, &b.TargetID, &b.PlacerID, &b.Amount, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBountyClaimed
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (t *pgTx) AddEffect(ctx context.Context, e *model.Effect) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO effects (id, actor_id, key, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.ActorID, e.Key.String(), e.ExpiresAt, e.CreatedAt)
	return err
}

func (t *pgTx) ConsumeEffect(ctx context.Context, actorID string, key model.EffectKey) error {
	_, err := t.q.Exec(ctx,
		`DELETE FROM effects WHERE actor_id = $1 AND key = $2`, actorID, key.String())
	return err
}

func (t *pgTx) PurgeExpiredEffects(ctx context.Context, now time.Time) (int64, error) {
	tag, err := t.q.Exec(ctx, `DELETE FROM effects WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertReport(ctx context.Context, r *model.Report) error {
	stolen, err := json.Marshal(r.Stolen)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO reports (`+reportColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		         $13, $14, $15, $16, $17::NUMERIC, $18, $19, $20, $21, $22)`,
		r.ID, string(r.Kind), r.AttackerID, r.DefenderID, string(r.Outcome), r.Caught,
		r.AttackerPower, r.DefenderPower, r.ShieldAbsorbed,
		r.AttackerLosses, r.DefenderLosses, r.WorkerLosses,
		r.Plunder, r.Tax, r.Tribute, r.BountyPaid, r.Influence.String(), string(stolen),
		r.AttackerXP, r.DefenderXP, r.TurnsSpent, r.CreatedAt)
	return err
}

func (t *pgTx) InsertNotification(ctx context.Context, n *model.Notification) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO notifications (id, recipient_id, category, title, body, link, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.RecipientID, n.Category, n.Title, n.Body, n.Link, n.CreatedAt)
	return err
}

// deltaUpdate builds the SET list of a clamped relative update. $1 is the
// row id.
type deltaUpdate struct {
	sets []string
	args []any
}

func (u *deltaUpdate) add(col, cast string, v any) {
	u.args = append(u.args, v)
	u.sets = append(u.sets, fmt.Sprintf("%s = GREATEST(%s + $%d%s, 0)", col, col, len(u.args), cast))
}

func (u *deltaUpdate) addInt(col string, v int64) {
	if v != 0 {
		u.add(col, "", v)
	}
}

func (u *deltaUpdate) addFloat(col string, v float64) {
	if v != 0 {
		u.add(col, "", v)
	}
}

func (u *deltaUpdate) addNumeric(col string, v decimal.Decimal) {
	if !v.IsZero() {
		u.add(col, "::NUMERIC", v.String())
	}
}

// --- helpers ---

func translateErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func expectRow(tag pgconn.CommandTag, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func toInt32s(v []int) []int32 {
	out := make([]int32, len(v))
	for i, n := range v {
		out[i] = int32(n)
	}
	return out
}

func copyInts(dst []int, src []int32) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] = int(src[i])
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
