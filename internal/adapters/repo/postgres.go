package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"content-factory/internal/domain"
	"content-factory/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.PostRepo = (*Postgres)(nil)
var _ domain.AssetRepo = (*Postgres)(nil)
var _ domain.StrategyRepo = (*Postgres)(nil)
var _ domain.SlotRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

const postColumns = `id, asset_id, is_core, parent_post_id, derivative_ids, channel, format, status, weight, score, pillar_id, scheduled_date, reject_reason, payload_json, created_at, updated_at`

func scanPost(row pgx.Row) (domain.Post, error) {
	var post domain.Post
	err := row.Scan(
		&post.ID,
		&post.AssetID,
		&post.IsCore,
		&post.ParentPostID,
		&post.DerivativeIDs,
		&post.Channel,
		&post.Format,
		&post.Status,
		&post.Weight,
		&post.Score,
		&post.PillarID,
		&post.ScheduledDate,
		&post.RejectReason,
		&post.PayloadJSON,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	return post, err
}

// SavePosts вставляет пакет постов одним батчем.
func (p *Postgres) SavePosts(posts []domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	batch := &pgx.Batch{}
	for _, post := range posts {
		batch.Queue(`
INSERT INTO posts (`+postColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO NOTHING
`, post.ID, post.AssetID, post.IsCore, post.ParentPostID, post.DerivativeIDs, post.Channel, post.Format, post.Status, post.Weight, post.Score, post.PillarID, post.ScheduledDate, post.RejectReason, post.PayloadJSON, post.CreatedAt, post.UpdatedAt)
	}
	start := time.Now()
	br := p.pool.SendBatch(ctx, batch)
	metrics.ObserveNetworkRequest("postgres", "posts_send_batch", "posts", start, nil)
	defer br.Close()
	for range posts {
		start = time.Now()
		_, err := br.Exec()
		metrics.ObserveNetworkRequest("postgres", "posts_batch_exec", "posts", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// GetPost возвращает пост по идентификатору.
func (p *Postgres) GetPost(id string) (domain.Post, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	row := p.pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	post, err := scanPost(row)
	metrics.ObserveNetworkRequest("postgres", "posts_get", "posts", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Post{}, domain.ErrPostNotFound
	}
	if err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

// ListAllPosts возвращает всю коллекцию постов.
func (p *Postgres) ListAllPosts() ([]domain.Post, error) {
	return p.listPosts(`SELECT `+postColumns+` FROM posts ORDER BY created_at`, nil)
}

// ListByStatus возвращает посты в указанных статусах.
func (p *Postgres) ListByStatus(statuses ...domain.PostStatus) ([]domain.Post, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}
	return p.listPosts(`SELECT `+postColumns+` FROM posts WHERE status = ANY($1) ORDER BY created_at`, []any{values})
}

// ListDerivatives возвращает производные посты корневого.
func (p *Postgres) ListDerivatives(coreID string) ([]domain.Post, error) {
	return p.listPosts(`SELECT `+postColumns+` FROM posts WHERE parent_post_id = $1 ORDER BY created_at`, []any{coreID})
}

func (p *Postgres) listPosts(query string, args []any) ([]domain.Post, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "posts_list", "posts", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// UpdatePosts применяет изменения в одной транзакции: каскад отклонения
// либо сохраняется целиком, либо не сохраняется вовсе.
func (p *Postgres) UpdatePosts(posts ...domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "posts", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, post := range posts {
		start = time.Now()
		_, err = tx.Exec(ctx, `
UPDATE posts
SET status=$2, weight=$3, score=$4, pillar_id=$5, scheduled_date=$6, reject_reason=$7, derivative_ids=$8, updated_at=$9
WHERE id=$1
`, post.ID, post.Status, post.Weight, post.Score, post.PillarID, post.ScheduledDate, post.RejectReason, post.DerivativeIDs, post.UpdatedAt)
		metrics.ObserveNetworkRequest("postgres", "posts_update", "posts", start, err)
		if err != nil {
			return err
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "posts", start, err)
	return err
}

// ApplyAssignments атомарно переводит посты планировщика в scheduled.
func (p *Postgres) ApplyAssignments(assignments []domain.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "posts", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, a := range assignments {
		start = time.Now()
		tag, err := tx.Exec(ctx, `
UPDATE posts
SET status=$2, scheduled_date=$3, updated_at=now()
WHERE id=$1 AND status=$4
`, a.PostID, domain.PostStatusScheduled, a.ScheduledDate, domain.PostStatusApproved)
		metrics.ObserveNetworkRequest("postgres", "posts_apply_assignment", "posts", start, err)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var status string
			start = time.Now()
			err = tx.QueryRow(ctx, `SELECT status FROM posts WHERE id=$1`, a.PostID).Scan(&status)
			metrics.ObserveNetworkRequest("postgres", "posts_assignment_status", "posts", start, err)
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("пост %s: %w", a.PostID, domain.ErrPostNotFound)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("пост %s в статусе %s: %w", a.PostID, status, domain.ErrPostNotApproved)
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "posts", start, err)
	return err
}

// SaveAsset сохраняет метаданные материала.
func (p *Postgres) SaveAsset(asset domain.Asset) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO assets (id, kind, format, quality)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET kind=EXCLUDED.kind, format=EXCLUDED.format, quality=EXCLUDED.quality
`, asset.ID, asset.Kind, asset.Format, asset.Quality)
	metrics.ObserveNetworkRequest("postgres", "assets_upsert", "assets", start, err)
	return err
}

// GetAsset возвращает материал по идентификатору.
func (p *Postgres) GetAsset(id string) (domain.Asset, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	var asset domain.Asset
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT id, kind, format, quality FROM assets WHERE id = $1`, id).
		Scan(&asset.ID, &asset.Kind, &asset.Format, &asset.Quality)
	metrics.ObserveNetworkRequest("postgres", "assets_get", "assets", start, err)
	if err != nil {
		return domain.Asset{}, err
	}
	return asset, nil
}

// ListPillars возвращает рубрики редакционной стратегии.
func (p *Postgres) ListPillars() ([]domain.Pillar, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT id, name, description FROM pillars ORDER BY name`)
	metrics.ObserveNetworkRequest("postgres", "pillars_list", "pillars", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var pillars []domain.Pillar
	for rows.Next() {
		var pillar domain.Pillar
		if err := rows.Scan(&pillar.ID, &pillar.Name, &pillar.Description); err != nil {
			return nil, err
		}
		pillars = append(pillars, pillar)
	}
	return pillars, rows.Err()
}

// UpsertPillar сохраняет рубрику.
func (p *Postgres) UpsertPillar(pillar domain.Pillar) (domain.Pillar, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO pillars (id, name, description)
VALUES ($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description
`, pillar.ID, pillar.Name, pillar.Description)
	metrics.ObserveNetworkRequest("postgres", "pillars_upsert", "pillars", start, err)
	if err != nil {
		return domain.Pillar{}, err
	}
	return pillar, nil
}

// ListSlotTemplates возвращает еженедельную сетку слотов.
func (p *Postgres) ListSlotTemplates() ([]domain.WeeklySlotTemplate, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT day_of_week, label, channels FROM slot_templates ORDER BY day_of_week, label`)
	metrics.ObserveNetworkRequest("postgres", "slot_templates_list", "slot_templates", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var templates []domain.WeeklySlotTemplate
	for rows.Next() {
		var day int
		var tpl domain.WeeklySlotTemplate
		var channels []string
		if err := rows.Scan(&day, &tpl.Label, &channels); err != nil {
			return nil, err
		}
		tpl.DayOfWeek = time.Weekday(day)
		for _, ch := range channels {
			tpl.Channels = append(tpl.Channels, domain.Channel(ch))
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// ReplaceSlotTemplates заменяет сетку слотов целиком в одной транзакции.
func (p *Postgres) ReplaceSlotTemplates(templates []domain.WeeklySlotTemplate) error {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "slot_templates", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	_, err = tx.Exec(ctx, `DELETE FROM slot_templates`)
	metrics.ObserveNetworkRequest("postgres", "slot_templates_clear", "slot_templates", start, err)
	if err != nil {
		return err
	}
	for _, tpl := range templates {
		channels := make([]string, 0, len(tpl.Channels))
		for _, ch := range tpl.Channels {
			channels = append(channels, string(ch))
		}
		start = time.Now()
		_, err = tx.Exec(ctx, `
INSERT INTO slot_templates (day_of_week, label, channels)
VALUES ($1,$2,$3)
`, int(tpl.DayOfWeek), tpl.Label, channels)
		metrics.ObserveNetworkRequest("postgres", "slot_templates_insert", "slot_templates", start, err)
		if err != nil {
			return err
		}
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "slot_templates", start, err)
	return err
}
