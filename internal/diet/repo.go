package diet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/diettracker/internal/telemetry/tracing"
	"github.com/2beens/diettracker/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type ListParams struct {
	From   *Day
	To     *Day
	Limit  int
	Offset int
}

type UpdateEntryParams struct {
	WeightKg        *float64 `json:"weight"`
	BodyFatPct      *float64 `json:"bodyfat_pct"`
	CalInKcal       *float64 `json:"calories_in"`
	CalOutSportKcal *float64 `json:"calories_exercise_out"`
	Notes           *string  `json:"notes"`
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, entry Entry) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO daily_entries
				(date, weight_kg, bodyfat_pct, cal_in_kcal, cal_out_sport_kcal, notes, source)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id;`,
		entry.Date.Time, entry.WeightKg, entry.BodyFatPct, entry.CalInKcal,
		entry.CalOutSportKcal, entry.Notes, entry.Source,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrEntryAlreadyExists
		}
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("entry.id", id))

	entry.ID = id
	return &entry, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	row := r.db.QueryRow(
		ctx,
		`SELECT id, date, weight_kg, bodyfat_pct, cal_in_kcal, cal_out_sport_kcal, COALESCE(notes, ''), COALESCE(source, 'manual')
			FROM daily_entries WHERE id = $1;`,
		id,
	)
	return scanEntry(row)
}

func (r *Repo) GetByDate(ctx context.Context, day Day) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.getByDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("date", day.String()))

	row := r.db.QueryRow(
		ctx,
		`SELECT id, date, weight_kg, bodyfat_pct, cal_in_kcal, cal_out_sport_kcal, COALESCE(notes, ''), COALESCE(source, 'manual')
			FROM daily_entries WHERE date = $1;`,
		day.Time,
	)
	return scanEntry(row)
}

// List returns entries ordered by date descending, optionally date-filtered and paged
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	query := `SELECT id, date, weight_kg, bodyfat_pct, cal_in_kcal, cal_out_sport_kcal, COALESCE(notes, ''), COALESCE(source, 'manual')
		FROM daily_entries WHERE true`
	var args []interface{}
	argCount := 0

	if params.From != nil {
		argCount++
		query += fmt.Sprintf(" AND date >= $%d", argCount)
		args = append(args, params.From.Time)
	}
	if params.To != nil {
		argCount++
		query += fmt.Sprintf(" AND date <= $%d", argCount)
		args = append(args, params.To.Time)
	}

	query += " ORDER BY date DESC"

	if params.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, params.Limit)
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, params.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Repo) Update(ctx context.Context, id int, params UpdateEntryParams) (_ *Entry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	setClause := "updated_at = now()"
	var args []interface{}
	argCount := 0

	addSet := func(column string, value interface{}) {
		argCount++
		setClause += fmt.Sprintf(", %s = $%d", column, argCount)
		args = append(args, value)
	}

	if params.WeightKg != nil {
		addSet("weight_kg", *params.WeightKg)
	}
	if params.BodyFatPct != nil {
		addSet("bodyfat_pct", *params.BodyFatPct)
	}
	if params.CalInKcal != nil {
		addSet("cal_in_kcal", *params.CalInKcal)
	}
	if params.CalOutSportKcal != nil {
		addSet("cal_out_sport_kcal", *params.CalOutSportKcal)
	}
	if params.Notes != nil {
		addSet("notes", *params.Notes)
	}

	argCount++
	args = append(args, id)
	query := fmt.Sprintf("UPDATE daily_entries SET %s WHERE id = $%d;", setClause, argCount)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrEntryNotFound
	}

	return r.Get(ctx, id)
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM daily_entries WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}

	return nil
}

func (r *Repo) Count(ctx context.Context) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.diet.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM daily_entries;`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	entry, err := scanEntryRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

func scanEntryRow(row pgx.Row) (*Entry, error) {
	var entry Entry
	var entryDate time.Time
	if err := row.Scan(
		&entry.ID, &entryDate, &entry.WeightKg, &entry.BodyFatPct,
		&entry.CalInKcal, &entry.CalOutSportKcal, &entry.Notes, &entry.Source,
	); err != nil {
		return nil, err
	}
	entry.Date = NewDay(entryDate)
	return &entry, nil
}
