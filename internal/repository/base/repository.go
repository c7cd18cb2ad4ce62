package base

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/Freeeeeet/driving_booking/internal/apperr"
)

// Ошибки хранилища, общие для Postgres и in-memory реализаций
var (
	// ErrNoCapacity условное увеличение счётчика упёрлось в максимум
	ErrNoCapacity = errors.New("counter at capacity")
	// ErrUniqueViolation нарушен уникальный индекс
	ErrUniqueViolation = errors.New("unique violation")
	// ErrStaleState условное обновление не нашло строку в ожидаемом состоянии
	ErrStaleState = errors.New("row is not in expected state")
)

// SQLSTATE коды, которые обрабатываются особо
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Querier общий интерфейс пула и транзакции
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// txRunner выполняет одну попытку транзакции
type txRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Repository базовый репозиторий с общими методами
type Repository struct {
	pool       *pgxpool.Pool
	maxRetries uint64
	onRetry    func(attempt int, err error)
	run        txRunner
}

// NewRepository создаёт новый базовый репозиторий
func NewRepository(pool *pgxpool.Pool, maxRetries int) *Repository {
	if maxRetries < 0 {
		maxRetries = 0
	}
	r := &Repository{pool: pool, maxRetries: uint64(maxRetries)}
	r.run = r.runTx
	return r
}

// OnRetry регистрирует колбэк, вызываемый перед каждым повтором транзакции
func (r *Repository) OnRetry(fn func(attempt int, err error)) {
	r.onRetry = fn
}

// Conn возвращает транзакцию из контекста, если она открыта, иначе пул
func (r *Repository) Conn(ctx context.Context) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.pool
}

// WithinTx выполняет fn в SERIALIZABLE транзакции. Конфликты сериализации
// повторяются с экспоненциальной задержкой, после исчерпания попыток
// возвращается ошибка вида contention. Вложенный вызов переиспользует внешнюю транзакцию.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	backoff := retry.NewExponential(20 * time.Millisecond)
	backoff = retry.WithCappedDuration(500*time.Millisecond, backoff)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithMaxRetries(r.maxRetries, backoff)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := r.run(ctx, fn)
		if IsSerializationFailure(err) {
			// последняя неудачная попытка уже не повторяется
			if r.onRetry != nil && uint64(attempt) <= r.maxRetries {
				r.onRetry(attempt, err)
			}
			return retry.RetryableError(err)
		}
		return err
	})

	if IsSerializationFailure(err) {
		return apperr.Wrap(apperr.KindContention, "tx", "too many concurrent writers, retry later", err)
	}
	return err
}

func (r *Repository) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsNotFound проверяет является ли ошибка "строка не найдена"
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation проверяет нарушение уникального индекса
func IsUniqueViolation(err error) bool {
	if errors.Is(err, ErrUniqueViolation) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsSerializationFailure проверяет конфликт сериализации или дедлок
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

// UniqueErr переводит нарушение уникальности в ErrUniqueViolation
func UniqueErr(op string, err error) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrUniqueViolation)
	}
	return fmt.Errorf("%s: %w", op, err)
}
