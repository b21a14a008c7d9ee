package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// txKey ключ контекста для открытой транзакции
type txKey struct{}

// querier общая часть интерфейсов пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// queryEngine возвращает транзакцию из контекста, если она открыта,
// иначе пул. Так репозитории участвуют в транзакции, не зная о ней.
func queryEngine(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// isDuplicate проверяет нарушение уникальности
func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// TxManager выполняет функции внутри одной транзакции БД
type TxManager struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewTxManager создает новый менеджер транзакций
func NewTxManager(pool *pgxpool.Pool, log *logger.Logger) *TxManager {
	return &TxManager{
		pool: pool,
		log:  log,
	}
}

// WithinTransaction открывает транзакцию, кладет ее в контекст и выполняет fn.
// При ошибке fn транзакция откатывается, иначе фиксируется.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback после успешного Commit вернет ErrTxClosed, это не ошибка
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			m.log.Errorw("Failed to rollback transaction", "error", rbErr)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
