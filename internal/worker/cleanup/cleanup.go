// Package cleanup は期限切れのIdPセッションと放置されたlocal_storage行を削除する定期ジョブを提供する。
// provider_sessionsはクライアントごとに1行作られ、ログアウトしないまま
// 放置されたブラウザの行が残り続けるため、expires_atを過ぎた行を削除する。
// local_storageはclient_id Cookieの有効期限を過ぎると参照できなくなるため、
// その期間更新されていない行を削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordCleanup(deleted int64)
}

// CleanupJob は期限切れIdPセッションの削除ジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db                 Executor
	logger             *slog.Logger
	recorder           Recorder
	localStorageMaxAge time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
// localStorageMaxAgeはclient_id Cookieの有効期間。0の場合local_storageは削除しない。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder Recorder, localStorageMaxAge time.Duration) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:                 db,
		logger:             logger,
		recorder:           recorder,
		localStorageMaxAge: localStorageMaxAge,
	}
}

const (
	deleteExpiredSessionsQuery = `DELETE FROM provider_sessions WHERE expires_at < now()`
	deleteStaleStorageQuery    = `DELETE FROM local_storage WHERE updated_at < now() - $1 * interval '1 second'`
)

// Run は期限切れのIdPセッションを削除し、削除件数を返す。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, deleteExpiredSessionsQuery)
	if err != nil {
		j.logger.Error("failed to delete expired provider sessions",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to delete expired provider sessions: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to get deleted row count",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to get deleted row count: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordCleanup(deleted)
	}

	j.logger.Info("provider session cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	if j.localStorageMaxAge > 0 {
		if _, err := j.pruneLocalStorage(ctx); err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// pruneLocalStorage はlocalStorageMaxAgeの間更新されていないlocal_storage行を削除する。
func (j *CleanupJob) pruneLocalStorage(ctx context.Context) (int64, error) {
	seconds := int64(j.localStorageMaxAge / time.Second)

	result, err := j.db.ExecContext(ctx, deleteStaleStorageQuery, seconds)
	if err != nil {
		j.logger.Error("failed to delete stale local storage",
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to delete stale local storage: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted row count: %w", err)
	}

	j.logger.Info("local storage cleanup completed",
		slog.Int64("deleted_count", deleted),
		slog.Int64("max_age_seconds", seconds),
	)
	return deleted, nil
}

// RunEvery は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。個々の実行の失敗はログに残して継続する。
func (j *CleanupJob) RunEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// エラーはRun内でログ出力済み
		_, _ = j.Run(ctx)

		select {
		case <-ctx.Done():
			j.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
		}
	}
}
