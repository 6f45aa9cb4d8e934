package db

import (
	"fmt"
	"time"

	"storyvote/internal/auth"
	"storyvote/internal/jobs"
	"storyvote/internal/ledger"
	"storyvote/internal/story"
	"storyvote/internal/voting"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return gdb, nil
}

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&auth.User{},
		&ledger.Profile{},
		&ledger.Transaction{},
		&story.Story{},
		&story.Chapter{},
		&story.Option{},
		&voting.Vote{},
		&voting.CoinVote{},
		&jobs.Job{},
	}
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(Models()...); err != nil {
		return err
	}

	// One transaction per gateway payment id. Debits carry no reference.
	if err := gdb.Exec(`
create unique index if not exists uq_transactions_payment_ref
on transactions(payment_reference)
where payment_reference is not null;
`).Error; err != nil {
		return err
	}

	stmts := []string{
		`create index if not exists idx_transactions_user_created on transactions(user_id, created_at desc);`,
		`create index if not exists idx_chapters_story_closed on chapters(story_id) where closed_at is null;`,
		`create index if not exists idx_coin_votes_chapter on coin_votes(chapter_id);`,
		`create index if not exists idx_votes_chapter on votes(chapter_id);`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	// Votes point at real options. Chapter deletion removes votes first.
	for _, fk := range []struct{ name, table string }{
		{voting.FKVoteOption, "votes"},
		{voting.FKCoinVoteOption, "coin_votes"},
	} {
		s := fmt.Sprintf(`
do $$ begin
  if not exists (select 1 from pg_constraint where conname = '%[1]s') then
    alter table %[2]s add constraint %[1]s foreign key (option_id) references options(id);
  end if;
end $$;`, fk.name, fk.table)
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("constraint %s: %w", fk.name, err)
		}
	}

	return nil
}
