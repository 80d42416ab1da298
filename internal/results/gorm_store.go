package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/DoyleJ11/blockduel-backend/internal/match"
)

type matchRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RoomCode     string `gorm:"size:6;index"`
	Round        int
	Winner       int
	Player0Name  string `gorm:"size:64"`
	Player0Score int64
	Player1Name  string `gorm:"size:64"`
	Player1Score int64
	StartedAt    time.Time
	EndedAt      time.Time `gorm:"index"`
}

func (matchRecord) TableName() string { return "match_results" }

type GormStore struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// OpenGormStore connects through pgx's database/sql driver and migrates the
// results table.
func OpenGormStore(dsn string, log *zap.Logger) (*GormStore, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	sqlDB := stdlib.OpenDB(*cfg)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.New(zap.NewStdLog(log.Named("gorm")), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("gorm: open: %w", err)
	}

	if err := db.AutoMigrate(&matchRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("gorm: migrate match_results: %w", err)
	}
	return &GormStore{db: db, sqlDB: sqlDB}, nil
}

func (s *GormStore) Save(ctx context.Context, res match.Result) error {
	rec := toRecord(res)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("gorm: save result (room %s round %d): %w", res.Code, res.Round, err)
	}
	return nil
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]match.Result, error) {
	var recs []matchRecord
	err := s.db.WithContext(ctx).Order("ended_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: recent results: %w", err)
	}

	out := make([]match.Result, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

func (s *GormStore) Close() error {
	return s.sqlDB.Close()
}

func toRecord(res match.Result) matchRecord {
	rec := matchRecord{
		RoomCode:  res.Code,
		Round:     res.Round,
		Winner:    res.Winner,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
	if len(res.Scores) > 0 {
		rec.Player0Name, rec.Player0Score = res.Scores[0].Name, res.Scores[0].Score
	}
	if len(res.Scores) > 1 {
		rec.Player1Name, rec.Player1Score = res.Scores[1].Name, res.Scores[1].Score
	}
	return rec
}

func fromRecord(rec matchRecord) match.Result {
	return match.Result{
		Code:   rec.RoomCode,
		Round:  rec.Round,
		Winner: rec.Winner,
		Scores: []match.ScoreLine{
			{Name: rec.Player0Name, Score: rec.Player0Score},
			{Name: rec.Player1Name, Score: rec.Player1Score},
		},
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	}
}
