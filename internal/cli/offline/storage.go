package offline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Entry — сохранённый ответ.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// Storage хранит ответы по бакетам. Ключ: URL GET-запроса.
type Storage interface {
	Get(ctx context.Context, bucket, key string) (*Entry, bool, error)
	Put(ctx context.Context, bucket, key string, e Entry) error
	Buckets(ctx context.Context) ([]string, error)
	DeleteBucket(ctx context.Context, bucket string) error
}

// CachedResponse — строка таблицы кэша.
type CachedResponse struct {
	ID       uint   `gorm:"primaryKey"`
	Bucket   string `gorm:"size:128;not null;uniqueIndex:idx_bucket_key"`
	URL      string `gorm:"size:2048;not null;uniqueIndex:idx_bucket_key"`
	Status   int    `gorm:"not null"`
	Header   []byte
	Body     []byte
	StoredAt time.Time `gorm:"not null"`
}

// GormStorage — хранилище бакетов в SQL-базе через gorm.
type GormStorage struct {
	db *gorm.DB
}

// OpenSQLite открывает файл кэша (modernc-драйвер "sqlite") и мигрирует схему.
func OpenSQLite(path string) (*GormStorage, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return NewGormStorage(db)
}

// NewGormStorage мигрирует таблицу кэша в db.
func NewGormStorage(db *gorm.DB) (*GormStorage, error) {
	if err := db.AutoMigrate(&CachedResponse{}); err != nil {
		return nil, err
	}
	return &GormStorage{db: db}, nil
}

// Close закрывает соединение с базой.
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Get(ctx context.Context, bucket, key string) (*Entry, bool, error) {
	var row CachedResponse
	err := s.db.WithContext(ctx).Where("bucket = ? AND url = ?", bucket, key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	e := &Entry{Status: row.Status, Body: row.Body, StoredAt: row.StoredAt, Header: http.Header{}}
	if len(row.Header) > 0 {
		if err := json.Unmarshal(row.Header, &e.Header); err != nil {
			return nil, false, err
		}
	}
	return e, true, nil
}

func (s *GormStorage) Put(ctx context.Context, bucket, key string, e Entry) error {
	hdr, err := json.Marshal(e.Header)
	if err != nil {
		return err
	}
	row := CachedResponse{Bucket: bucket, URL: key, Status: e.Status, Header: hdr, Body: e.Body, StoredAt: e.StoredAt}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}, {Name: "url"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "header", "body", "stored_at"}),
	}).Create(&row).Error
}

func (s *GormStorage) Buckets(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&CachedResponse{}).Distinct("bucket").Order("bucket").Pluck("bucket", &out).Error
	return out, err
}

func (s *GormStorage) DeleteBucket(ctx context.Context, bucket string) error {
	return s.db.WithContext(ctx).Where("bucket = ?", bucket).Delete(&CachedResponse{}).Error
}

// MemoryStorage — ограниченный по числу записей кэш в памяти (LRU).
type MemoryStorage struct {
	mu    sync.Mutex
	cache *lru.Cache[string, Entry]
}

// NewMemoryStorage создаёт кэш на size записей.
func NewMemoryStorage(size int) (*MemoryStorage, error) {
	c, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStorage{cache: c}, nil
}

const keySep = "\x00"

func (s *MemoryStorage) Get(_ context.Context, bucket, key string) (*Entry, bool, error) {
	e, ok := s.cache.Get(bucket + keySep + key)
	if !ok {
		return nil, false, nil
	}
	e.Header = e.Header.Clone()
	return &e, true, nil
}

func (s *MemoryStorage) Put(_ context.Context, bucket, key string, e Entry) error {
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	s.cache.Add(bucket+keySep+key, e)
	return nil
}

func (s *MemoryStorage) Buckets(context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, k := range s.cache.Keys() {
		bucket, _, _ := strings.Cut(k, keySep)
		seen[bucket] = true
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStorage) DeleteBucket(_ context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.cache.Keys() {
		if strings.HasPrefix(k, bucket+keySep) {
			s.cache.Remove(k)
		}
	}
	return nil
}
