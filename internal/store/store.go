package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"reviewhunter/internal/model"
	"reviewhunter/internal/pkg/metrics"
)

// Store 封装数据库连接，提供幂等写入与续传查询。
//
// 所有写入均采用 insert-or-ignore 语义：主键或唯一索引冲突时
// 静默跳过，不报错、不更新已有行。
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open 打开 SQLite 数据库并自动迁移全部表结构。
//
// 参数:
//
//	dsn: SQLite 数据源（文件路径或 :memory:）
//	logger: 日志记录器
//
// 返回值:
//
//	*Store: 初始化完成的存储实例
//	error: 打开或迁移失败返回错误
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(
		&model.SubmissionFact{},
		&model.Submission{},
		&model.Media{},
		&model.Album{},
		&model.Image{},
		&model.ProductSearchResult{},
		&model.Product{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Begin 开启事务，返回绑定到该事务的 Store 视图。
//
// 采集阶段的全部写入都发生在同一事务里，由调用方在阶段结束时
// 统一 Commit 或 Rollback。
func (s *Store) Begin(ctx context.Context) (*Store, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &Store{db: tx, logger: s.logger}, nil
}

// Commit 提交事务。
func (s *Store) Commit() error {
	if err := s.db.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback 回滚事务。
func (s *Store) Rollback() error {
	if err := s.db.Rollback().Error; err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// insertIgnore 执行 insert-or-ignore 写入并上报计数。
// 冲突（已存在同主键或同唯一索引的行）时静默跳过。
func (s *Store) insertIgnore(ctx context.Context, table string, value any) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		DoNothing: true, // 冲突时不更新已有行
	}).Create(value)
	if result.Error != nil {
		return fmt.Errorf("insert %s: %w", table, result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.RowsInsertedTotal.WithLabelValues(table).Inc()
	} else {
		metrics.RowsIgnoredTotal.WithLabelValues(table).Inc()
	}
	return nil
}

// InsertSubmissionFact 登记一条 (帖子, 检索词) 检索事实。
func (s *Store) InsertSubmissionFact(ctx context.Context, fact *model.SubmissionFact) error {
	return s.insertIgnore(ctx, "submission_facts", fact)
}

// InsertSubmission 登记一条帖子，已存在时跳过。
func (s *Store) InsertSubmission(ctx context.Context, sub *model.Submission) error {
	return s.insertIgnore(ctx, "submissions", sub)
}

// InsertMedia 登记一条媒体链接。
func (s *Store) InsertMedia(ctx context.Context, media *model.Media) error {
	return s.insertIgnore(ctx, "medias", media)
}

// InsertAlbum 登记一条相册元数据，已存在时跳过。
func (s *Store) InsertAlbum(ctx context.Context, album *model.Album) error {
	return s.insertIgnore(ctx, "albums", album)
}

// InsertImage 登记一张图片，已存在时跳过。
func (s *Store) InsertImage(ctx context.Context, image *model.Image) error {
	return s.insertIgnore(ctx, "images", image)
}

// InsertSearchResult 登记一条商品检索结果，同 (商品, 检索词) 已存在时跳过。
func (s *Store) InsertSearchResult(ctx context.Context, result *model.ProductSearchResult) error {
	return s.insertIgnore(ctx, "product_search_results", result)
}

// InsertProduct 登记一条商品详情，已存在时跳过。
func (s *Store) InsertProduct(ctx context.Context, product *model.Product) error {
	return s.insertIgnore(ctx, "products", product)
}

// OldestSubmissionID 返回某检索词下已保存的最旧帖子 ID，用于续传。
//
// 续传只依赖检索事实表：按创建时间升序取第一条。
// 该检索词从未采集过时返回空串（不报错）。
func (s *Store) OldestSubmissionID(ctx context.Context, query string) (string, error) {
	var fact model.SubmissionFact
	err := s.db.WithContext(ctx).
		Where("search_query = ?", query).
		Order("created_utc asc").
		Limit(1).
		Take(&fact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query oldest submission: %w", err)
	}
	return fact.ID, nil
}

// PendingMedia 是待解析媒体积压中的一条。
type PendingMedia struct {
	ID  uint
	URL string
}

// UnresolvedMedia 返回尚未产出任何图片的媒体链接（待处理积压）。
//
// 积压用集合差计算：medias 里所有不在 images.media_id 中的行。
// 曾经处理失败的媒体不会被排除，下次运行会再次尝试。
func (s *Store) UnresolvedMedia(ctx context.Context) ([]PendingMedia, error) {
	var pending []PendingMedia
	err := s.db.WithContext(ctx).
		Table("medias").
		Select("id, url").
		Where("id NOT IN (?)", s.db.Table("images").Select("media_id")).
		Order("id asc").
		Scan(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("query unresolved media: %w", err)
	}
	return pending, nil
}

// SubmissionBody 是一条待提取正文链接的帖子正文。
type SubmissionBody struct {
	ID           string
	SelftextHTML string
}

// SubmissionBodies 返回所有带非空正文的帖子，供正文链接提取使用。
func (s *Store) SubmissionBodies(ctx context.Context) ([]SubmissionBody, error) {
	var bodies []SubmissionBody
	err := s.db.WithContext(ctx).
		Table("submissions").
		Select("id, selftext_html").
		Where("selftext_html IS NOT NULL").
		Order("id asc").
		Scan(&bodies).Error
	if err != nil {
		return nil, fmt.Errorf("query submission bodies: %w", err)
	}
	return bodies, nil
}

// PendingProduct 是待抓取详情的一条商品。
type PendingProduct struct {
	ProductID int64
	Brand     string
}

// PendingProducts 返回尚未抓取详情的商品（按商品去重）。
//
// 同一商品可能在多个检索词下出现，这里按 product_id 只取一行；
// 童鞋品牌与泛品类行会被过滤掉，已入库 products 的商品不再返回。
func (s *Store) PendingProducts(ctx context.Context) ([]PendingProduct, error) {
	const q = `
SELECT product_id, brand FROM (
    SELECT product_id, brand,
           ROW_NUMBER() OVER (PARTITION BY product_id) AS rn
    FROM product_search_results
    WHERE LOWER(brand) NOT LIKE '%kids%'
      AND LOWER(brand) NOT LIKE '%boots'
      AND LOWER(brand) NOT LIKE '%shoes'
) WHERE rn = 1
  AND product_id NOT IN (SELECT id FROM products)
ORDER BY product_id`
	var pending []PendingProduct
	if err := s.db.WithContext(ctx).Raw(q).Scan(&pending).Error; err != nil {
		return nil, fmt.Errorf("query pending products: %w", err)
	}
	return pending, nil
}
