package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"reviewhunter/internal/extract"
	"reviewhunter/internal/model"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

// 商品详情抓取的进度日志间隔
const productLogInterval = 50

// ProductSearch 按检索词检索商品目录并落库全部结果。
//
// 翻页由客户端内部完成，整个结果集一次性拿回后逐条写入；
// 同 (商品, 检索词) 的重复结果被静默跳过。
func ProductSearch(ctx context.Context, st *store.Store, client *upstream.ZapposClient, logger *slog.Logger, term string) error {
	results, err := client.PaginatedSearch(ctx, term)
	if err != nil {
		return err
	}

	for _, r := range results {
		productID, err := strconv.ParseInt(r.ProductID, 10, 64)
		if err != nil {
			logger.Warn("skipping result with malformed product id",
				slog.String("product_id", r.ProductID),
				slog.String("term", term))
			continue
		}
		if err := st.InsertSearchResult(ctx, &model.ProductSearchResult{
			Brand:       r.BrandName,
			ProductID:   productID,
			ProductName: r.ProductName,
			Category:    r.CategoryFacet,
			SearchQuery: term,
		}); err != nil {
			return err
		}
	}

	logger.Info("product search finished",
		slog.String("term", term),
		slog.Int("results", len(results)))
	return nil
}

// ProductFetch 为尚未入库详情的商品抓取详情并约减描述。
//
// 待抓清单来自检索结果与已有详情的差集（童鞋与泛品类品牌已滤除）。
// 已下架的商品告警跳过；限流错误向上传播，已完成的部分照常提交。
func ProductFetch(ctx context.Context, st *store.Store, client *upstream.ZapposClient, logger *slog.Logger) error {
	pending, err := st.PendingProducts(ctx)
	if err != nil {
		return err
	}
	logger.Info("fetching product details", slog.Int("pending", len(pending)))

	saved := 0
	for i, p := range pending {
		payload, err := client.Product(ctx, p.ProductID)
		if err != nil {
			if errors.Is(err, upstream.ErrNotFound) {
				logger.Warn("product unavailable, skipping",
					slog.Int64("product_id", p.ProductID))
				continue
			}
			return err
		}

		var description *string
		if payload.Description != nil {
			description = extract.ExtractDescription(*payload.Description, payload.BrandName)
		}
		if err := st.InsertProduct(ctx, &model.Product{
			ID:          p.ProductID,
			Brand:       payload.BrandName,
			Name:        payload.ProductName,
			DefaultURL:  payload.DefaultProductURL,
			Description: description,
		}); err != nil {
			return err
		}
		saved++

		if (i+1)%productLogInterval == 0 {
			logger.Info("product fetch progress",
				slog.Int("processed", i+1),
				slog.Int("total", len(pending)))
		}
	}

	logger.Info("product fetch finished",
		slog.Int("saved", saved),
		slog.Int("pending", len(pending)))
	return nil
}
