package ingest

import (
	"context"
	"log/slog"

	"reviewhunter/internal/classify"
	"reviewhunter/internal/model"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

// Images 解析待处理的媒体积压并抓取图片。
//
// 积压按资源类型分治：相册先展开元数据再逐图抓取，
// 独立图片先尽力取元数据（仅 Imgur 源）再抓字节。
// 单条媒体的失败（资源已删除、解析不出 ID、瞬时抓取错误）只
// 告警跳过，该媒体留在积压里下次重试；限流与致命错误向上传播。
func Images(ctx context.Context, st *store.Store, imgur *upstream.ImgurClient, binary upstream.BinaryFetcher, logger *slog.Logger) error {
	backlog, err := st.UnresolvedMedia(ctx)
	if err != nil {
		return err
	}

	var albums, standalones []store.PendingMedia
	for _, m := range backlog {
		if classify.IsAlbum(m.URL) {
			albums = append(albums, m)
		} else {
			standalones = append(standalones, m)
		}
	}
	logger.Info("resolving media backlog",
		slog.Int("albums", len(albums)),
		slog.Int("standalone", len(standalones)))

	for _, m := range albums {
		if err := ingestAlbum(ctx, st, imgur, logger, m); err != nil {
			return err
		}
	}
	for _, m := range standalones {
		if err := ingestStandalone(ctx, st, imgur, binary, logger, m); err != nil {
			return err
		}
	}
	return nil
}

// ingestAlbum 展开一个相册：先落相册元数据，再逐图抓取字节。
func ingestAlbum(ctx context.Context, st *store.Store, imgur *upstream.ImgurClient, logger *slog.Logger, m store.PendingMedia) error {
	albumID := classify.ExtractResourceID(m.URL)
	if albumID == "" {
		logger.Warn("cannot extract album id, skipping",
			slog.Uint64("media_id", uint64(m.ID)),
			slog.String("url", m.URL))
		return nil
	}

	payload, err := imgur.FetchAlbum(ctx, albumID)
	if err != nil {
		if upstream.IsThrottled(err) || upstream.IsFatal(err) {
			return err
		}
		logger.Warn("album unavailable, skipping",
			slog.String("album_id", albumID),
			slog.String("error", err.Error()))
		return nil
	}

	if err := st.InsertAlbum(ctx, &model.Album{
		ID:          payload.ID,
		MediaID:     m.ID,
		Title:       payload.Title,
		Description: payload.Description,
		UploadedUTC: payload.Datetime,
		URL:         payload.Link,
		Views:       payload.Views,
	}); err != nil {
		return err
	}

	for _, img := range payload.Images {
		data, contentType, err := imgur.FetchBytes(ctx, img.Link)
		if err != nil {
			return err
		}
		if err := st.InsertImage(ctx, imageRow(m.ID, &payload.ID, &img, data, contentType)); err != nil {
			return err
		}
	}
	logger.Info("album resolved",
		slog.String("album_id", payload.ID),
		slog.Int("images", len(payload.Images)))
	return nil
}

// ingestStandalone 抓取一张独立图片。
//
// Imgur 源先尽力取元数据（失败不致命），再抓字节；
// 其他媒体域名没有元数据接口，直接抓字节。
func ingestStandalone(ctx context.Context, st *store.Store, imgur *upstream.ImgurClient, binary upstream.BinaryFetcher, logger *slog.Logger, m store.PendingMedia) error {
	imageID := classify.ExtractResourceID(m.URL)
	if imageID == "" {
		logger.Warn("cannot extract image id, skipping",
			slog.Uint64("media_id", uint64(m.ID)),
			slog.String("url", m.URL))
		return nil
	}

	if !classify.IsImgurHost(m.URL) {
		data, contentType, err := binary.FetchBytes(ctx, m.URL)
		if err != nil {
			if upstream.IsThrottled(err) || upstream.IsFatal(err) {
				return err
			}
			logger.Warn("image unavailable, skipping",
				slog.String("url", m.URL),
				slog.String("error", err.Error()))
			return nil
		}
		return st.InsertImage(ctx, &model.Image{
			ID:       imageID,
			MediaID:  m.ID,
			Mimetype: contentType,
			URL:      m.URL,
			Img:      data,
		})
	}

	var meta *upstream.ImagePayload
	meta, err := imgur.FetchImageMeta(ctx, imageID)
	if err != nil {
		if upstream.IsThrottled(err) || upstream.IsFatal(err) {
			return err
		}
		// 元数据拿不到不拦路，退化为裸字节抓取
		logger.Warn("image metadata unavailable",
			slog.String("image_id", imageID),
			slog.String("error", err.Error()))
		meta = nil
	}

	fetchURL := m.URL
	if meta != nil && meta.Link != "" {
		fetchURL = meta.Link
	}
	data, contentType, err := imgur.FetchBytes(ctx, fetchURL)
	if err != nil {
		return err
	}

	if meta == nil {
		return st.InsertImage(ctx, &model.Image{
			ID:       imageID,
			MediaID:  m.ID,
			Mimetype: contentType,
			URL:      m.URL,
			Img:      data,
		})
	}
	return st.InsertImage(ctx, imageRow(m.ID, nil, meta, data, contentType))
}

// imageRow 用 API 元数据与抓到的字节拼装图片行。
// MIME 类型始终取自字节响应头，字节抓取失败时该字段为空。
func imageRow(mediaID uint, albumID *string, meta *upstream.ImagePayload, data []byte, contentType *string) *model.Image {
	return &model.Image{
		ID:          meta.ID,
		MediaID:     mediaID,
		AlbumID:     albumID,
		Title:       meta.Title,
		Description: meta.Description,
		UploadedUTC: meta.Datetime,
		Mimetype:    contentType,
		URL:         meta.Link,
		Views:       meta.Views,
		Img:         data,
	}
}
