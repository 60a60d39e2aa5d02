package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"reviewhunter/internal/extract"
	"reviewhunter/internal/store"
	"reviewhunter/internal/upstream"
)

// Submissions 按检索词抓取帖子并逐页落库。
//
// resume 为 true 时续传：从事实表取该检索词下最旧的已保存帖子，
// 以 "t3_" 前缀拼成游标，从它之后的更旧结果继续翻页。
// 每个条目的事实行、帖子行与外链媒体（如有）在读到当页时立即写入；
// 某一页请求失败按流结束处理（告警后正常收尾），已写入的页照常提交，
// 限流与凭证类失败才向上传播。
func Submissions(ctx context.Context, st *store.Store, client *upstream.RedditClient, logger *slog.Logger, query string, resume bool) error {
	after := ""
	if resume {
		oldest, err := st.OldestSubmissionID(ctx, query)
		if err != nil {
			return err
		}
		if oldest != "" {
			after = "t3_" + oldest
			logger.Info("resuming from saved progress",
				slog.String("query", query),
				slog.String("after", after))
		}
	}

	pager := client.PaginatedSearch(query, after)
	pages, saved := 0, 0
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			if upstream.IsThrottled(err) || upstream.IsFatal(err) {
				return err
			}
			// 页面级失败视为游标耗尽，保留已保存的页。
			logger.Warn("search page failed, keeping saved pages",
				slog.String("query", query),
				slog.Int("pages", pages),
				slog.String("error", err.Error()))
			break
		}
		if page == nil {
			break
		}
		pages++

		for _, item := range extract.ExtractSubmissions(page, query) {
			if err := st.InsertSubmissionFact(ctx, &item.Fact); err != nil {
				return err
			}
			if err := st.InsertSubmission(ctx, &item.Submission); err != nil {
				return err
			}
			if item.DirectMedia != nil {
				if err := st.InsertMedia(ctx, item.DirectMedia); err != nil {
					return err
				}
			}
			saved++
		}
		logger.Info("page processed",
			slog.String("query", query),
			slog.Int("page", pages),
			slog.Int("items", len(page.Data.Children)))
	}

	logger.Info("submission ingest finished",
		slog.String("query", query),
		slog.Int("pages", pages),
		slog.Int("items", saved))
	return nil
}

// Links 扫描所有带正文的帖子，提取正文中的媒体链接并落库。
//
// 单条帖子的正文解析失败只告警跳过，不影响其余帖子。
func Links(ctx context.Context, st *store.Store, logger *slog.Logger) error {
	bodies, err := st.SubmissionBodies(ctx)
	if err != nil {
		return err
	}

	saved := 0
	for _, body := range bodies {
		links, err := extract.ExtractLinks(body.ID, body.SelftextHTML)
		if err != nil {
			logger.Warn("skipping unparseable submission body",
				slog.String("submission_id", body.ID),
				slog.String("error", err.Error()))
			continue
		}
		for i := range links {
			if err := st.InsertMedia(ctx, &links[i]); err != nil {
				return fmt.Errorf("save link for submission %s: %w", body.ID, err)
			}
			saved++
		}
	}

	logger.Info("link ingest finished",
		slog.Int("submissions", len(bodies)),
		slog.Int("links", saved))
	return nil
}
