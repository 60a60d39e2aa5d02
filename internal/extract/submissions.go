package extract

import (
	"reviewhunter/internal/classify"
	"reviewhunter/internal/model"
	"reviewhunter/internal/upstream"
)

// ExtractedSubmission 是从一页检索结果中提取的单条帖子记录组。
//
// Fact 与 Submission 总是成对产出；外链命中媒体域名时
// DirectMedia 非空，指向一条待登记的外链媒体。
type ExtractedSubmission struct {
	Fact        model.SubmissionFact
	Submission  model.Submission
	DirectMedia *model.Media
}

// ExtractSubmissions 把一页检索结果转换为可入库的记录组。
//
// 参数:
//
//	listing: 上游返回的一页检索结果
//	query: 产生该页的检索词
//
// 返回值:
//
//	[]ExtractedSubmission: 与页内条目一一对应的记录组
func ExtractSubmissions(listing *upstream.Listing, query string) []ExtractedSubmission {
	out := make([]ExtractedSubmission, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		payload := child.Data
		createdUTC := int64(payload.CreatedUTC)

		item := ExtractedSubmission{
			Fact: model.SubmissionFact{
				ID:             payload.ID,
				Title:          payload.Title,
				AuthorFullname: payload.AuthorFullname,
				URL:            payload.URL,
				CreatedUTC:     createdUTC,
				SearchQuery:    query,
			},
			Submission: model.Submission{
				ID:             payload.ID,
				Subreddit:      payload.Subreddit,
				Title:          payload.Title,
				Author:         payload.Author,
				AuthorFullname: payload.AuthorFullname,
				Permalink:      payload.Permalink,
				URL:            payload.URL,
				CreatedUTC:     createdUTC,
				SelftextHTML:   payload.SelftextHTML,
				Comments:       payload.NumComments,
				Gilded:         payload.Gilded,
				Downs:          payload.Downs,
				Ups:            payload.Ups,
				Score:          payload.Score,
				SearchQuery:    query,
			},
		}

		// 外链路径提取的媒体不携带锚文本
		if classify.IsMediaURL(payload.URL) {
			item.DirectMedia = &model.Media{
				SubmissionID: payload.ID,
				URL:          payload.URL,
				IsDirect:     true,
			}
		}
		out = append(out, item)
	}
	return out
}
