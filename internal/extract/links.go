package extract

import (
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"reviewhunter/internal/classify"
	"reviewhunter/internal/model"
)

// ExtractLinks 从帖子正文 HTML 中提取指向媒体域名的链接。
//
// 正文是经过实体转义的渲染 HTML，先反转义再解析；
// 只保留 href 命中媒体域名的 <a> 标签，锚文本随行保留。
//
// 参数:
//
//	submissionID: 正文所属的帖子 ID
//	selftextHTML: 转义后的正文 HTML
//
// 返回值:
//
//	[]model.Media: 正文路径提取的媒体链接（可能为空）
//	error: HTML 解析失败返回错误
func ExtractLinks(submissionID, selftextHTML string) ([]model.Media, error) {
	unescaped := html.UnescapeString(selftextHTML)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(unescaped))
	if err != nil {
		return nil, fmt.Errorf("parse submission body: %w", err)
	}

	var links []model.Media
	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || !classify.IsMediaURL(href) {
			return
		}
		txt := strings.TrimSpace(sel.Text())
		media := model.Media{
			SubmissionID: submissionID,
			URL:          href,
			IsDirect:     false,
		}
		if txt != "" {
			media.Txt = &txt
		}
		links = append(links, media)
	})
	return links, nil
}
