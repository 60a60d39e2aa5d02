package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var trademarkReplacer = strings.NewReplacer("®", "", "©", "", "™", "")

// ExtractDescription 把商品描述 HTML 约减为最可能描述商品本身的一行。
//
// 描述通常是一个要点列表，里面混有尺码建议、配件链接等噪音。
// 约减规则：逐条扫描 <li> 的子节点，跳过其中的链接子节点（多为
// 交叉推荐，链接文本不参与匹配），其余子节点去掉商标符号后，
// 取第一个以整词形式提到品牌名的文本。没有节点命中时返回 nil。
func ExtractDescription(descriptionHTML, brand string) *string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(descriptionHTML))
	if err != nil {
		return nil
	}

	pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(brand) + `\b`)
	if err != nil {
		return nil
	}

	var found *string
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		li.Contents().EachWithBreak(func(_ int, child *goquery.Selection) bool {
			if isHyperlink(child) {
				return true
			}
			line := strings.TrimSpace(trademarkReplacer.Replace(child.Text()))
			if line == "" || !pattern.MatchString(line) {
				return true
			}
			found = &line
			return false
		})
		return found == nil
	})
	return found
}

// isHyperlink 判断节点是否为带 href 的 <a> 元素。
func isHyperlink(sel *goquery.Selection) bool {
	node := sel.Get(0)
	if node == nil || node.Type != html.ElementNode || node.Data != "a" {
		return false
	}
	_, ok := sel.Attr("href")
	return ok
}
