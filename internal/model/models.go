package model

// SubmissionFact 是检索事实表（冗余表）。
//
// 它按 (帖子, 检索词) 记录发现帖子的检索词与创建时间，
// 续传查询（按检索词找最旧的已保存帖子）只读这张表。
type SubmissionFact struct {
	ID             string `gorm:"primaryKey;type:varchar(16)"` // 帖子在源平台的唯一标识
	Title          string `gorm:"not null"`                    // 标题
	AuthorFullname string // 作者标识
	URL            string // 帖子的外链地址
	CreatedUTC     int64  `gorm:"not null;index"`                     // 创建时间（epoch 秒）
	SearchQuery    string `gorm:"primaryKey;type:varchar(191);index"` // 发现该帖子的检索词
}

// Submission 表示一条检索到的帖子。
//
// 帖子记录一经写入不再更新；重复观察到同一 ID 时静默丢弃（insert-or-ignore）。
type Submission struct {
	ID             string  `gorm:"primaryKey;type:varchar(16)"` // 帖子在源平台的唯一标识
	Subreddit      string  `gorm:"not null"`                    // 所属版块
	Title          string  `gorm:"not null"`                    // 标题
	Author         string  // 作者显示名
	AuthorFullname string  // 作者标识
	Permalink      string  // 站内链接
	URL            string  // 帖子的外链地址
	CreatedUTC     int64   `gorm:"not null"` // 创建时间（epoch 秒）
	SelftextHTML   *string // 渲染后的正文 HTML（可空）
	Comments       int     // 评论数
	Gilded         int     // 镀金数
	Downs          int     // 踩数
	Ups            int     // 赞数
	Score          int     // 综合得分
	SearchQuery    string  `gorm:"not null"` // 发现该帖子的检索词
}

// Media 表示从帖子提取的一条媒体链接。
//
// IsDirect 为 true 表示链接来自帖子元数据的外链（无锚文本），
// false 表示来自正文中的 <a> 标签（携带锚文本）。
// 两条提取路径之间没有跨路径唯一约束，同一 URL 允许各登记一行。
type Media struct {
	ID           uint    `gorm:"primaryKey"`     // 内部生成的标识
	SubmissionID string  `gorm:"not null;index"` // 所属帖子 ID
	URL          string  `gorm:"not null"`       // 媒体链接
	IsDirect     bool    `gorm:"not null"`       // 提取路径: 外链 / 正文
	Txt          *string // 锚文本（仅正文路径）
}

// Album 表示 Imgur 相册的元数据。
//
// 每条 Album 归属于发现它的那条 Media（1:1）。
type Album struct {
	ID          string  `gorm:"primaryKey;type:varchar(16)"` // 平台分配的相册 ID
	MediaID     uint    `gorm:"not null"`                    // 所属媒体链接 ID
	Title       *string // 标题（可空）
	Description *string // 描述（可空）
	UploadedUTC int64   // 上传时间（epoch 秒）
	URL         string  // 相册规范地址
	Views       int64   // 浏览次数
}

// Image 表示一张抓取到的图片。
//
// 属于相册的图片携带 AlbumID；独立图片该字段为空。
// 元数据字段在无 API 元数据时为空；字节抓取失败时仅保留元数据。
type Image struct {
	ID          string  `gorm:"primaryKey;type:varchar(16)"` // 平台分配的图片 ID
	MediaID     uint    `gorm:"not null;index"`              // 所属媒体链接 ID
	AlbumID     *string // 所属相册 ID（可空）
	Title       *string // 标题（可空）
	Description *string // 描述（可空）
	UploadedUTC *int64  // 上传时间（可空）
	Mimetype    *string // MIME 类型（字节抓取失败时为空）
	URL         string  // 图片规范地址
	Views       *int64  // 浏览次数（可空）
	Img         []byte  // 原始图片字节（抓取失败时为空）
}

// ProductSearchResult 表示目录检索返回的一条 (检索词, 商品) 结果。
//
// 同一商品在不同检索词下的重复结果是预期的，会被保留。
type ProductSearchResult struct {
	ID          uint   `gorm:"primaryKey"`                             // 内部生成的标识
	Brand       string `gorm:"not null"`                               // 品牌名
	ProductID   int64  `gorm:"not null;uniqueIndex:idx_product_query"` // 商品数字 ID
	ProductName string `gorm:"not null"`                               // 商品名
	Category    string // 类目
	SearchQuery string `gorm:"not null;type:varchar(191);uniqueIndex:idx_product_query"` // 检索词
}

// Product 表示一条商品详情。
//
// Description 已被约减为最可能描述商品本身的那一句话（可空）。
type Product struct {
	ID          int64   `gorm:"primaryKey"` // 商品数字 ID（平台唯一）
	Brand       string  `gorm:"not null"`   // 品牌名
	Name        string  `gorm:"not null"`   // 商品名
	DefaultURL  string  // 商品详情页地址
	Description *string // 约减后的单句描述（可空）
}
