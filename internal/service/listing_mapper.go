package service

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"madebuy/internal/model"
	"madebuy/pkg/etsy"
)

// ==================== 类目映射 ====================

// TaxonomyOther 未知类目归入 Jewelry 根类目
const TaxonomyOther int64 = 1179

// categoryTaxonomy Etsy seller taxonomy
var categoryTaxonomy = map[string]int64{
	"rings":     1239,
	"necklaces": 1207,
	"earrings":  1205,
	"bracelets": 1196,
	"pendants":  1211,
	"brooches":  1200,
	"anklets":   1194,
	"sets":      1216,
	"charms":    1201,
	"cufflinks": 1203,
	"other":     TaxonomyOther,
}

// MapCategoryToTaxonomy 类目名不区分大小写，单复数均可
func MapCategoryToTaxonomy(category string) int64 {
	key := strings.ToLower(strings.TrimSpace(category))
	if key == "" {
		return TaxonomyOther
	}
	if id, ok := categoryTaxonomy[key]; ok {
		return id
	}
	if id, ok := categoryTaxonomy[key+"s"]; ok {
		return id
	}
	return TaxonomyOther
}

// MapStatusToEtsyState ok=false 表示该状态没有对应的 Etsy 状态
func MapStatusToEtsyState(status model.PieceStatus) (string, bool) {
	switch status {
	case model.PieceStatusAvailable:
		return etsy.ListingStateActive, true
	case model.PieceStatusDraft:
		return etsy.ListingStateDraft, true
	case model.PieceStatusSold, model.PieceStatusReserved:
		return etsy.ListingStateInactive, true
	}
	return "", false
}

// ==================== 文本字段 ====================

// TruncateTitle 超过 140 个字符时截断并以 ... 结尾
func TruncateTitle(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= etsy.MaxTitleLength {
		return name
	}
	runes := []rune(name)
	return string(runes[:etsy.MaxTitleLength-3]) + "..."
}

// dedupe 去空白、不区分大小写去重，保持顺序
func dedupe(values []string, seen map[string]struct{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

func pieceMaterials(piece *model.Piece) []string {
	all := make([]string, 0, len(piece.Stones)+len(piece.Metals))
	all = append(all, piece.Stones...)
	all = append(all, piece.Metals...)
	return dedupe(all, make(map[string]struct{}))
}

// BuildDescription 正文 + 材质 + 工艺 + 规格，空段落省略
func BuildDescription(piece *model.Piece) string {
	var sections []string

	if d := strings.TrimSpace(piece.Description); d != "" {
		sections = append(sections, d)
	}

	bullets := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		var b strings.Builder
		b.WriteString(title)
		for _, it := range items {
			b.WriteString("\n• ")
			b.WriteString(it)
		}
		sections = append(sections, b.String())
	}

	bullets("Materials:", pieceMaterials(piece))
	bullets("Techniques:", dedupe(piece.Techniques, make(map[string]struct{})))

	var details []string
	if v := strings.TrimSpace(piece.Dimensions); v != "" {
		details = append(details, "Dimensions: "+v)
	}
	if v := strings.TrimSpace(piece.Weight); v != "" {
		details = append(details, "Weight: "+v)
	}
	if v := strings.TrimSpace(piece.ChainLength); v != "" {
		details = append(details, "Chain length: "+v)
	}
	bullets("Details:", details)

	return strings.Join(sections, "\n\n")
}

// normalizeTag Etsy 标签最长 20 个字符
func normalizeTag(tag string) string {
	tag = strings.Join(strings.Fields(tag), " ")
	if utf8.RuneCountInString(tag) > etsy.MaxTagLength {
		tag = strings.TrimSpace(string([]rune(tag)[:etsy.MaxTagLength]))
	}
	return tag
}

// BuildTags 最多 10 个自有标签 + 类目 + handmade，最多 13 个
func BuildTags(piece *model.Piece) []string {
	seen := make(map[string]struct{})

	own := make([]string, 0, len(piece.Tags))
	for _, t := range piece.Tags {
		own = append(own, normalizeTag(t))
	}
	tags := dedupe(own, seen)
	if len(tags) > 10 {
		tags = tags[:10]
	}

	extra := []string{normalizeTag(piece.Category), "handmade"}
	tags = append(tags, dedupe(extra, seen)...)

	if len(tags) > etsy.MaxTags {
		tags = tags[:etsy.MaxTags]
	}
	return tags
}

// BuildMaterials 宝石 + 金属，最多 13 个
func BuildMaterials(piece *model.Piece) []string {
	materials := pieceMaterials(piece)
	if len(materials) > etsy.MaxMaterials {
		materials = materials[:etsy.MaxMaterials]
	}
	return materials
}

// ==================== 价格与库存 ====================

// etsyPrice 保留两位小数，不足 Etsy 最低价时取最低价
func etsyPrice(price decimal.Decimal) float64 {
	min := decimal.NewFromFloat(etsy.MinPrice)
	p := price.Round(2)
	if p.LessThan(min) {
		p = min
	}
	return p.InexactFloat64()
}

func pieceQuantity(piece *model.Piece) int {
	if piece.Stock == nil || *piece.Stock < 0 {
		return 0
	}
	return *piece.Stock
}

// CreateInventoryUpdate 单一 offering；数量为 0 时禁用而不是删除
func CreateInventoryUpdate(quantity int, price decimal.Decimal) etsy.InventoryUpdateReq {
	if quantity < 0 {
		quantity = 0
	}
	return etsy.InventoryUpdateReq{
		Products: []etsy.InventoryProduct{{
			Sku:            "",
			PropertyValues: []etsy.PropertyValue{},
			Offerings: []etsy.Offering{{
				Price:     etsyPrice(price),
				Quantity:  quantity,
				IsEnabled: quantity > 0,
			}},
		}},
		PriceOnProperty:    []int64{},
		QuantityOnProperty: []int64{},
		SkuOnProperty:      []int64{},
	}
}

// ==================== Listing 载荷 ====================

// PieceToEtsyListingCreate 创建草稿载荷
// Etsy 创建时数量至少为 1，真实库存随后通过库存接口推送
func PieceToEtsyListingCreate(piece *model.Piece, conn *model.MarketplaceConnection) etsy.CreateListingReq {
	title := TruncateTitle(piece.Name)
	description := BuildDescription(piece)
	if description == "" {
		description = title
	}

	quantity := pieceQuantity(piece)
	if quantity < 1 {
		quantity = 1
	}

	price := decimal.Zero
	if piece.Price.Valid {
		price = piece.Price.Decimal
	}

	req := etsy.CreateListingReq{
		Quantity:    quantity,
		Title:       title,
		Description: description,
		Price:       etsyPrice(price),
		WhoMade:     etsy.WhoMadeIDid,
		WhenMade:    etsy.WhenMadeMadeToOrder,
		Type:        etsy.ListingTypePhysical,
		TaxonomyID:  MapCategoryToTaxonomy(piece.Category),
		Tags:        BuildTags(piece),
		Materials:   BuildMaterials(piece),
	}
	if conn != nil {
		req.ShippingProfileID = conn.ShippingProfileID
	}
	return req
}

// PieceToEtsyListingUpdate 更新载荷，未映射的状态不发送 state
func PieceToEtsyListingUpdate(piece *model.Piece) etsy.UpdateListingReq {
	req := etsy.UpdateListingReq{
		Title:       TruncateTitle(piece.Name),
		Description: BuildDescription(piece),
		TaxonomyID:  MapCategoryToTaxonomy(piece.Category),
		Tags:        BuildTags(piece),
		Materials:   BuildMaterials(piece),
	}
	if state, ok := MapStatusToEtsyState(piece.Status); ok {
		req.State = state
	}
	return req
}
