package service

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"madebuy/internal/model"
	"madebuy/pkg/etsy"
)

func samplePiece() *model.Piece {
	return &model.Piece{
		TenantID:    "t1",
		Name:        "Opal Ring",
		Description: "A hand-forged ring.",
		Category:    "rings",
		Status:      model.PieceStatusAvailable,
		Price:       decimal.NewNullDecimal(decimal.RequireFromString("120.50")),
		Currency:    "AUD",
		Stock:       intPtr(3),
		Stones:      pq.StringArray{"Opal", "Diamond"},
		Metals:      pq.StringArray{"Sterling Silver", "opal"},
		Techniques:  pq.StringArray{"Lost wax casting"},
		Tags:        pq.StringArray{"opal", "ring"},
		Dimensions:  "2cm x 1cm",
		Weight:      "4g",
	}
}

// ==================== 类目 / 状态 ====================

func TestMapCategoryToTaxonomy(t *testing.T) {
	tests := []struct {
		category string
		want     int64
	}{
		{"rings", 1239},
		{"Ring", 1239},
		{" NECKLACES ", 1207},
		{"earring", 1205},
		{"", TaxonomyOther},
		{"spaceship", TaxonomyOther},
	}
	for _, tt := range tests {
		if got := MapCategoryToTaxonomy(tt.category); got != tt.want {
			t.Errorf("MapCategoryToTaxonomy(%q) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestMapStatusToEtsyState(t *testing.T) {
	tests := []struct {
		status model.PieceStatus
		want   string
		ok     bool
	}{
		{model.PieceStatusAvailable, etsy.ListingStateActive, true},
		{model.PieceStatusDraft, etsy.ListingStateDraft, true},
		{model.PieceStatusSold, etsy.ListingStateInactive, true},
		{model.PieceStatusReserved, etsy.ListingStateInactive, true},
		{model.PieceStatusArchived, "", false},
		{model.PieceStatusCommissioned, "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MapStatusToEtsyState(tt.status)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MapStatusToEtsyState(%q) = (%q, %v), want (%q, %v)", tt.status, got, ok, tt.want, tt.ok)
		}
	}
}

// ==================== 标题 / 描述 ====================

func TestTruncateTitle(t *testing.T) {
	assert.Equal(t, "Opal Ring", TruncateTitle("  Opal Ring "))

	exact := strings.Repeat("a", etsy.MaxTitleLength)
	assert.Equal(t, exact, TruncateTitle(exact))

	long := strings.Repeat("é", 200)
	got := TruncateTitle(long)
	assert.Equal(t, etsy.MaxTitleLength, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestBuildDescription_AllSections(t *testing.T) {
	got := BuildDescription(samplePiece())

	want := "A hand-forged ring.\n\n" +
		"Materials:\n• Opal\n• Diamond\n• Sterling Silver\n\n" +
		"Techniques:\n• Lost wax casting\n\n" +
		"Details:\n• Dimensions: 2cm x 1cm\n• Weight: 4g"
	assert.Equal(t, want, got)
}

func TestBuildDescription_EmptySectionsOmitted(t *testing.T) {
	assert.Equal(t, "", BuildDescription(&model.Piece{Name: "Bare"}))

	got := BuildDescription(&model.Piece{ChainLength: "45cm"})
	assert.Equal(t, "Details:\n• Chain length: 45cm", got)
}

// ==================== 标签 / 材质 ====================

func TestBuildTags_OwnThenCategoryThenHandmade(t *testing.T) {
	got := BuildTags(samplePiece())
	assert.Equal(t, []string{"opal", "ring", "rings", "handmade"}, got)
}

func TestBuildTags_DedupAndLimits(t *testing.T) {
	p := &model.Piece{Category: "Handmade"}
	for i := 0; i < 15; i++ {
		p.Tags = append(p.Tags, fmt.Sprintf("tag%d", i))
	}
	p.Tags = append(p.Tags, "TAG1", "   ", "a very long tag that exceeds twenty")

	got := BuildTags(p)

	// 10 个自有标签 + 类目，handmade 与类目重复被去掉
	assert.Len(t, got, 11)
	assert.Equal(t, "tag0", got[0])
	assert.Equal(t, "Handmade", got[10])
	for _, tag := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(tag), etsy.MaxTagLength)
	}
}

func TestBuildTags_LongTagTruncated(t *testing.T) {
	got := BuildTags(&model.Piece{Tags: pq.StringArray{"a very long tag that exceeds twenty"}})
	assert.Equal(t, []string{"a very long tag that", "handmade"}, got)
}

func TestBuildTags_NilFields(t *testing.T) {
	assert.Equal(t, []string{"handmade"}, BuildTags(&model.Piece{}))
}

func TestBuildMaterials(t *testing.T) {
	assert.Equal(t, []string{"Opal", "Diamond", "Sterling Silver"}, BuildMaterials(samplePiece()))

	p := &model.Piece{}
	for i := 0; i < 20; i++ {
		p.Stones = append(p.Stones, fmt.Sprintf("stone %d", i))
	}
	assert.Len(t, BuildMaterials(p), etsy.MaxMaterials)
	assert.Empty(t, BuildMaterials(&model.Piece{}))
}

// ==================== 载荷 ====================

func TestPieceToEtsyListingCreate(t *testing.T) {
	conn := &model.MarketplaceConnection{ShopID: 99, ShippingProfileID: 555}
	req := PieceToEtsyListingCreate(samplePiece(), conn)

	assert.Equal(t, 3, req.Quantity)
	assert.Equal(t, "Opal Ring", req.Title)
	assert.Equal(t, 120.5, req.Price)
	assert.Equal(t, etsy.WhoMadeIDid, req.WhoMade)
	assert.Equal(t, etsy.WhenMadeMadeToOrder, req.WhenMade)
	assert.Equal(t, etsy.ListingTypePhysical, req.Type)
	assert.Equal(t, int64(1239), req.TaxonomyID)
	assert.Equal(t, int64(555), req.ShippingProfileID)
	assert.Contains(t, req.Tags, "handmade")
	assert.Equal(t, []string{"Opal", "Diamond", "Sterling Silver"}, req.Materials)
}

func TestPieceToEtsyListingCreate_MinimalPiece(t *testing.T) {
	req := PieceToEtsyListingCreate(&model.Piece{Name: "Bare"}, nil)

	assert.Equal(t, 1, req.Quantity, "Etsy 创建时数量至少为 1")
	assert.Equal(t, etsy.MinPrice, req.Price)
	assert.Equal(t, "Bare", req.Description)
	assert.Equal(t, TaxonomyOther, req.TaxonomyID)
	assert.Zero(t, req.ShippingProfileID)
}

func TestPieceToEtsyListingCreate_PriceFloor(t *testing.T) {
	p := &model.Piece{Name: "Tiny", Price: decimal.NewNullDecimal(decimal.RequireFromString("0.05"))}
	assert.Equal(t, etsy.MinPrice, PieceToEtsyListingCreate(p, nil).Price)

	p.Price = decimal.NewNullDecimal(decimal.RequireFromString("19.999"))
	assert.Equal(t, 20.0, PieceToEtsyListingCreate(p, nil).Price)
}

func TestPieceToEtsyListingUpdate_State(t *testing.T) {
	p := samplePiece()
	assert.Equal(t, etsy.ListingStateActive, PieceToEtsyListingUpdate(p).State)

	p.Status = model.PieceStatusArchived
	assert.Empty(t, PieceToEtsyListingUpdate(p).State, "未映射状态不发送 state")
}

func TestCreateInventoryUpdate(t *testing.T) {
	req := CreateInventoryUpdate(2, decimal.RequireFromString("45"))
	if assert.Len(t, req.Products, 1) && assert.Len(t, req.Products[0].Offerings, 1) {
		off := req.Products[0].Offerings[0]
		assert.Equal(t, 2, off.Quantity)
		assert.Equal(t, 45.0, off.Price)
		assert.True(t, off.IsEnabled)
	}

	zero := CreateInventoryUpdate(0, decimal.RequireFromString("45"))
	off := zero.Products[0].Offerings[0]
	assert.Equal(t, 0, off.Quantity)
	assert.False(t, off.IsEnabled, "库存为 0 时禁用 offering")

	neg := CreateInventoryUpdate(-4, decimal.Zero)
	assert.Equal(t, 0, neg.Products[0].Offerings[0].Quantity)
	assert.Equal(t, etsy.MinPrice, neg.Products[0].Offerings[0].Price)
}
