package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"madebuy/internal/model"
)

func newPiece(tenantID, name string) *model.Piece {
	stock := 3
	return &model.Piece{
		TenantID: tenantID,
		Name:     name,
		Category: "rings",
		Status:   model.PieceStatusAvailable,
		Price:    decimal.NewNullDecimal(decimal.RequireFromString("49.90")),
		Currency: "AUD",
		Stock:    &stock,
		Stones:   []string{"opal"},
		Metals:   []string{"silver"},
		Images:   []model.PieceImage{{URL: "https://img.example/1.jpg", Position: 0}},
	}
}

func TestPieceRepo_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPieceRepository(db)
	ctx := context.Background()

	p := newPiece("t1", "Opal Ring")
	if err := repo.Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "t1", p.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Price.Valid || !got.Price.Decimal.Equal(decimal.RequireFromString("49.9")) {
		t.Errorf("Price = %v, want 49.9", got.Price)
	}
	if len(got.Stones) != 1 || got.Stones[0] != "opal" {
		t.Errorf("Stones = %v, want [opal]", got.Stones)
	}
	if len(got.Images) != 1 {
		t.Errorf("len(Images) = %d, want 1", len(got.Images))
	}
	if got.Etsy.Linked() {
		t.Error("新商品不应已关联")
	}
	if !got.Etsy.IsSyncEnabled() {
		t.Error("SyncEnabled 默认应开启")
	}

	if _, err := repo.GetByID(ctx, "t2", p.ID); err == nil {
		t.Error("跨租户查询应失败")
	}
}

func TestPieceRepo_RecordAndClearEtsy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPieceRepository(db)
	ctx := context.Background()

	p := newPiece("t1", "Opal Ring")
	repo.Create(ctx, p)

	now := time.Now()
	if err := repo.RecordEtsySync(ctx, p.ID, 1234, "https://www.etsy.com/listing/1234", now); err != nil {
		t.Fatalf("RecordEtsySync() error = %v", err)
	}
	repo.RecordEtsyError(ctx, p.ID, "boom")

	got, _ := repo.GetByID(ctx, "t1", p.ID)
	if !got.Etsy.Linked() || *got.Etsy.ListingID != 1234 {
		t.Fatalf("ListingID = %v, want 1234", got.Etsy.ListingID)
	}
	if got.Etsy.LastError != "boom" {
		t.Errorf("LastError = %q, want boom", got.Etsy.LastError)
	}

	// 更新接口不带 url 时保留原值
	repo.RecordEtsySync(ctx, p.ID, 1234, "", now)
	got, _ = repo.GetByID(ctx, "t1", p.ID)
	if got.Etsy.ListingURL != "https://www.etsy.com/listing/1234" {
		t.Errorf("ListingURL = %q", got.Etsy.ListingURL)
	}
	if got.Etsy.LastError != "" {
		t.Errorf("成功同步后 LastError 应清空, got %q", got.Etsy.LastError)
	}

	// listing id 为 0 时拒绝写入
	if err := repo.RecordEtsySync(ctx, p.ID, 0, "", now); !errors.Is(err, ErrInvalidListingID) {
		t.Errorf("RecordEtsySync(0) error = %v, want ErrInvalidListingID", err)
	}
	got, _ = repo.GetByID(ctx, "t1", p.ID)
	if *got.Etsy.ListingID != 1234 {
		t.Errorf("ListingID = %d, want 1234", *got.Etsy.ListingID)
	}

	if err := repo.ClearEtsyListing(ctx, p.ID); err != nil {
		t.Fatalf("ClearEtsyListing() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, "t1", p.ID)
	if got.Etsy.Linked() || got.Etsy.ListingURL != "" || got.Etsy.LastSyncedAt != nil {
		t.Errorf("解除关联后状态 = %+v", got.Etsy)
	}
}

func TestPieceRepo_ListFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPieceRepository(db)
	ctx := context.Background()

	a := newPiece("t1", "A")
	b := newPiece("t1", "B")
	c := newPiece("t1", "C")
	repo.Create(ctx, a)
	repo.Create(ctx, b)
	repo.Create(ctx, c)
	repo.Create(ctx, newPiece("t2", "Other"))

	repo.SetEtsySyncEnabled(ctx, "t1", b.ID, false)
	repo.RecordEtsySync(ctx, c.ID, 99, "", time.Now())

	all, _ := repo.List(ctx, PieceFilter{TenantID: "t1"})
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	enabled, _ := repo.List(ctx, PieceFilter{TenantID: "t1", SyncEnabledOnly: true})
	if len(enabled) != 2 {
		t.Errorf("len(enabled) = %d, want 2", len(enabled))
	}

	linked, _ := repo.List(ctx, PieceFilter{TenantID: "t1", LinkedOnly: true})
	if len(linked) != 1 || linked[0].ID != c.ID {
		t.Errorf("linked = %v, want [%s]", linked, c.ID)
	}

	byID, _ := repo.List(ctx, PieceFilter{TenantID: "t1", IDs: []string{a.ID, b.ID}})
	if len(byID) != 2 {
		t.Errorf("len(byID) = %d, want 2", len(byID))
	}
}
