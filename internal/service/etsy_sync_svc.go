package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"madebuy/internal/model"
	"madebuy/internal/repository"
	"madebuy/pkg/etsy"
)

// MaxListingsPageSize Etsy 单页上限
const MaxListingsPageSize = 100

// SyncState 商品与 Etsy 的关联状态
type SyncState string

const (
	SyncStateUnlinked      SyncState = "unlinked"
	SyncStateLinkedSuccess SyncState = "linked_success"
	SyncStateLinkedError   SyncState = "linked_error"
)

// SyncResult 单次同步结果，失败通过 Success/Error 返回而不是 Go error
type SyncResult struct {
	Success    bool   `json:"success"`
	ListingID  int64  `json:"listing_id,omitempty"`
	ListingURL string `json:"listing_url,omitempty"`
	Error      string `json:"error,omitempty"`
	Created    bool   `json:"created,omitempty"`
	Uploaded   int    `json:"uploaded,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
}

// SyncStatus 商品的同步状态
type SyncStatus struct {
	Linked       bool       `json:"linked"`
	ListingID    *int64     `json:"listing_id,omitempty"`
	ListingURL   string     `json:"listing_url,omitempty"`
	SyncEnabled  bool       `json:"sync_enabled"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	State        SyncState  `json:"state"`
}

// ListingFilter 拉取 Etsy listing 的分页条件
type ListingFilter struct {
	State  string
	Limit  int
	Offset int
}

type EtsySyncService struct {
	client *etsy.Client
	auth   *AuthService
	pieces repository.PieceRepository
	images ImageSource
	logger *zap.Logger
	now    func() time.Time
}

func NewEtsySyncService(client *etsy.Client, auth *AuthService, pieces repository.PieceRepository,
	images ImageSource, logger *zap.Logger) *EtsySyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EtsySyncService{
		client: client,
		auth:   auth,
		pieces: pieces,
		images: images,
		logger: logger.Named("etsy-sync"),
		now:    time.Now,
	}
}

func failResult(err error) SyncResult {
	return SyncResult{Success: false, Error: err.Error()}
}

// recoverResult panic 转为失败结果
func (s *EtsySyncService) recoverResult(op string, res *SyncResult) {
	if r := recover(); r != nil {
		s.logger.Error("panic during etsy sync", zap.String("op", op), zap.Any("panic", r))
		*res = SyncResult{Success: false, Error: fmt.Sprintf("%s: unexpected error: %v", op, r)}
	}
}

func validateSyncInput(piece *model.Piece, conn *model.MarketplaceConnection) error {
	if piece == nil {
		return ErrPieceNotFound
	}
	if conn == nil {
		return ErrConnectionNotFound
	}
	return nil
}

// ==================== Listing ====================

// SyncPieceToEtsy 未关联时创建草稿，已关联时更新信息再覆盖库存
func (s *EtsySyncService) SyncPieceToEtsy(ctx context.Context, piece *model.Piece, conn *model.MarketplaceConnection) (res SyncResult) {
	defer s.recoverResult("sync piece", &res)
	if err := validateSyncInput(piece, conn); err != nil {
		return failResult(err)
	}

	// 1. 新建，没有价格的商品不上架
	if !piece.Etsy.Linked() {
		if !piece.Price.Valid {
			return failResult(ErrMissingPrice)
		}
		listing, err := s.client.CreateDraftListing(ctx, conn.AccessToken, conn.ShopID, PieceToEtsyListingCreate(piece, conn))
		if err != nil {
			s.logger.Warn("create listing failed", zap.String("piece_id", piece.ID), zap.Error(err))
			return failResult(fmt.Errorf("create listing: %w", err))
		}
		if listing == nil || listing.ListingID <= 0 {
			s.logger.Warn("create listing returned no listing id", zap.String("piece_id", piece.ID))
			return failResult(errors.New("create listing: response has no listing id"))
		}
		return SyncResult{
			Success:    true,
			ListingID:  listing.ListingID,
			ListingURL: listing.URL,
			Created:    true,
		}
	}

	// 2. 更新
	listingID := *piece.Etsy.ListingID
	listing, err := s.client.UpdateListing(ctx, conn.AccessToken, conn.ShopID, listingID, PieceToEtsyListingUpdate(piece))
	if err != nil {
		s.logger.Warn("update listing failed", zap.String("piece_id", piece.ID), zap.Int64("listing_id", listingID), zap.Error(err))
		res = failResult(fmt.Errorf("update listing: %w", err))
		res.ListingID = listingID
		return res
	}

	listingURL := listing.URL
	if listingURL == "" {
		listingURL = piece.Etsy.ListingURL
	}

	// 3. 库存，缺价格或库存时跳过
	if piece.Price.Valid && piece.Stock != nil {
		inv := CreateInventoryUpdate(pieceQuantity(piece), piece.Price.Decimal)
		if err := s.client.UpdateListingInventory(ctx, conn.AccessToken, listingID, inv); err != nil {
			s.logger.Warn("update inventory failed", zap.String("piece_id", piece.ID), zap.Int64("listing_id", listingID), zap.Error(err))
			return SyncResult{
				Success:    false,
				ListingID:  listingID,
				ListingURL: listingURL,
				Error:      fmt.Sprintf("update inventory: %v", err),
			}
		}
	}

	return SyncResult{Success: true, ListingID: listingID, ListingURL: listingURL}
}

// SyncInventoryToEtsy 只推送库存与价格
func (s *EtsySyncService) SyncInventoryToEtsy(ctx context.Context, piece *model.Piece, conn *model.MarketplaceConnection) (res SyncResult) {
	defer s.recoverResult("sync inventory", &res)
	if err := validateSyncInput(piece, conn); err != nil {
		return failResult(err)
	}
	if !piece.Etsy.Linked() {
		return failResult(ErrNotLinked)
	}
	listingID := *piece.Etsy.ListingID
	if !piece.Price.Valid {
		return SyncResult{ListingID: listingID, Error: "piece has no price"}
	}
	if piece.Stock == nil {
		return SyncResult{ListingID: listingID, Error: "piece has no stock quantity"}
	}

	inv := CreateInventoryUpdate(pieceQuantity(piece), piece.Price.Decimal)
	if err := s.client.UpdateListingInventory(ctx, conn.AccessToken, listingID, inv); err != nil {
		s.logger.Warn("update inventory failed", zap.String("piece_id", piece.ID), zap.Error(err))
		return SyncResult{ListingID: listingID, Error: fmt.Sprintf("update inventory: %v", err)}
	}
	return SyncResult{Success: true, ListingID: listingID, ListingURL: piece.Etsy.ListingURL}
}

// SyncImagesToEtsy 按 position 顺序上传最多 10 张图片
// 单张失败只记录并跳过，全部失败才算失败
func (s *EtsySyncService) SyncImagesToEtsy(ctx context.Context, piece *model.Piece, conn *model.MarketplaceConnection) (res SyncResult) {
	defer s.recoverResult("sync images", &res)
	if err := validateSyncInput(piece, conn); err != nil {
		return failResult(err)
	}
	if !piece.Etsy.Linked() {
		return failResult(ErrNotLinked)
	}
	listingID := *piece.Etsy.ListingID
	res = SyncResult{ListingID: listingID, ListingURL: piece.Etsy.ListingURL}

	images := make([]model.PieceImage, len(piece.Images))
	copy(images, piece.Images)
	sort.SliceStable(images, func(i, j int) bool { return images[i].Position < images[j].Position })
	if len(images) > etsy.MaxImages {
		images = images[:etsy.MaxImages]
	}

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			res.Error = fmt.Sprintf("image sync canceled: %v", err)
			return res
		}

		if err := s.uploadImage(ctx, conn, listingID, img.URL, i+1); err != nil {
			s.logger.Warn("skip image",
				zap.String("piece_id", piece.ID),
				zap.String("url", img.URL),
				zap.Error(err))
			res.Skipped++
			continue
		}
		res.Uploaded++
	}

	res.Success = len(images) == 0 || res.Uploaded > 0
	if !res.Success {
		res.Error = fmt.Sprintf("all %d images failed to upload", len(images))
	}
	return res
}

func (s *EtsySyncService) uploadImage(ctx context.Context, conn *model.MarketplaceConnection, listingID int64, url string, rank int) error {
	if s.images == nil {
		return errors.New("no image source configured")
	}
	img, err := s.images.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if _, err := s.client.UploadListingImage(ctx, conn.AccessToken, conn.ShopID, listingID, img.Filename, img.Data, rank); err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	return nil
}

// DeleteEtsyListing 删除远端 listing，远端已不存在视为成功
func (s *EtsySyncService) DeleteEtsyListing(ctx context.Context, piece *model.Piece, conn *model.MarketplaceConnection) (res SyncResult) {
	defer s.recoverResult("delete listing", &res)
	if err := validateSyncInput(piece, conn); err != nil {
		return failResult(err)
	}
	if !piece.Etsy.Linked() {
		return failResult(ErrNotLinked)
	}
	listingID := *piece.Etsy.ListingID

	if err := s.client.DeleteListing(ctx, conn.AccessToken, listingID); err != nil && !etsy.IsNotFound(err) {
		s.logger.Warn("delete listing failed", zap.Int64("listing_id", listingID), zap.Error(err))
		return SyncResult{ListingID: listingID, Error: fmt.Sprintf("delete listing: %v", err)}
	}
	return SyncResult{Success: true, ListingID: listingID}
}

// FetchEtsyListings 分页拉取店铺 listing
func (s *EtsySyncService) FetchEtsyListings(ctx context.Context, conn *model.MarketplaceConnection, filter ListingFilter) (*etsy.ListingsResp, error) {
	if conn == nil {
		return nil, ErrConnectionNotFound
	}
	if filter.Limit > MaxListingsPageSize {
		filter.Limit = MaxListingsPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.client.GetShopListings(ctx, conn.AccessToken, conn.ShopID, etsy.ListingsQuery{
		State:  filter.State,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetSyncStatus 纯函数，不访问网络
func GetSyncStatus(piece *model.Piece) SyncStatus {
	if piece == nil {
		return SyncStatus{State: SyncStateUnlinked}
	}
	e := piece.Etsy
	status := SyncStatus{
		Linked:       e.Linked(),
		ListingURL:   e.ListingURL,
		SyncEnabled:  e.IsSyncEnabled(),
		LastSyncedAt: e.LastSyncedAt,
		LastError:    e.LastError,
	}
	switch {
	case !status.Linked:
		status.State = SyncStateUnlinked
	case e.LastError != "":
		status.State = SyncStateLinkedError
	default:
		status.State = SyncStateLinkedSuccess
	}
	if status.Linked {
		id := *e.ListingID
		status.ListingID = &id
	}
	return status
}

// ==================== 持久化编排 ====================

func (s *EtsySyncService) loadPiece(ctx context.Context, tenantID, pieceID string) (*model.Piece, error) {
	piece, err := s.pieces.GetByID(ctx, tenantID, pieceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPieceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get piece: %w", err)
	}
	return piece, nil
}

// PublishPiece 加载商品与授权，同步后写回集成状态
// 新建 listing 时顺带上传图片，图片失败不影响结果
func (s *EtsySyncService) PublishPiece(ctx context.Context, tenantID, pieceID string) SyncResult {
	piece, err := s.loadPiece(ctx, tenantID, pieceID)
	if err != nil {
		return failResult(err)
	}
	conn, _, err := s.auth.ResolveToken(ctx, tenantID)
	if err != nil {
		return failResult(err)
	}
	return s.syncAndRecord(ctx, piece, conn)
}

// syncAndRecord 对已准备好 token 的授权执行同步并写回
func (s *EtsySyncService) syncAndRecord(ctx context.Context, piece *model.Piece, conn *model.MarketplaceConnection) SyncResult {
	res := s.SyncPieceToEtsy(ctx, piece, conn)
	s.record(ctx, piece, res)

	if res.Success && res.Created && len(piece.Images) > 0 {
		linked := *piece
		linked.Etsy.ListingID = &res.ListingID
		img := s.SyncImagesToEtsy(ctx, &linked, conn)
		res.Uploaded, res.Skipped = img.Uploaded, img.Skipped
	}
	return res
}

func (s *EtsySyncService) record(ctx context.Context, piece *model.Piece, res SyncResult) {
	var err error
	if res.Success {
		err = s.pieces.RecordEtsySync(ctx, piece.ID, res.ListingID, res.ListingURL, s.now())
	} else {
		err = s.pieces.RecordEtsyError(ctx, piece.ID, res.Error)
	}
	if err != nil {
		s.logger.Error("record sync state failed", zap.String("piece_id", piece.ID), zap.Error(err))
	}
}

// InventoryForPiece 加载并推送库存
func (s *EtsySyncService) InventoryForPiece(ctx context.Context, tenantID, pieceID string) SyncResult {
	piece, err := s.loadPiece(ctx, tenantID, pieceID)
	if err != nil {
		return failResult(err)
	}
	conn, _, err := s.auth.ResolveToken(ctx, tenantID)
	if err != nil {
		return failResult(err)
	}
	res := s.SyncInventoryToEtsy(ctx, piece, conn)
	if res.Success {
		s.record(ctx, piece, res)
	}
	return res
}

// ImagesForPiece 加载并上传图片
func (s *EtsySyncService) ImagesForPiece(ctx context.Context, tenantID, pieceID string) SyncResult {
	piece, err := s.loadPiece(ctx, tenantID, pieceID)
	if err != nil {
		return failResult(err)
	}
	conn, _, err := s.auth.ResolveToken(ctx, tenantID)
	if err != nil {
		return failResult(err)
	}
	return s.SyncImagesToEtsy(ctx, piece, conn)
}

// UnlinkPiece 删除远端 listing 并清空本地关联
func (s *EtsySyncService) UnlinkPiece(ctx context.Context, tenantID, pieceID string) SyncResult {
	piece, err := s.loadPiece(ctx, tenantID, pieceID)
	if err != nil {
		return failResult(err)
	}
	conn, _, err := s.auth.ResolveToken(ctx, tenantID)
	if err != nil {
		return failResult(err)
	}

	res := s.DeleteEtsyListing(ctx, piece, conn)
	if !res.Success {
		return res
	}
	if err := s.pieces.ClearEtsyListing(ctx, piece.ID); err != nil {
		return SyncResult{ListingID: res.ListingID, Error: fmt.Sprintf("clear listing: %v", err)}
	}
	return res
}

// PieceSyncStatus 读取商品同步状态
func (s *EtsySyncService) PieceSyncStatus(ctx context.Context, tenantID, pieceID string) (*SyncStatus, error) {
	piece, err := s.loadPiece(ctx, tenantID, pieceID)
	if err != nil {
		return nil, err
	}
	status := GetSyncStatus(piece)
	return &status, nil
}

// ListingsForTenant 拉取租户店铺的 listing
func (s *EtsySyncService) ListingsForTenant(ctx context.Context, tenantID string, filter ListingFilter) (*etsy.ListingsResp, error) {
	conn, _, err := s.auth.ResolveToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.FetchEtsyListings(ctx, conn, filter)
}

// SetSyncEnabled 开关商品的自动同步，关闭后批量同步跳过该商品
func (s *EtsySyncService) SetSyncEnabled(ctx context.Context, tenantID, pieceID string, enabled bool) (*SyncStatus, error) {
	if _, err := s.loadPiece(ctx, tenantID, pieceID); err != nil {
		return nil, err
	}
	if err := s.pieces.SetEtsySyncEnabled(ctx, tenantID, pieceID, enabled); err != nil {
		return nil, fmt.Errorf("set sync enabled: %w", err)
	}
	return s.PieceSyncStatus(ctx, tenantID, pieceID)
}
