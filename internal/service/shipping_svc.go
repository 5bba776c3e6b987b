package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"madebuy/internal/api/dto"
	"madebuy/internal/model"
	"madebuy/internal/repository"
)

type ShippingProfileService struct {
	profileRepo repository.ShippingProfileRepository
	logger      *zap.Logger

	// 进程内按租户串行化默认标记的修改，跨进程由事务保证
	tenantLocks sync.Map
}

func NewShippingProfileService(profileRepo repository.ShippingProfileRepository, logger *zap.Logger) *ShippingProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShippingProfileService{
		profileRepo: profileRepo,
		logger:      logger.Named("shipping"),
	}
}

func (s *ShippingProfileService) lockTenant(tenantID string) func() {
	v, _ := s.tenantLocks.LoadOrStore(tenantID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ==================== 归一化 ====================

// methodFromRateType 旧客户端只传 rate_type
func methodFromRateType(rt model.RateType) (model.ShippingMethod, error) {
	switch rt {
	case "", model.RateTypeFlat:
		return model.ShippingMethodFlat, nil
	case model.RateTypeWeight:
		return model.ShippingMethodCalculated, nil
	case model.RateTypeFree:
		return model.ShippingMethodFreeThreshold, nil
	default:
		return "", fmt.Errorf("%w: unknown rate_type %q", ErrInvalidInput, rt)
	}
}

func validCarrier(c model.Carrier) bool {
	switch c {
	case model.CarrierSendle, model.CarrierManual, model.CarrierOther:
		return true
	}
	return false
}

func validMethod(m model.ShippingMethod) bool {
	switch m {
	case model.ShippingMethodFlat, model.ShippingMethodCalculated, model.ShippingMethodFreeThreshold:
		return true
	}
	return false
}

// assignZoneIDs 补齐缺失的 ID，并保证同一模板内唯一
func assignZoneIDs(zones []model.ShippingZone) []model.ShippingZone {
	seen := make(map[string]struct{}, len(zones))
	out := make([]model.ShippingZone, len(zones))
	for i, z := range zones {
		if _, dup := seen[z.ID]; z.ID == "" || dup {
			z.ID = uuid.NewString()
		}
		seen[z.ID] = struct{}{}
		out[i] = z
	}
	return out
}

// NormalizeProfileInput 将新旧两种输入统一为模型
func NormalizeProfileInput(tenantID string, req *dto.CreateShippingProfileReq) (*model.ShippingProfile, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	carrier := req.Carrier
	if carrier == "" {
		carrier = model.CarrierManual
	}
	if !validCarrier(carrier) {
		return nil, fmt.Errorf("%w: unknown carrier %q", ErrInvalidInput, carrier)
	}

	method := req.Method
	if method == "" {
		m, err := methodFromRateType(req.RateType)
		if err != nil {
			return nil, err
		}
		method = m
	} else if !validMethod(method) {
		return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidInput, method)
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	profile := &model.ShippingProfile{
		TenantID:              tenantID,
		Name:                  name,
		Description:           req.Description,
		Carrier:               carrier,
		Method:                method,
		IsDefault:             req.IsDefault,
		IsActive:              &active,
		OriginCountryISO:      strings.ToUpper(req.OriginCountryISO),
		ProcessingDaysMin:     req.ProcessingDaysMin,
		ProcessingDaysMax:     req.ProcessingDaysMax,
		Zones:                 assignZoneIDs(req.Zones),
		RateType:              req.RateType,
		FlatRate:              req.FlatRate,
		WeightRates:           req.WeightRates,
		FreeShippingThreshold: req.FreeShippingThreshold,
		DomesticOnly:          req.DomesticOnly,
		MaxWeight:             req.MaxWeight,
	}
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func validateProfile(p *model.ShippingProfile) error {
	if p.ProcessingDaysMin < 0 || p.ProcessingDaysMax < 0 {
		return fmt.Errorf("%w: processing days must not be negative", ErrInvalidInput)
	}
	if p.ProcessingDaysMax > 0 && p.ProcessingDaysMin > p.ProcessingDaysMax {
		return fmt.Errorf("%w: processing_days_min exceeds processing_days_max", ErrInvalidInput)
	}
	for _, z := range p.Zones {
		if z.Rate < 0 || z.AdditionalItemRate < 0 {
			return fmt.Errorf("%w: zone %q has a negative rate", ErrInvalidInput, z.Name)
		}
	}
	return nil
}

// applyProfilePatch 对已加载的模板应用局部更新
func applyProfilePatch(p *model.ShippingProfile, req *dto.UpdateShippingProfileReq) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		p.Name = name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Carrier != nil {
		if !validCarrier(*req.Carrier) {
			return fmt.Errorf("%w: unknown carrier %q", ErrInvalidInput, *req.Carrier)
		}
		p.Carrier = *req.Carrier
	}
	if req.RateType != nil {
		p.RateType = *req.RateType
		// 只传了旧字段时同步推导 method
		if req.Method == nil {
			m, err := methodFromRateType(*req.RateType)
			if err != nil {
				return err
			}
			p.Method = m
		}
	}
	if req.Method != nil {
		if !validMethod(*req.Method) {
			return fmt.Errorf("%w: unknown method %q", ErrInvalidInput, *req.Method)
		}
		p.Method = *req.Method
	}
	if req.IsDefault != nil {
		p.IsDefault = *req.IsDefault
	}
	if req.IsActive != nil {
		active := *req.IsActive
		p.IsActive = &active
	}
	if req.OriginCountryISO != nil {
		p.OriginCountryISO = strings.ToUpper(*req.OriginCountryISO)
	}
	if req.ProcessingDaysMin != nil {
		p.ProcessingDaysMin = *req.ProcessingDaysMin
	}
	if req.ProcessingDaysMax != nil {
		p.ProcessingDaysMax = *req.ProcessingDaysMax
	}
	if req.Zones != nil {
		p.Zones = assignZoneIDs(*req.Zones)
	}
	if req.FlatRate != nil {
		p.FlatRate = *req.FlatRate
	}
	if req.WeightRates != nil {
		p.WeightRates = *req.WeightRates
	}
	if req.FreeShippingThreshold != nil {
		p.FreeShippingThreshold = req.FreeShippingThreshold
	}
	if req.DomesticOnly != nil {
		p.DomesticOnly = *req.DomesticOnly
	}
	if req.MaxWeight != nil {
		p.MaxWeight = *req.MaxWeight
	}
	return validateProfile(p)
}

// ==================== 查询方法 ====================

// GetProfile 不存在时返回 nil, nil
func (s *ShippingProfileService) GetProfile(ctx context.Context, tenantID, id string) (*model.ShippingProfile, error) {
	profile, err := s.profileRepo.GetByID(ctx, tenantID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// GetDefaultProfile 优先启用的默认模板，其次最早的启用模板
func (s *ShippingProfileService) GetDefaultProfile(ctx context.Context, tenantID string) (*model.ShippingProfile, error) {
	profile, err := s.profileRepo.GetDefault(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		return profile, nil
	}
	return s.profileRepo.GetFirstActive(ctx, tenantID)
}

// ListProfiles 默认模板在前，其余按创建时间倒序
func (s *ShippingProfileService) ListProfiles(ctx context.Context, tenantID string, activeOnly bool) (*dto.ShippingProfileListResp, error) {
	list, err := s.profileRepo.ListByTenant(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.ShippingProfile{}
	}
	return &dto.ShippingProfileListResp{
		Total: int64(len(list)),
		List:  list,
	}, nil
}

func (s *ShippingProfileService) CountProfiles(ctx context.Context, tenantID string) (int64, error) {
	return s.profileRepo.Count(ctx, tenantID)
}

func (s *ShippingProfileService) HasProfiles(ctx context.Context, tenantID string) (bool, error) {
	n, err := s.profileRepo.Count(ctx, tenantID)
	return n > 0, err
}

// GetProfileSummary 看板汇总
func (s *ShippingProfileService) GetProfileSummary(ctx context.Context, tenantID string) (*dto.ShippingProfileSummaryResp, error) {
	list, err := s.profileRepo.ListByTenant(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}

	summary := &dto.ShippingProfileSummaryResp{
		Total:     int64(len(list)),
		ByCarrier: make(map[model.Carrier]int64),
	}
	for i := range list {
		p := &list[i]
		summary.ByCarrier[p.Carrier]++
		if p.Active() {
			summary.Active++
		}
		if p.IsDefault {
			summary.HasDefault = true
		}
	}
	return summary, nil
}

// ==================== 写入方法 ====================

// CreateProfile 创建模板，is_default 时在同一事务内清除其他默认
func (s *ShippingProfileService) CreateProfile(ctx context.Context, tenantID string, req *dto.CreateShippingProfileReq) (*model.ShippingProfile, error) {
	profile, err := NormalizeProfileInput(tenantID, req)
	if err != nil {
		return nil, err
	}

	unlock := s.lockTenant(tenantID)
	defer unlock()

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("create shipping profile: %w", err)
	}
	s.logger.Debug("shipping profile created",
		zap.String("tenant_id", tenantID),
		zap.String("profile_id", profile.ID),
		zap.Bool("is_default", profile.IsDefault))
	return profile, nil
}

// UpdateProfile 局部更新，不存在时返回 nil, nil
func (s *ShippingProfileService) UpdateProfile(ctx context.Context, tenantID, id string, req *dto.UpdateShippingProfileReq) (*model.ShippingProfile, error) {
	unlock := s.lockTenant(tenantID)
	defer unlock()

	profile, err := s.GetProfile(ctx, tenantID, id)
	if err != nil || profile == nil {
		return nil, err
	}

	if err := applyProfilePatch(profile, req); err != nil {
		return nil, err
	}
	if err := s.profileRepo.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("update shipping profile: %w", err)
	}
	return profile, nil
}

// SetDefaultProfile 清空租户全部默认后设置目标
func (s *ShippingProfileService) SetDefaultProfile(ctx context.Context, tenantID, id string) (*model.ShippingProfile, error) {
	unlock := s.lockTenant(tenantID)
	defer unlock()

	found, err := s.profileRepo.SetDefault(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("set default shipping profile: %w", err)
	}
	if !found {
		return nil, nil
	}
	s.logger.Info("default shipping profile changed",
		zap.String("tenant_id", tenantID),
		zap.String("profile_id", id))
	return s.GetProfile(ctx, tenantID, id)
}

func (s *ShippingProfileService) SetProfileActive(ctx context.Context, tenantID, id string, active bool) (*model.ShippingProfile, error) {
	found, err := s.profileRepo.UpdateFields(ctx, tenantID, id, map[string]interface{}{
		"is_active": active,
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return s.GetProfile(ctx, tenantID, id)
}

// DeleteProfile 租户有多个模板时不允许删除默认模板
func (s *ShippingProfileService) DeleteProfile(ctx context.Context, tenantID, id string) (bool, error) {
	unlock := s.lockTenant(tenantID)
	defer unlock()

	profile, err := s.GetProfile(ctx, tenantID, id)
	if err != nil || profile == nil {
		return false, err
	}

	if profile.IsDefault {
		count, err := s.profileRepo.Count(ctx, tenantID)
		if err != nil {
			return false, err
		}
		if count > 1 {
			return false, ErrDefaultProfileInUse
		}
	}

	return s.profileRepo.Delete(ctx, tenantID, id)
}

// ==================== 区域操作 ====================

// mutateZones 加载、修改、整体写回
func (s *ShippingProfileService) mutateZones(ctx context.Context, tenantID, profileID string, fn func(zones []model.ShippingZone) ([]model.ShippingZone, error)) (*model.ShippingProfile, error) {
	unlock := s.lockTenant(tenantID)
	defer unlock()

	profile, err := s.GetProfile(ctx, tenantID, profileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	zones, err := fn(append([]model.ShippingZone(nil), profile.Zones...))
	if err != nil {
		return nil, err
	}
	profile.Zones = zones
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	if err := s.profileRepo.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("save shipping zones: %w", err)
	}
	return profile, nil
}

// AddZone 追加区域，总是生成新 ID
func (s *ShippingProfileService) AddZone(ctx context.Context, tenantID, profileID string, zone model.ShippingZone) (*model.ShippingProfile, error) {
	return s.mutateZones(ctx, tenantID, profileID, func(zones []model.ShippingZone) ([]model.ShippingZone, error) {
		zone.ID = uuid.NewString()
		return append(zones, zone), nil
	})
}

// UpdateZone 只修改匹配 ID 的区域
func (s *ShippingProfileService) UpdateZone(ctx context.Context, tenantID, profileID, zoneID string, req *dto.UpdateZoneReq) (*model.ShippingProfile, error) {
	return s.mutateZones(ctx, tenantID, profileID, func(zones []model.ShippingZone) ([]model.ShippingZone, error) {
		for i := range zones {
			if zones[i].ID != zoneID {
				continue
			}
			z := &zones[i]
			if req.Name != nil {
				z.Name = *req.Name
			}
			if req.Countries != nil {
				z.Countries = *req.Countries
			}
			if req.Regions != nil {
				z.Regions = *req.Regions
			}
			if req.Rate != nil {
				z.Rate = *req.Rate
			}
			if req.AdditionalItemRate != nil {
				z.AdditionalItemRate = *req.AdditionalItemRate
			}
			if req.FreeAbove != nil {
				v := *req.FreeAbove
				z.FreeAbove = &v
			} else if req.ClearFreeAbove {
				z.FreeAbove = nil
			}
			if req.DeliveryDaysMin != nil {
				z.DeliveryDaysMin = *req.DeliveryDaysMin
			}
			if req.DeliveryDaysMax != nil {
				z.DeliveryDaysMax = *req.DeliveryDaysMax
			}
			return zones, nil
		}
		return nil, ErrZoneNotFound
	})
}

func (s *ShippingProfileService) RemoveZone(ctx context.Context, tenantID, profileID, zoneID string) (*model.ShippingProfile, error) {
	return s.mutateZones(ctx, tenantID, profileID, func(zones []model.ShippingZone) ([]model.ShippingZone, error) {
		for i := range zones {
			if zones[i].ID == zoneID {
				return append(zones[:i], zones[i+1:]...), nil
			}
		}
		return nil, ErrZoneNotFound
	})
}

// ==================== 运费计算 ====================

// QuoteShipping 结算时按目的地计算运费
func (s *ShippingProfileService) QuoteShipping(ctx context.Context, tenantID string, req *dto.ShippingQuoteReq) (*dto.ShippingQuoteResp, error) {
	var (
		profile *model.ShippingProfile
		err     error
	)
	if req.ProfileID != "" {
		profile, err = s.GetProfile(ctx, tenantID, req.ProfileID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, ErrProfileNotFound
		}
	} else {
		profile, err = s.GetDefaultProfile(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if profile == nil {
			return nil, ErrNoShippingRate
		}
	}

	return CalculateShipping(profile, req)
}

// CalculateShipping 纯计算，不访问存储
func CalculateShipping(profile *model.ShippingProfile, req *dto.ShippingQuoteReq) (*dto.ShippingQuoteResp, error) {
	if !profile.Active() {
		return nil, fmt.Errorf("%w: profile %s is inactive", ErrNoShippingRate, profile.ID)
	}

	country := strings.ToUpper(strings.TrimSpace(req.Country))
	items := req.ItemCount
	if items < 1 {
		items = 1
	}

	if profile.MaxWeight > 0 && req.WeightGrams > profile.MaxWeight {
		return nil, fmt.Errorf("%w: parcel exceeds %dg", ErrNoShippingRate, profile.MaxWeight)
	}
	if profile.DomesticOnly && profile.OriginCountryISO != "" && country != profile.OriginCountryISO {
		return nil, fmt.Errorf("%w: profile ships domestically only", ErrNoShippingRate)
	}

	resp := &dto.ShippingQuoteResp{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		Method:      profile.Method,
	}

	zone := matchZone(profile.Zones, country, req.Region)
	if zone == nil && len(profile.Zones) > 0 {
		return nil, fmt.Errorf("%w: no zone covers %s", ErrNoShippingRate, country)
	}

	var threshold *int64
	if zone != nil && zone.FreeAbove != nil {
		threshold = zone.FreeAbove
	} else if profile.Method == model.ShippingMethodFreeThreshold {
		threshold = profile.FreeShippingThreshold
	}

	if zone != nil {
		resp.ZoneID = zone.ID
		resp.ZoneName = zone.Name
		resp.DeliveryDaysMin = zone.DeliveryDaysMin
		resp.DeliveryDaysMax = zone.DeliveryDaysMax
	}

	// 1. 免邮门槛
	if threshold != nil && req.SubtotalCents >= *threshold {
		resp.Free = true
		return resp, nil
	}
	// 旧版 free 且无门槛：一律免邮
	if zone == nil && profile.Method == model.ShippingMethodFreeThreshold && threshold == nil {
		resp.Free = true
		return resp, nil
	}

	// 2. 按重量阶梯
	if profile.Method == model.ShippingMethodCalculated && len(profile.WeightRates) > 0 {
		rate, ok := weightBandRate(profile.WeightRates, req.WeightGrams)
		if !ok {
			return nil, fmt.Errorf("%w: no weight band for %dg", ErrNoShippingRate, req.WeightGrams)
		}
		resp.AmountCents = rate
		return resp, nil
	}

	// 3. 固定运费
	if zone != nil {
		resp.AmountCents = zone.Rate + int64(items-1)*zone.AdditionalItemRate
	} else {
		resp.AmountCents = profile.FlatRate
	}
	resp.Free = resp.AmountCents == 0
	return resp, nil
}

// matchZone 国家精确匹配优先，其次区域，最后通配
func matchZone(zones []model.ShippingZone, country, region string) *model.ShippingZone {
	for i := range zones {
		if zones[i].MatchesCountry(country) {
			return &zones[i]
		}
	}
	for i := range zones {
		if zones[i].MatchesRegion(region) {
			return &zones[i]
		}
	}
	for i := range zones {
		if zones[i].IsWildcard() {
			return &zones[i]
		}
	}
	return nil
}

func weightBandRate(bands []model.WeightRate, grams int) (int64, bool) {
	sorted := append([]model.WeightRate(nil), bands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MaxGrams < sorted[j].MaxGrams })
	for _, b := range sorted {
		if grams <= b.MaxGrams {
			return b.Rate, true
		}
	}
	return 0, false
}
