package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"madebuy/internal/model"
	"madebuy/internal/repository"
	"madebuy/pkg/etsy"
	"madebuy/pkg/utils"
)

// 业务常量
const (
	DefaultTokenBuffer    = 5 * time.Minute
	DefaultTokenExpiresIn = 3600 // Etsy access token 有效期 1 小时
)

// AuthConfig OAuth 配置
type AuthConfig struct {
	ClientID    string // Etsy keystring
	RedirectURL string // 必须与 Etsy 后台填写的完全一致
	Scopes      []string
	AuthURL     string
	TokenURL    string
	Buffer      time.Duration // 提前多久视为过期
	StateTTL    time.Duration
	Timeout     time.Duration
}

// TokenSet 一次换取 / 刷新的结果
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// OAuthError token 端点明确拒绝
type OAuthError struct {
	Op          string
	StatusCode  int
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("etsy oauth %s failed (status %d): %s", e.Op, e.StatusCode, msg)
}

type AuthService struct {
	oauth      *oauth2.Config
	etsy       *etsy.Client
	tenants    repository.TenantRepository
	conns      repository.ConnectionRepository
	states     utils.StateStore
	httpClient *http.Client
	buffer     time.Duration
	stateTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time

	// 同一授权同时只允许一个刷新
	refreshLocks sync.Map
}

// NewAuthService 工厂方法
func NewAuthService(cfg AuthConfig, client *etsy.Client, tenants repository.TenantRepository,
	conns repository.ConnectionRepository, states utils.StateStore, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if states == nil {
		states = utils.NewMemoryStateStore()
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultTokenBuffer
	}
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = utils.DefaultStateTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = etsy.DefaultTimeout
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = etsy.DefaultScopes
	}
	if cfg.ClientID == "" && client != nil {
		cfg.ClientID = client.APIKey()
	}

	return &AuthService{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint:    etsy.Endpoint(cfg.AuthURL, cfg.TokenURL),
		},
		etsy:       client,
		tenants:    tenants,
		conns:      conns,
		states:     states,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		buffer:     cfg.Buffer,
		stateTTL:   cfg.StateTTL,
		logger:     logger.Named("auth"),
		now:        time.Now,
	}
}

// ==================== 授权流程 ====================

// GenerateLoginURL 生成授权链接
// state 缓存格式为 key=state, value="verifier:tenantID"
func (s *AuthService) GenerateLoginURL(ctx context.Context, tenantID string) (string, error) {
	// 1. 校验租户
	if _, err := s.tenants.GetByID(ctx, tenantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTenantNotFound
		}
		return "", fmt.Errorf("get tenant: %w", err)
	}

	// 2. 生成 PKCE 参数
	verifier := utils.GenerateCodeVerifier()
	state, err := utils.GenerateState()
	if err != nil {
		return "", err
	}

	// 3. 缓存 verifier
	if err := s.states.Put(ctx, state, verifier+":"+tenantID, s.stateTTL); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}

	// 4. 拼接授权 URL
	return s.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", utils.GenerateCodeChallenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// HandleCallback 处理 Etsy 回调 -> 换 Token -> 写入授权
func (s *AuthService) HandleCallback(ctx context.Context, code, state string) (*model.MarketplaceConnection, error) {
	// 1. 取出并作废 state
	cached, ok, err := s.states.Take(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}
	if !ok {
		return nil, ErrStateInvalid
	}

	// 2. 解析 "verifier:tenantID"
	verifier, tenantID, found := strings.Cut(cached, ":")
	if !found || verifier == "" || tenantID == "" {
		return nil, ErrStateInvalid
	}

	// 3. 换取 Token
	tokens, err := s.ExchangeCodeForToken(ctx, code, verifier)
	if err != nil {
		return nil, err
	}

	// 4. 查询授权用户的店铺
	me, err := s.etsy.GetMe(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("get etsy user: %w", err)
	}
	// 没有店铺的账号无法上架，不保存授权
	if me.ShopID <= 0 {
		s.logger.Warn("etsy user has no shop", zap.String("tenant_id", tenantID), zap.Int64("user_id", me.UserID))
		return nil, ErrNoEtsyShop
	}
	shopName := ""
	if shop, err := s.etsy.GetShop(ctx, tokens.AccessToken, me.ShopID); err != nil {
		s.logger.Warn("get shop failed", zap.Int64("shop_id", me.ShopID), zap.Error(err))
	} else {
		shopName = shop.ShopName
	}

	// 5. 入库
	conn, err := s.conns.Upsert(ctx, &model.MarketplaceConnection{
		TenantID:     tenantID,
		Marketplace:  model.MarketplaceEtsy,
		ShopID:       me.ShopID,
		UserID:       me.UserID,
		ShopName:     shopName,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.ExpiresAt,
		Status:       model.ConnectionStatusValid,
	})
	if err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	s.logger.Info("etsy connected",
		zap.String("tenant_id", tenantID),
		zap.Int64("shop_id", me.ShopID))
	return conn, nil
}

// ==================== Token ====================

func (s *AuthService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *AuthService) tokenSet(tok *oauth2.Token, previousRefresh string) *TokenSet {
	set := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if set.RefreshToken == "" {
		set.RefreshToken = previousRefresh
	}
	if set.ExpiresAt.IsZero() {
		set.ExpiresAt = s.calculateExpiration(DefaultTokenExpiresIn)
	}
	return set
}

// toOAuthError 将 token 端点的拒绝转换为 *OAuthError，网络错误原样包装
func toOAuthError(op string, err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("etsy oauth %s: %w", op, err)
	}
	oe := &OAuthError{
		Op:          op,
		Code:        re.ErrorCode,
		Description: re.ErrorDescription,
	}
	if re.Response != nil {
		oe.StatusCode = re.Response.StatusCode
	}
	if oe.Code == "" && oe.Description == "" {
		oe.Description = strings.TrimSpace(string(re.Body))
	}
	return oe
}

// ExchangeCodeForToken authorization_code + code_verifier 换取 token
func (s *AuthService) ExchangeCodeForToken(ctx context.Context, code, verifier string) (*TokenSet, error) {
	tok, err := s.oauth.Exchange(s.oauthContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, toOAuthError("exchange", err)
	}
	return s.tokenSet(tok, ""), nil
}

// RefreshAccessToken 使用 refresh_token 刷新，不重试
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	src := s.oauth.TokenSource(s.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, toOAuthError("refresh", err)
	}
	return s.tokenSet(tok, refreshToken), nil
}

// IsTokenExpired now >= expiresAt - buffer
func IsTokenExpired(expiresAt time.Time, buffer time.Duration) bool {
	return isExpiredAt(time.Now(), expiresAt, buffer)
}

func isExpiredAt(now, expiresAt time.Time, buffer time.Duration) bool {
	return !now.Before(expiresAt.Add(-buffer))
}

// CalculateTokenExpiration expires_in 秒后过期
func CalculateTokenExpiration(expiresInSeconds int) time.Time {
	return time.Now().Add(time.Duration(expiresInSeconds) * time.Second)
}

func (s *AuthService) calculateExpiration(expiresInSeconds int) time.Time {
	return s.now().Add(time.Duration(expiresInSeconds) * time.Second)
}

// ==================== 有效 Token ====================

// GetConnection 读取租户的 Etsy 授权
func (s *AuthService) GetConnection(ctx context.Context, tenantID string) (*model.MarketplaceConnection, error) {
	conn, err := s.conns.Get(ctx, tenantID, model.MarketplaceEtsy)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return conn, nil
}

// ResolveToken 读取授权并确保 access token 可用
func (s *AuthService) ResolveToken(ctx context.Context, tenantID string) (*model.MarketplaceConnection, string, error) {
	conn, err := s.GetConnection(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	token, err := s.EnsureValidToken(ctx, conn)
	if err != nil {
		return nil, "", err
	}
	return conn, token, nil
}

// EnsureValidToken 过期则刷新，conn 会被就地更新
func (s *AuthService) EnsureValidToken(ctx context.Context, conn *model.MarketplaceConnection) (string, error) {
	if conn == nil {
		return "", ErrConnectionNotFound
	}
	if conn.Status == model.ConnectionStatusErrored {
		return "", ErrConnectionErrored
	}
	if !isExpiredAt(s.now(), conn.ExpiresAt, s.buffer) {
		return conn.AccessToken, nil
	}
	if err := s.refresh(ctx, conn, false); err != nil {
		return "", err
	}
	return conn.AccessToken, nil
}

// RefreshConnection 无论是否过期都刷新，定时任务使用
func (s *AuthService) RefreshConnection(ctx context.Context, conn *model.MarketplaceConnection) error {
	if conn.Status == model.ConnectionStatusErrored {
		return ErrConnectionErrored
	}
	return s.refresh(ctx, conn, true)
}

func (s *AuthService) lockConnection(id string) func() {
	v, _ := s.refreshLocks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *AuthService) refresh(ctx context.Context, conn *model.MarketplaceConnection, force bool) error {
	unlock := s.lockConnection(conn.ID)
	defer unlock()

	// 1. 等锁期间可能已被其他协程刷新
	latest, err := s.conns.Get(ctx, conn.TenantID, conn.Marketplace)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("reload connection: %w", err)
	}
	if latest != nil {
		fresh := !isExpiredAt(s.now(), latest.ExpiresAt, s.buffer)
		rotated := latest.AccessToken != conn.AccessToken
		*conn = *latest
		if conn.Status == model.ConnectionStatusErrored {
			return ErrConnectionErrored
		}
		if fresh && (rotated || !force) {
			return nil
		}
	}

	// 2. 刷新
	tokens, err := s.RefreshAccessToken(ctx, conn.RefreshToken)
	if err != nil {
		var oe *OAuthError
		if errors.As(err, &oe) {
			// 只有明确被拒绝才标记为需要重新授权
			if uerr := s.conns.UpdateStatus(ctx, conn.ID, model.ConnectionStatusErrored, oe.Error()); uerr != nil {
				s.logger.Error("mark connection errored failed", zap.String("connection_id", conn.ID), zap.Error(uerr))
			}
			conn.Status = model.ConnectionStatusErrored
			conn.LastError = oe.Error()
		}
		s.logger.Warn("refresh token failed",
			zap.String("tenant_id", conn.TenantID),
			zap.Error(err))
		return err
	}

	// 3. 入库
	if err := s.conns.UpdateToken(ctx, conn.ID, tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresAt); err != nil {
		return fmt.Errorf("save refreshed token: %w", err)
	}
	conn.AccessToken = tokens.AccessToken
	conn.RefreshToken = tokens.RefreshToken
	conn.ExpiresAt = tokens.ExpiresAt
	conn.Status = model.ConnectionStatusValid
	conn.LastError = ""
	return nil
}
