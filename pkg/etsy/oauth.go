package etsy

import "golang.org/x/oauth2"

const (
	AuthURL  = "https://www.etsy.com/oauth/connect"
	TokenURL = "https://api.etsy.com/v3/public/oauth/token"
)

// DefaultScopes 同步 listing 所需权限
var DefaultScopes = []string{"listings_r", "listings_w", "listings_d", "shops_r"}

// Endpoint Etsy OAuth2 端点
// Etsy 只接受 body 中的 client_id，不支持 Basic Auth
func Endpoint(authURL, tokenURL string) oauth2.Endpoint {
	if authURL == "" {
		authURL = AuthURL
	}
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return oauth2.Endpoint{
		AuthURL:   authURL,
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}
