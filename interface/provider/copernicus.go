package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/geoharvest/geoharvest/common"
)

const copernicusAuth = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"

// CopernicusImageProvider implements ImageProvider for the Copernicus Data Space
type CopernicusImageProvider struct {
	user    string
	pword   string
	authURL string

	// the provider is shared by concurrent download workers
	mu     sync.Mutex
	token  string
	expire time.Time
}

// Name implements ImageProvider
func (ip *CopernicusImageProvider) Name() string {
	return common.ProviderCopernicus
}

// NewCopernicusImageProvider creates a new ImageProvider from Copernicus
func NewCopernicusImageProvider(user, pword string) *CopernicusImageProvider {
	return &CopernicusImageProvider{user: user, pword: pword, authURL: copernicusAuth}
}

// loadToken asks (or refreshes) the download token
func (ip *CopernicusImageProvider) loadToken() (string, error) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if ip.token != "" && time.Now().Before(ip.expire) {
		return "Bearer " + ip.token, nil
	}

	resp, err := http.PostForm(ip.authURL,
		url.Values{
			"client_id":  {"cdse-public"},
			"username":   {ip.user},
			"password":   {ip.pword},
			"grant_type": {"password"}})
	if err != nil {
		return "", fmt.Errorf("CopernicusToken.PostForm: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("CopernicusToken.ReadAll: %w", err)
	}
	defer resp.Body.Close()

	token := struct {
		AccessToken string `json:"access_token"`
		Expire      int    `json:"expires_in"`
	}{}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("CopernicusToken.Unmarshal: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("CopernicusToken: token not found in %s", string(body))
	}

	ip.token = token.AccessToken
	// refresh one minute before the announced expiry
	ip.expire = time.Now().Add(time.Duration(token.Expire)*time.Second - time.Minute)
	return "Bearer " + ip.token, nil
}

// Download implements ImageProvider
func (ip *CopernicusImageProvider) Download(ctx context.Context, product common.Product, localPath string) error {
	switch common.GetConstellationFromProductId(product.ID) {
	case common.Sentinel1, common.Sentinel2:
	default:
		return fmt.Errorf("CopernicusImageProvider: constellation not supported")
	}
	if len(product.Links) == 0 {
		return ErrProductNotFound{Product: product.ID}
	}

	token, err := ip.loadToken()
	if err != nil {
		return fmt.Errorf("CopernicusImageProvider.Download.%w", err)
	}

	if err := downloadWithAuth(ctx, product.Links[0], localPath, ip.Name()+":"+product.ID, nil, nil, "Authorization", &token, true); err != nil {
		return fmt.Errorf("CopernicusImageProvider.%w", err)
	}
	return nil
}
