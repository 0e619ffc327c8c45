package twitchtoken

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nantokaworks/twitch-raffle-bot/internal/env"
	"github.com/nantokaworks/twitch-raffle-bot/internal/localdb"
)

var scopes = []string{
	"user:read:chat",
	"user:write:chat",
	"user:manage:whispers",
	"channel:manage:broadcast",
	"channel:read:subscriptions",
	"moderator:read:followers",
}

// Token is an OAuth token persisted in the local database.
type Token struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresAt    int64
}

// IsValid reports whether the access token is still usable, with a small
// margin before the actual expiry.
func (t *Token) IsValid() bool {
	return t.AccessToken != "" && time.Now().Unix() < t.ExpiresAt-60
}

// SaveToken persists the token.
func (t *Token) SaveToken() error {
	return localdb.SaveToken(localdb.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		Scope:        t.Scope,
		ExpiresAt:    t.ExpiresAt,
	})
}

// GetLatestToken は保存済みトークンを返す。
// 戻り値: (token, isValid, error)
func GetLatestToken() (Token, bool, error) {
	stored, err := localdb.GetLatestToken()
	if err != nil {
		return Token{}, false, err
	}
	if stored == nil {
		return Token{}, false, errors.New("no token stored")
	}

	token := Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Scope:        stored.Scope,
		ExpiresAt:    stored.ExpiresAt,
	}
	return token, token.IsValid(), nil
}

// GetTwitchToken exchanges an authorization code for a token.
func GetTwitchToken(code string) (map[string]interface{}, error) {
	clientID := ""
	if env.Value.ClientID != nil {
		clientID = *env.Value.ClientID
	}
	clientSecret := ""
	if env.Value.ClientSecret != nil {
		clientSecret = *env.Value.ClientSecret
	}

	resp, err := http.PostForm("https://id.twitch.tv/oauth2/token", url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {getCallbackURL()},
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if errorMsg, ok := result["error"]; ok {
		return nil, fmt.Errorf("Twitch API error: %v, description: %v", errorMsg, result["error_description"])
	}
	if _, ok := result["access_token"]; !ok {
		return nil, fmt.Errorf("access_token not found in response, got: %v", result)
	}

	result["scope"] = strings.Join(scopes, " ")
	return result, nil
}

// GetOrRefreshToken は有効なトークンを取得するか、無効な場合はリフレッシュを試みます
// 戻り値: (token, isValid, error)
func GetOrRefreshToken() (Token, bool, error) {
	token, isValid, err := GetLatestToken()
	if err != nil {
		return Token{}, false, err
	}

	if isValid {
		return token, true, nil
	}

	// リフレッシュトークンがない場合は再認証が必要
	if token.RefreshToken == "" {
		return token, false, nil
	}

	if err := token.RefreshTwitchToken(); err != nil {
		return token, false, err
	}

	return GetLatestToken()
}

func (t *Token) RefreshTwitchToken() error {
	clientID := ""
	if env.Value.ClientID != nil {
		clientID = *env.Value.ClientID
	}
	clientSecret := ""
	if env.Value.ClientSecret != nil {
		clientSecret = *env.Value.ClientSecret
	}

	resp, err := http.PostForm("https://id.twitch.tv/oauth2/token", url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {t.RefreshToken},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	accessToken, ok := result["access_token"].(string)
	if !ok {
		return errors.New("access_token not found in response")
	}
	refreshToken, ok := result["refresh_token"].(string)
	if !ok {
		return errors.New("refresh_token not found in response")
	}

	scopeList, ok := result["scope"].([]interface{})
	if !ok {
		return errors.New("scope not found in response")
	}
	granted := make([]string, 0, len(scopeList))
	for _, s := range scopeList {
		if str, ok := s.(string); ok {
			granted = append(granted, str)
		}
	}

	expiresIn, ok := result["expires_in"].(float64)
	if !ok {
		return errors.New("expires_in not found in response")
	}

	t.AccessToken = accessToken
	t.RefreshToken = refreshToken
	t.Scope = strings.Join(granted, " ")
	t.ExpiresAt = time.Now().Unix() + int64(expiresIn)
	return t.SaveToken()
}

// getCallbackURL はコールバックURLを生成します
func getCallbackURL() string {
	return "http://localhost:30303/callback"
}

// GetAuthURL builds the authorization URL for the configured client.
func GetAuthURL() string {
	clientID := ""
	if env.Value.ClientID != nil {
		clientID = *env.Value.ClientID
	}
	return fmt.Sprintf(
		"https://id.twitch.tv/oauth2/authorize?response_type=code&client_id=%s&redirect_uri=%s&scope=%s",
		url.QueryEscape(clientID),
		url.QueryEscape(getCallbackURL()),
		url.QueryEscape(strings.Join(scopes, " ")),
	)
}
