package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/garagembr/garagem-api/config"
)

// Identity is the uniform tuple extracted from a verified credential. It is
// all the upserter ever sees; issuer-specific claim layouts stop here.
type Identity struct {
	SubjectID   string
	Email       string
	DisplayName string
	AvatarURL   string
}

// Profile carries the optional profile claims a token (or the userinfo
// endpoint) may include. Every field may be empty.
type Profile struct {
	Email       string
	Name        string
	DisplayName string
	Picture     string
	PhotoURL    string
}

// NewIdentity builds the verified tuple, applying the claim fallback order:
// display name is "name", then "displayName", then the local part of the
// email; avatar is "picture", then "photoURL".
func NewIdentity(subjectID string, p Profile) Identity {
	name := p.Name
	if name == "" {
		name = p.DisplayName
	}
	if name == "" {
		name = emailLocalPart(p.Email)
	}

	avatar := p.Picture
	if avatar == "" {
		avatar = p.PhotoURL
	}

	return Identity{
		SubjectID:   subjectID,
		Email:       strings.TrimSpace(p.Email),
		DisplayName: name,
		AvatarURL:   avatar,
	}
}

// NormalizedEmail returns the email lower-cased and trimmed, the form used
// for duplicate grouping and legacy-row matching.
func (i Identity) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(i.Email))
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

// UserInfo represents the user information returned from the identity
// authority's /userinfo endpoint
type UserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// UserInfoService fetches richer profile data from the identity authority
// when the access token itself carries no profile claims.
type UserInfoService struct {
	domain     string
	httpClient *http.Client
}

// NewUserInfoService creates a new userinfo service instance
func NewUserInfoService(cfg *config.Config) *UserInfoService {
	return &UserInfoService{
		domain: cfg.Auth0Domain,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetUserInfo fetches user information from the authority's /userinfo
// endpoint. accessToken is the bearer token from the Authorization header.
func (s *UserInfoService) GetUserInfo(accessToken string) (*UserInfo, error) {
	// If domain already includes a protocol (for testing), use it as-is
	var url string
	if strings.HasPrefix(s.domain, "http://") || strings.HasPrefix(s.domain, "https://") {
		url = fmt.Sprintf("%s/userinfo", s.domain)
	} else {
		url = fmt.Sprintf("https://%s/userinfo", s.domain)
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call userinfo endpoint: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			_ = closeErr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	return &userInfo, nil
}
