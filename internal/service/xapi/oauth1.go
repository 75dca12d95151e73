package xapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// oauth1Signer signs requests with OAuth 1.0a HMAC-SHA1, the scheme the X
// media upload and tweet endpoints still require for user-context calls.
type oauth1Signer struct {
	consumerKey       string
	consumerSecret    string
	accessToken       string
	accessTokenSecret string
}

// Sign adds the OAuth Authorization header to req. Body form parameters must
// be passed via bodyParams when the request is form-encoded; RFC 5849 excludes
// multipart and JSON bodies from the signature base.
func (s *oauth1Signer) Sign(req *http.Request, bodyParams url.Values) error {
	nonce, err := generateNonce()
	if err != nil {
		return err
	}

	oauthParams := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        fmt.Sprintf("%d", time.Now().Unix()),
		"oauth_token":            s.accessToken,
		"oauth_version":          "1.0",
	}

	signature := s.signature(req, oauthParams, bodyParams)
	oauthParams["oauth_signature"] = signature

	keys := make([]string, 0, len(oauthParams))
	for key := range oauthParams {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, percentEncode(key), percentEncode(oauthParams[key])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(parts, ", "))
	return nil
}

func (s *oauth1Signer) signature(req *http.Request, oauthParams map[string]string, bodyParams url.Values) string {
	params := url.Values{}
	for key, value := range oauthParams {
		params.Set(key, value)
	}
	for key, values := range req.URL.Query() {
		for _, value := range values {
			params.Add(key, value)
		}
	}
	for key, values := range bodyParams {
		for _, value := range values {
			params.Add(key, value)
		}
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		values := params[key]
		sort.Strings(values)
		for _, value := range values {
			pairs = append(pairs, percentEncode(key)+"="+percentEncode(value))
		}
	}

	baseURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	base := strings.Join([]string{
		strings.ToUpper(req.Method),
		percentEncode(baseURL),
		percentEncode(strings.Join(pairs, "&")),
	}, "&")

	signingKey := percentEncode(s.consumerSecret) + "&" + percentEncode(s.accessTokenSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode implements the RFC 3986 encoding OAuth requires, which is
// stricter than url.QueryEscape.
func percentEncode(input string) string {
	var builder strings.Builder
	for _, b := range []byte(input) {
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') ||
			(b >= '0' && b <= '9') || b == '-' || b == '.' || b == '_' || b == '~' {
			builder.WriteByte(b)
		} else {
			builder.WriteString(fmt.Sprintf("%%%02X", b))
		}
	}
	return builder.String()
}

func generateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
