// Package jwttool decodes JSON Web Tokens for display and re-signs them with
// a later expiry.
package jwttool

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrMissingSecret  = errors.New("secret is required")
)

type Claim struct {
	Claim         string `json:"claim"`
	Value         string `json:"value"`
	FriendlyValue string `json:"friendlyValue,omitempty"`
	Description   string `json:"claimDescription,omitempty"`
}

type Decoded struct {
	Header  []Claim `json:"header"`
	Payload []Claim `json:"payload"`
}

var claimDescriptions = map[string]string{
	"typ":   "Type of token",
	"cty":   "Content type",
	"alg":   "Signature or encryption algorithm",
	"kid":   "Key ID",
	"iss":   "Issuer",
	"sub":   "Subject",
	"aud":   "Audience",
	"exp":   "Expiration Time",
	"nbf":   "Not Before",
	"iat":   "Issued At",
	"jti":   "JWT ID",
	"name":  "Full name",
	"email": "Preferred e-mail address",
	"scope": "Scope values",
}

var algorithmDescriptions = map[string]string{
	"HS256": "HMAC using SHA-256",
	"HS384": "HMAC using SHA-384",
	"HS512": "HMAC using SHA-512",
	"RS256": "RSASSA-PKCS1-v1_5 using SHA-256",
	"RS384": "RSASSA-PKCS1-v1_5 using SHA-384",
	"RS512": "RSASSA-PKCS1-v1_5 using SHA-512",
	"ES256": "ECDSA using P-256 and SHA-256",
	"ES384": "ECDSA using P-384 and SHA-384",
	"ES512": "ECDSA using P-521 and SHA-512",
	"PS256": "RSASSA-PSS using SHA-256 and MGF1 with SHA-256",
	"PS384": "RSASSA-PSS using SHA-384 and MGF1 with SHA-384",
	"PS512": "RSASSA-PSS using SHA-512 and MGF1 with SHA-512",
	"EdDSA": "Edwards-curve Digital Signature Algorithm",
	"none":  "No digital signature or MAC performed",
}

// Decode splits a token into described header and payload claims. The
// signature is not checked. Dates are rendered in loc.
func Decode(raw string, loc *time.Location) (*Decoded, error) {
	if loc == nil {
		loc = time.Local
	}
	token, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformedToken
	}

	return &Decoded{
		Header:  describe(token.Header, loc),
		Payload: describe(claims, loc),
	}, nil
}

// ExpireLater re-signs the token's payload with HS256 and exp set days after
// now.
func ExpireLater(raw, secret string, days int, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser(jwt.WithJSONNumber()).ParseUnverified(raw, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims["exp"] = now.Unix() + int64(days)*24*60*60
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func describe(values map[string]interface{}, loc *time.Location) []Claim {
	out := make([]Claim, 0, len(values))
	for name, value := range values {
		out = append(out, Claim{
			Claim:         name,
			Value:         formatValue(value),
			FriendlyValue: friendlyValue(name, value, loc),
			Description:   claimDescriptions[name],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Claim < out[j].Claim })
	return out
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case map[string]interface{}, []interface{}:
		pretty, err := json.MarshalIndent(v, "", "   ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(pretty)
	default:
		return fmt.Sprint(v)
	}
}

func friendlyValue(name string, value interface{}, loc *time.Location) string {
	switch name {
	case "exp", "nbf", "iat":
		number, ok := value.(json.Number)
		if !ok {
			return ""
		}
		seconds, err := number.Int64()
		if err != nil {
			f, ferr := number.Float64()
			if ferr != nil {
				return ""
			}
			seconds = int64(f)
		}
		return time.Unix(seconds, 0).In(loc).Format("2006-01-02 15:04:05 MST")
	case "alg":
		if alg, ok := value.(string); ok {
			return algorithmDescriptions[alg]
		}
	}
	return ""
}
