// Package client classifies inbound requests as coming from the desktop admin
// console or the mobile H5 client and extracts the bearer token. All functions
// are pure over request metadata.
package client

import (
	"net/http"
	"strings"
)

// ClientType identifies which front end issued a request.
type ClientType string

const (
	ClientAdmin ClientType = "admin"
	ClientH5    ClientType = "h5"
)

// DeviceType is the device class recorded on a session.
type DeviceType string

const (
	DeviceWeb     DeviceType = "web"
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

const (
	// HeaderClientType is the explicit client-type signal.
	HeaderClientType = "X-Client-Type"
	// CookieName is the single canonical auth cookie for both clients.
	CookieName = "auth_token"
	// LegacyCookieName is still accepted for older clients.
	LegacyCookieName = "token"

	bearerPrefix = "bearer "
)

// h5Prefixes are the path namespaces served to the mobile client.
var h5Prefixes = []string{"/h5", "/api/h5"}

var (
	mobileTokens  = []string{"mobile", "android", "iphone", "ipad", "ipod", "tablet", "micromessenger", "harmonyos", "windows phone"}
	desktopTokens = []string{"electron", "tauri"}
)

// Request is the transport-neutral view of an inbound call used by detection
// and token extraction. HTTP requests and gRPC metadata both map onto it.
type Request struct {
	Path   string
	Host   string
	Header http.Header
}

// FromHTTP builds a Request from an *http.Request.
func FromHTTP(r *http.Request) Request {
	return Request{Path: r.URL.Path, Host: r.Host, Header: r.Header}
}

// Get returns the first value of header key, or "".
func (r Request) Get(key string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(key)
}

// DetectFromPath classifies by URL path: any path inside an H5 namespace is h5, everything else admin.
func DetectFromPath(path string) ClientType {
	p := strings.ToLower(path)
	for _, prefix := range h5Prefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return ClientH5
		}
	}
	return ClientAdmin
}

// ExplicitClientType returns the client type named by the x-client-type header
// and whether the header carried a recognised value.
func ExplicitClientType(req Request) (ClientType, bool) {
	switch strings.ToLower(strings.TrimSpace(req.Get(HeaderClientType))) {
	case "h5", "mobile":
		return ClientH5, true
	case "admin", "web":
		return ClientAdmin, true
	}
	return "", false
}

// DetectFromHeaders classifies by headers: an explicit x-client-type header wins,
// otherwise a mobile User-Agent means h5.
func DetectFromHeaders(req Request) ClientType {
	if ct, ok := ExplicitClientType(req); ok {
		return ct
	}
	if DeviceTypeFromUserAgent(req.Get("User-Agent")) == DeviceMobile {
		return ClientH5
	}
	return ClientAdmin
}

// Detect is the authoritative classification. The path decides first; the explicit
// header may then upgrade an admin path to h5 (a mobile client calling shared
// endpoints) but never downgrades an h5 path.
func Detect(req Request) ClientType {
	return headerUpgrade(byPath(req), req)
}

func byPath(req Request) ClientType {
	return DetectFromPath(req.Path)
}

func headerUpgrade(current ClientType, req Request) ClientType {
	if current == ClientH5 {
		return current
	}
	if ct, ok := ExplicitClientType(req); ok && ct == ClientH5 {
		return ClientH5
	}
	return current
}

// DeviceTypeFromUserAgent maps a User-Agent to a device class: mobile and tablet
// tokens first, then desktop-wrapper tokens, else web.
func DeviceTypeFromUserAgent(ua string) DeviceType {
	lower := strings.ToLower(ua)
	if containsAny(lower, mobileTokens) {
		return DeviceMobile
	}
	if containsAny(lower, desktopTokens) {
		return DeviceDesktop
	}
	return DeviceWeb
}

// PlatformFromUserAgent returns a coarse OS name (iOS, Android, Windows, macOS, Linux) or "".
func PlatformFromUserAgent(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipad"), strings.Contains(lower, "ipod"):
		return "iOS"
	case strings.Contains(lower, "android"):
		return "Android"
	case strings.Contains(lower, "harmonyos"):
		return "HarmonyOS"
	case strings.Contains(lower, "windows"):
		return "Windows"
	case strings.Contains(lower, "mac os"), strings.Contains(lower, "macintosh"):
		return "macOS"
	case strings.Contains(lower, "linux"), strings.Contains(lower, "x11"):
		return "Linux"
	}
	return ""
}

// DeviceTypesFor returns the session device types owned by a client type.
// An empty client type yields nil, meaning no filter.
func DeviceTypesFor(ct ClientType) []DeviceType {
	switch ct {
	case ClientH5:
		return []DeviceType{DeviceMobile}
	case ClientAdmin:
		return []DeviceType{DeviceWeb, DeviceDesktop}
	}
	return nil
}

// ParseClientType accepts the same spellings as the x-client-type header.
func ParseClientType(s string) (ClientType, bool) {
	return ExplicitClientType(Request{Header: http.Header{HeaderClientType: []string{s}}})
}

// ExtractToken returns the bearer token from the Authorization header, falling back
// to the canonical cookie and then the legacy cookie. Returns "" when none is present.
func ExtractToken(req Request) string {
	if v := strings.TrimSpace(req.Get("Authorization")); len(v) > len(bearerPrefix) &&
		strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		if tok := strings.TrimSpace(v[len(bearerPrefix):]); tok != "" {
			return tok
		}
	}
	if req.Header == nil {
		return ""
	}
	var legacy string
	for _, line := range req.Header.Values("Cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			switch c.Name {
			case CookieName:
				if c.Value != "" {
					return c.Value
				}
			case LegacyCookieName:
				if legacy == "" {
					legacy = c.Value
				}
			}
		}
	}
	return legacy
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
