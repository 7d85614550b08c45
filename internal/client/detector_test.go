package client

import (
	"net/http"
	"testing"
)

const (
	uaIPhone   = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148"
	uaAndroid  = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36"
	uaWindows  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36"
	uaMac      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) AppleWebKit/605.1.15 Safari/605.1.15"
	uaElectron = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 console/1.4.0 Chrome/120.0 Electron/28.0.0 Safari/537.36"
)

func req(path string, kv ...string) Request {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Add(kv[i], kv[i+1])
	}
	return Request{Path: path, Header: h}
}

func TestDetectFromPath(t *testing.T) {
	testCases := []struct {
		path string
		want ClientType
	}{
		{"/h5", ClientH5},
		{"/h5/", ClientH5},
		{"/h5/records/12", ClientH5},
		{"/api/h5/auth/login", ClientH5},
		{"/H5/home", ClientH5},
		{"/api/users", ClientAdmin},
		{"/h5x/home", ClientAdmin},
		{"/", ClientAdmin},
		{"", ClientAdmin},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			if got := DetectFromPath(tc.path); got != tc.want {
				t.Errorf("DetectFromPath(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestDetectFromHeaders(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
		want ClientType
	}{
		{"explicit h5", req("/", HeaderClientType, "h5"), ClientH5},
		{"explicit mobile upper", req("/", HeaderClientType, "MOBILE"), ClientH5},
		{"explicit admin beats mobile UA", req("/", HeaderClientType, "admin", "User-Agent", uaIPhone), ClientAdmin},
		{"explicit web", req("/", HeaderClientType, "Web"), ClientAdmin},
		{"mobile UA", req("/", "User-Agent", uaAndroid), ClientH5},
		{"desktop UA", req("/", "User-Agent", uaWindows), ClientAdmin},
		{"unknown header value falls back to UA", req("/", HeaderClientType, "tv", "User-Agent", uaIPhone), ClientH5},
		{"nothing", req("/"), ClientAdmin},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectFromHeaders(tc.req); got != tc.want {
				t.Errorf("DetectFromHeaders = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetect_HeaderUpgradeNeverDowngrades(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
		want ClientType
	}{
		{"admin path upgraded by header", req("/api/records", HeaderClientType, "h5"), ClientH5},
		{"h5 path with admin header stays h5", req("/h5/records", HeaderClientType, "admin"), ClientH5},
		{"admin path with mobile UA only stays admin", req("/api/records", "User-Agent", uaIPhone), ClientAdmin},
		{"admin path with admin header", req("/api/records", HeaderClientType, "admin"), ClientAdmin},
		{"h5 path no header", req("/api/h5/records"), ClientH5},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Detect(tc.req); got != tc.want {
				t.Errorf("Detect = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeviceTypeFromUserAgent(t *testing.T) {
	testCases := []struct {
		ua   string
		want DeviceType
	}{
		{uaIPhone, DeviceMobile},
		{uaAndroid, DeviceMobile},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", DeviceMobile},
		{uaElectron, DeviceDesktop},
		{uaWindows, DeviceWeb},
		{uaMac, DeviceWeb},
		{"", DeviceWeb},
	}
	for _, tc := range testCases {
		if got := DeviceTypeFromUserAgent(tc.ua); got != tc.want {
			t.Errorf("DeviceTypeFromUserAgent(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestPlatformFromUserAgent(t *testing.T) {
	testCases := []struct {
		ua   string
		want string
	}{
		{uaIPhone, "iOS"},
		{uaAndroid, "Android"},
		{uaWindows, "Windows"},
		{uaMac, "macOS"},
		{"Mozilla/5.0 (X11; Ubuntu; Linux x86_64)", "Linux"},
		{"curl/8.0", ""},
	}
	for _, tc := range testCases {
		if got := PlatformFromUserAgent(tc.ua); got != tc.want {
			t.Errorf("PlatformFromUserAgent(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func TestExtractToken(t *testing.T) {
	testCases := []struct {
		name string
		req  Request
		want string
	}{
		{"bearer", req("/", "Authorization", "Bearer abc.def"), "abc.def"},
		{"bearer case-insensitive", req("/", "Authorization", "bearer  abc"), "abc"},
		{"bearer beats cookie", req("/", "Authorization", "Bearer hdr", "Cookie", "auth_token=ck"), "hdr"},
		{"non-bearer scheme ignored", req("/", "Authorization", "Basic dXNlcg==", "Cookie", "auth_token=ck"), "ck"},
		{"canonical cookie", req("/", "Cookie", "theme=dark; auth_token=ck"), "ck"},
		{"canonical beats legacy", req("/", "Cookie", "token=old; auth_token=new"), "new"},
		{"legacy cookie", req("/", "Cookie", "token=old"), "old"},
		{"empty bearer falls through", req("/", "Authorization", "Bearer ", "Cookie", "token=old"), "old"},
		{"none", req("/"), ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractToken(tc.req); got != tc.want {
				t.Errorf("ExtractToken = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeviceTypesFor(t *testing.T) {
	if got := DeviceTypesFor(ClientH5); len(got) != 1 || got[0] != DeviceMobile {
		t.Errorf("DeviceTypesFor(h5) = %v, want [mobile]", got)
	}
	if got := DeviceTypesFor(ClientAdmin); len(got) != 2 {
		t.Errorf("DeviceTypesFor(admin) = %v, want [web desktop]", got)
	}
	if got := DeviceTypesFor(""); got != nil {
		t.Errorf("DeviceTypesFor(\"\") = %v, want nil", got)
	}
}

func TestFromHTTP(t *testing.T) {
	r, _ := http.NewRequest(http.MethodGet, "http://acme.example.com/h5/home", nil)
	r.Header.Set("Authorization", "Bearer t1")
	got := FromHTTP(r)
	if got.Path != "/h5/home" || got.Host != "acme.example.com" {
		t.Errorf("FromHTTP = %+v", got)
	}
	if Detect(got) != ClientH5 || ExtractToken(got) != "t1" {
		t.Errorf("Detect/ExtractToken over FromHTTP mismatch")
	}
}
