package useragent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/pushkit/pkg/useragent"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		ua         string
		browser    string
		version    string
		os         string
		deviceType string
		label      string
	}{
		{
			name:       "chrome on mac",
			ua:         "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			browser:    useragent.BrowserChrome,
			version:    "126.0.0.0",
			os:         useragent.OSMacOS,
			deviceType: useragent.DeviceTypeDesktop,
			label:      "Chrome on macOS",
		},
		{
			name:       "edge on windows",
			ua:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36 Edg/126.0.2592.87",
			browser:    useragent.BrowserEdge,
			version:    "126.0.2592.87",
			os:         useragent.OSWindows,
			deviceType: useragent.DeviceTypeDesktop,
			label:      "Edge on Windows",
		},
		{
			name:       "firefox on linux",
			ua:         "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
			browser:    useragent.BrowserFirefox,
			version:    "127.0",
			os:         useragent.OSLinux,
			deviceType: useragent.DeviceTypeDesktop,
			label:      "Firefox on Linux",
		},
		{
			name:       "safari on iphone",
			ua:         "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
			browser:    useragent.BrowserSafari,
			version:    "17.5",
			os:         useragent.OSiOS,
			deviceType: useragent.DeviceTypeMobile,
			label:      "Safari on iPhone",
		},
		{
			name:       "chrome on ipad",
			ua:         "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/126.0.6478.54 Mobile/15E148 Safari/604.1",
			browser:    useragent.BrowserChrome,
			version:    "126.0.6478.54",
			os:         useragent.OSiOS,
			deviceType: useragent.DeviceTypeTablet,
			label:      "Chrome on iPad",
		},
		{
			name:       "samsung internet on android phone",
			ua:         "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/25.0 Chrome/121.0.0.0 Mobile Safari/537.36",
			browser:    useragent.BrowserSamsung,
			version:    "25.0",
			os:         useragent.OSAndroid,
			deviceType: useragent.DeviceTypeMobile,
			label:      "Samsung Internet on Android",
		},
		{
			name:       "chrome on android tablet",
			ua:         "Mozilla/5.0 (Linux; Android 14; SM-X910) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			browser:    useragent.BrowserChrome,
			version:    "126.0.0.0",
			os:         useragent.OSAndroid,
			deviceType: useragent.DeviceTypeTablet,
			label:      "Chrome on Android tablet",
		},
		{
			name:       "chromebook",
			ua:         "Mozilla/5.0 (X11; CrOS x86_64 14541.0.0) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
			browser:    useragent.BrowserChrome,
			version:    "126.0.0.0",
			os:         useragent.OSChromeOS,
			deviceType: useragent.DeviceTypeDesktop,
			label:      "Chrome on ChromeOS",
		},
		{
			name:       "bot",
			ua:         "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			browser:    useragent.BrowserUnknown,
			os:         useragent.OSUnknown,
			deviceType: useragent.DeviceTypeBot,
		},
		{
			name:       "go client",
			ua:         "Go-http-client/1.1",
			browser:    useragent.BrowserUnknown,
			os:         useragent.OSUnknown,
			deviceType: useragent.DeviceTypeBot,
		},
		{
			name:       "library",
			ua:         "pushkit/1.0",
			browser:    useragent.BrowserUnknown,
			os:         useragent.OSUnknown,
			deviceType: useragent.DeviceTypeUnknown,
		},
		{
			name:       "empty",
			browser:    useragent.BrowserUnknown,
			os:         useragent.OSUnknown,
			deviceType: useragent.DeviceTypeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ua := useragent.Parse(tt.ua)
			assert.Equal(t, tt.browser, ua.BrowserName())
			assert.Equal(t, tt.version, ua.BrowserVer())
			assert.Equal(t, tt.os, ua.OS())
			assert.Equal(t, tt.deviceType, ua.DeviceType())
			assert.Equal(t, tt.label, ua.Label())
			assert.Equal(t, tt.label, useragent.Label(tt.ua))
			assert.Equal(t, tt.ua, ua.String())
		})
	}
}

func TestLabel_OSOnly(t *testing.T) {
	assert.Equal(t, "Windows device", useragent.Label("SomeApp/2.0 (Windows NT 10.0)"))
}
