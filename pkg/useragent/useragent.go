package useragent

import (
	"regexp"
	"strings"
)

const (
	DeviceTypeBot     = "bot"
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
	DeviceTypeUnknown = "unknown"
)

const (
	BrowserChrome  = "chrome"
	BrowserFirefox = "firefox"
	BrowserSafari  = "safari"
	BrowserEdge    = "edge"
	BrowserOpera   = "opera"
	BrowserSamsung = "samsung"
	BrowserBrave   = "brave"
	BrowserVivaldi = "vivaldi"
	BrowserYandex  = "yandex"
	BrowserUnknown = "unknown"
)

const (
	OSWindows  = "windows"
	OSMacOS    = "macos"
	OSiOS      = "ios"
	OSAndroid  = "android"
	OSChromeOS = "chromeos"
	OSLinux    = "linux"
	OSUnknown  = "unknown"
)

// UserAgent is a parsed User-Agent header.
type UserAgent struct {
	raw        string
	deviceType string
	os         string
	browser    string
	version    string
}

func (ua UserAgent) String() string { return ua.raw }

// DeviceType returns one of the DeviceType constants.
func (ua UserAgent) DeviceType() string { return ua.deviceType }

func (ua UserAgent) OS() string { return ua.os }

func (ua UserAgent) BrowserName() string { return ua.browser }

func (ua UserAgent) BrowserVer() string { return ua.version }

func (ua UserAgent) IsBot() bool { return ua.deviceType == DeviceTypeBot }

func (ua UserAgent) IsMobile() bool { return ua.deviceType == DeviceTypeMobile }

func (ua UserAgent) IsTablet() bool { return ua.deviceType == DeviceTypeTablet }

// Label names the device for display, e.g. "Firefox on Windows" or
// "Safari on iPhone". It is empty for bots and unrecognized agents.
func (ua UserAgent) Label() string {
	if ua.IsBot() {
		return ""
	}
	browser := browserNames[ua.browser]
	platform := osNames[ua.os]
	switch {
	case ua.os == OSiOS && ua.deviceType == DeviceTypeTablet:
		platform = "iPad"
	case ua.os == OSiOS:
		platform = "iPhone"
	case ua.os == OSAndroid && ua.deviceType == DeviceTypeTablet:
		platform = "Android tablet"
	}

	switch {
	case browser != "" && platform != "":
		return browser + " on " + platform
	case browser != "":
		return browser
	case platform != "":
		return platform + " device"
	}
	return ""
}

// Label parses raw and returns its display label.
func Label(raw string) string {
	return Parse(raw).Label()
}

var browserNames = map[string]string{
	BrowserChrome:  "Chrome",
	BrowserFirefox: "Firefox",
	BrowserSafari:  "Safari",
	BrowserEdge:    "Edge",
	BrowserOpera:   "Opera",
	BrowserSamsung: "Samsung Internet",
	BrowserBrave:   "Brave",
	BrowserVivaldi: "Vivaldi",
	BrowserYandex:  "Yandex Browser",
}

var osNames = map[string]string{
	OSWindows:  "Windows",
	OSMacOS:    "macOS",
	OSiOS:      "iOS",
	OSAndroid:  "Android",
	OSChromeOS: "ChromeOS",
	OSLinux:    "Linux",
}

type browserPattern struct {
	name     string
	keywords []string // any of
	excludes []string
	version  *regexp.Regexp
}

// Checked in order: Chromium derivatives also send "chrome/", and every iOS
// browser sends "safari/".
var browserPatterns = []browserPattern{
	{name: BrowserEdge, keywords: []string{"edg/", "edge/", "edga/", "edgios/"}, version: regexp.MustCompile(`(?:edgios|edga|edge|edg)/([\d.]+)`)},
	{name: BrowserSamsung, keywords: []string{"samsungbrowser/"}, version: regexp.MustCompile(`samsungbrowser/([\d.]+)`)},
	{name: BrowserYandex, keywords: []string{"yabrowser/"}, version: regexp.MustCompile(`yabrowser/([\d.]+)`)},
	{name: BrowserVivaldi, keywords: []string{"vivaldi/"}, version: regexp.MustCompile(`vivaldi/([\d.]+)`)},
	{name: BrowserBrave, keywords: []string{"brave/"}, version: regexp.MustCompile(`brave/([\d.]+)`)},
	{name: BrowserOpera, keywords: []string{"opr/", "opera"}, version: regexp.MustCompile(`(?:opr|opera)[/ ]([\d.]+)`)},
	{name: BrowserFirefox, keywords: []string{"firefox/", "fxios/"}, version: regexp.MustCompile(`(?:firefox|fxios)/([\d.]+)`)},
	{name: BrowserChrome, keywords: []string{"chrome/", "crios/"}, version: regexp.MustCompile(`(?:chrome|crios)/([\d.]+)`)},
	{name: BrowserSafari, keywords: []string{"safari/"}, excludes: []string{"android"}, version: regexp.MustCompile(`version/([\d.]+)`)},
}

var (
	botKeywords     = []string{"bot", "spider", "crawler", "slurp", "headless", "lighthouse", "curl/", "wget/", "python-requests", "go-http-client"}
	desktopKeywords = []string{"windows", "macintosh", "x11", "linux", "cros"}
	iOSKeywords     = []string{"iphone", "ipad", "ipod"}
)

// Parse never fails; unrecognized parts are reported as unknown.
func Parse(raw string) UserAgent {
	lower := strings.ToLower(raw)
	ua := UserAgent{
		raw:        raw,
		deviceType: parseDeviceType(lower),
		os:         parseOS(lower),
		browser:    BrowserUnknown,
	}
	if ua.IsBot() {
		return ua
	}
	for _, p := range browserPatterns {
		if containsAny(lower, p.keywords) && !containsAny(lower, p.excludes) {
			ua.browser = p.name
			if m := p.version.FindStringSubmatch(lower); len(m) > 1 {
				ua.version = m[1]
			}
			break
		}
	}
	return ua
}

func parseDeviceType(lower string) string {
	switch {
	case lower == "":
		return DeviceTypeUnknown
	case containsAny(lower, botKeywords):
		return DeviceTypeBot
	case strings.Contains(lower, "ipad"):
		return DeviceTypeTablet
	case strings.Contains(lower, "iphone"), strings.Contains(lower, "ipod"):
		return DeviceTypeMobile
	case strings.Contains(lower, "android"):
		// Android tablets omit "mobile"
		if strings.Contains(lower, "mobile") {
			return DeviceTypeMobile
		}
		return DeviceTypeTablet
	case strings.Contains(lower, "mobile"):
		return DeviceTypeMobile
	case containsAny(lower, desktopKeywords):
		return DeviceTypeDesktop
	}
	return DeviceTypeUnknown
}

func parseOS(lower string) string {
	switch {
	case strings.Contains(lower, "windows"):
		return OSWindows
	case containsAny(lower, iOSKeywords):
		return OSiOS
	case strings.Contains(lower, "macintosh"), strings.Contains(lower, "mac os x"):
		return OSMacOS
	case strings.Contains(lower, "android"):
		return OSAndroid
	case strings.Contains(lower, "cros"):
		return OSChromeOS
	case strings.Contains(lower, "linux"), strings.Contains(lower, "x11"):
		return OSLinux
	}
	return OSUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
